package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/client/client"
	"github.com/dmitrijs2005/snapboard/internal/common"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// resolveID finds the id equal to, or uniquely prefixed by, s.
func resolveID(ids []string, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	var match string
	for _, id := range ids {
		if id == s {
			return id, nil
		}
		if strings.HasPrefix(id, s) {
			if match != "" {
				return "", fmt.Errorf("%w: id prefix %q is ambiguous", common.ErrorValidation, s)
			}
			match = id
		}
	}
	if match == "" {
		return "", common.ErrorNotFound
	}
	return match, nil
}

// describe turns an error into a message for the prompt.
func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, common.ErrorUnauthorized):
		if msg := err.Error(); strings.Contains(msg, common.AuthCallbackFailed) {
			return "sign-in link is invalid or expired"
		}
		return "not signed in, or the credentials were rejected"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable"
	case errors.Is(err, common.ErrVersionConflict):
		return "the post was changed elsewhere; run 'board list' and try again"
	case errors.Is(err, common.ErrorForbidden):
		return "you can only change your own entries"
	case errors.Is(err, common.ErrorNotFound):
		return "not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "an account with this email already exists"
	default:
		return err.Error()
	}
}
