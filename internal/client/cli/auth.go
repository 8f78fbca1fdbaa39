package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/snapboard/internal/client/session"
	"github.com/dmitrijs2005/snapboard/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// SignUp creates an account and signs in with it.
func (a *App) SignUp(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.auth.SignUp(ctx, email, string(password), name); err != nil {
		return err
	}
	a.waitForStatus(ctx, session.Authenticated)
	return nil
}

func (a *App) SignIn(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.auth.SignIn(ctx, email, string(password)); err != nil {
		return err
	}
	a.waitForStatus(ctx, session.Authenticated)
	return nil
}

// MagicLink requests a sign-in link and then exchanges the token pasted by
// the user. Either the bare token or the whole link is accepted.
func (a *App) MagicLink(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.RequestMagicLink(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "A sign-in link was issued.")

	pasted, err := getSimpleText(a.reader, "Paste the link or its token", a.out)
	if err != nil {
		return err
	}
	token := tokenFromLink(pasted)
	if token == "" {
		return fmt.Errorf("%w: token is required", common.ErrorValidation)
	}

	if _, err := a.auth.ExchangeMagicLink(ctx, token); err != nil {
		return err
	}
	a.waitForStatus(ctx, session.Authenticated)
	return nil
}

func tokenFromLink(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "token=") {
		return s
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[i+1:]
	}
	q, err := url.ParseQuery(s)
	if err != nil {
		return ""
	}
	return q.Get("token")
}

// SignOut asks the gateway to end the session and waits for the mirror to
// catch up.
func (a *App) SignOut(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	if err := a.mirror.SignOut(ctx); err != nil {
		return err
	}
	a.waitForStatus(ctx, session.Anonymous)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u := a.mirror.CurrentUser()
	if u == nil {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\nid: %s\n", u.DisplayName(), u.Email, u.ID)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	if err := a.auth.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return err
	}
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "pong")
	return nil
}
