package models

import (
	"time"

	"github.com/dmitrijs2005/snapboard/internal/common"
)

// User is an account. PasswordHash is empty for accounts created through a
// magic link until a password is set.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// DisplayName is the name shown as a post author: the name when set,
// otherwise the email.
func (u *User) DisplayName() string {
	return common.DisplayName(u.Name, u.Email)
}
