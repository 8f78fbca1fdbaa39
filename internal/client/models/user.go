package models

import "github.com/dmitrijs2005/snapboard/internal/common"

// User is the identity carried by a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DisplayName returns the name when set, otherwise the email.
func (u *User) DisplayName() string {
	return common.DisplayName(u.Name, u.Email)
}

// Session is an authenticated user together with its token pair.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthEvent names a change in the gateway's authentication state.
type AuthEvent string

const (
	SignedIn       AuthEvent = "SIGNED_IN"
	SignedOut      AuthEvent = "SIGNED_OUT"
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthChange is delivered to auth state listeners. User is nil after
// SignedOut.
type AuthChange struct {
	Event AuthEvent
	User  *User
}
