package models

import "time"

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

// MagicLink is a single-use sign-in token mailed (or logged) to an address.
type MagicLink struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
