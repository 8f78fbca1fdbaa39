// Package models defines server-side records persisted in postgres.
package models

import "time"

// Post is a text entry on the shared board. Version starts at 1 and grows by
// one on every update; CreatedAt never changes after insert.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
