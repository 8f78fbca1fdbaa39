// Package models defines the records the snapboard client keeps in memory.
// JSON tags follow the gateway wire format.
package models

import "time"

// Post is a text entry on the shared board.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
