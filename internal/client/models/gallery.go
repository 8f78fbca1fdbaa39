package models

import "time"

type GalleryStatus string

const (
	GalleryPending   GalleryStatus = "pending"
	GalleryPublished GalleryStatus = "published"
)

// GalleryPost is a multi-image entry. Images keeps upload order.
type GalleryPost struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Author      string        `json:"author"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Images      []string      `json:"images"`
	Status      GalleryStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// UploadTicket is the gateway's answer to an upload request: where to PUT
// the bytes and the URL the image will be served from.
type UploadTicket struct {
	ObjectName string `json:"object_name"`
	UploadURL  string `json:"upload_url"`
	PublicURL  string `json:"public_url"`
}
