package models

import "time"

type GalleryStatus string

const (
	GalleryPending   GalleryStatus = "pending"
	GalleryPublished GalleryStatus = "published"
)

// GalleryPost is a multi-image entry. While pending it collects uploads:
// PendingKeys holds object names handed out for upload but not yet
// attached, ObjectKeys and Images grow together (same index, upload order)
// as uploads are attached.
type GalleryPost struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Author      string        `json:"author"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Images      []string      `json:"images"`
	ObjectKeys  []string      `json:"object_keys"`
	PendingKeys []string      `json:"pending_keys"`
	Status      GalleryStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// AllObjectKeys lists every object the record may own in storage.
func (g *GalleryPost) AllObjectKeys() []string {
	keys := make([]string, 0, len(g.ObjectKeys)+len(g.PendingKeys))
	keys = append(keys, g.ObjectKeys...)
	keys = append(keys, g.PendingKeys...)
	return keys
}

// UploadTicket tells the client where to PUT one image and the public URL it
// will have once attached.
type UploadTicket struct {
	ObjectName string `json:"object_name"`
	UploadURL  string `json:"upload_url"`
	PublicURL  string `json:"public_url"`
}
