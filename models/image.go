package models

import (
	"fmt"
	"time"
)

// Image is an extracted figure stored alongside its document
type Image struct {
	DocumentID string    `bson:"document_id" json:"document_id"`
	Index      int       `bson:"image_index" json:"image_index"`
	Filename   string    `bson:"filename" json:"filename"`
	Data       string    `bson:"data" json:"data"` // base64 PNG
	Caption    string    `bson:"caption,omitempty" json:"caption,omitempty"`
	Context    string    `bson:"context,omitempty" json:"context,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// ImageFilename is the on-disk and stored name of the i-th (1-based) image
func ImageFilename(n int) string {
	return fmt.Sprintf("image_%03d.png", n)
}

// ImageCaption is the default caption of the i-th (1-based) image
func ImageCaption(n int) string {
	return fmt.Sprintf("Image %d", n)
}
