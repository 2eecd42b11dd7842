package model

import "time"

// Video is the stored upload record
type Video struct {
	ID              string    `json:"id" bson:"_id"`
	Filename        string    `json:"filename" bson:"filename"`
	ContentType     string    `json:"contentType" bson:"contentType"`
	SizeBytes       int64     `json:"sizeBytes" bson:"sizeBytes"`
	Path            string    `json:"-" bson:"path"`
	DurationSeconds float64   `json:"durationSeconds" bson:"durationSeconds"`
	OwnerID         string    `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type UploadResponse struct {
	VideoID         string  `json:"videoId"`
	Status          string  `json:"status"`
	EstimatedTime   int     `json:"estimatedTime"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Sample is a pre-registered demo video whose result is served from cache
type Sample struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ExpectedScore   int     `json:"score"`
	DurationSeconds float64 `json:"duration"`
	Cached          bool    `json:"isCached"`
}
