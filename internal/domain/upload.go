package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// UploadRequest is the typed form of one POST /videos/upload call. It lives
// only for the duration of the request.
type UploadRequest struct {
	OwnerID     primitive.ObjectID
	Title       string
	Description string
	Category    Category
	FileName    string
}

// StagedFile is the raw upload held on local disk while the pipeline runs.
type StagedFile struct {
	LocalPath        string
	SizeBytes        int64
	DeclaredMimeType string
	DetectedMimeType string
}

// RemoteAsset is what durable storage returned for a staged file. Immutable.
type RemoteAsset struct {
	PublicID        string
	ObjectKey       string
	SecureURL       string
	ThumbnailURL    string
	DurationSeconds float64
	Width           int
	Height          int
}
