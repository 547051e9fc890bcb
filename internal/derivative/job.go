package derivative

import (
	"context"
	"time"
)

// Job asks the worker to generate derivatives for one uploaded source object.
type Job struct {
	PublicID    string       `json:"publicId"`
	SourceKey   string       `json:"sourceKey"`
	Derivatives []Descriptor `json:"derivatives"`
	RequestedAt time.Time    `json:"requestedAt"`
}

// Requester hands a job to whatever generates derivatives. Completion is not
// awaited; the upload succeeds regardless of the outcome.
type Requester interface {
	Request(ctx context.Context, job Job) error
}

// NopRequester drops every job. Used when no queue is configured.
type NopRequester struct{}

func (NopRequester) Request(context.Context, Job) error { return nil }
