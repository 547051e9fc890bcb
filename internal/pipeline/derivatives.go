package pipeline

import (
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/storage"
)

// URLBuilder derives playback URLs from a publicID alone.
type URLBuilder struct {
	store       storage.FileStorage
	streamWidth int
}

func NewURLBuilder(store storage.FileStorage, streamWidth int) URLBuilder {
	return URLBuilder{store: store, streamWidth: streamWidth}
}

func (b URLBuilder) ThumbnailURL(publicID string) string {
	return b.store.ObjectURL(derivative.Thumbnail.Key(publicID))
}

func (b URLBuilder) StreamURL(publicID string) string {
	return b.store.ObjectURL(derivative.Stream(b.streamWidth).Key(publicID))
}

// Descriptors are the derivatives requested for every upload.
func (b URLBuilder) Descriptors() []derivative.Descriptor {
	return derivative.DefaultSet(b.streamWidth)
}

// DerivativeKeys lists every object key that may exist for publicID besides the source.
func (b URLBuilder) DerivativeKeys(publicID string) []string {
	ds := b.Descriptors()
	keys := make([]string, 0, len(ds))
	for _, d := range ds {
		keys = append(keys, d.Key(publicID))
	}
	return keys
}
