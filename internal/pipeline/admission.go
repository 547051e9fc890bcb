package pipeline

import (
	"alcyxob/navistream/internal/domain"
	"fmt"
	"mime"
	"strings"
)

// FileMeta is what is known about the file part before its bytes are read.
// DeclaredSize is -1 when the client did not state one.
type FileMeta struct {
	FileName     string
	ContentType  string
	DeclaredSize int64
}

// AdmissionFilter validates an upload before any byte is persisted.
type AdmissionFilter struct {
	allowed  map[string]struct{}
	maxBytes int64
}

func NewAdmissionFilter(allowedTypes []string, maxBytes int64) *AdmissionFilter {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[NormalizeContentType(t)] = struct{}{}
	}
	return &AdmissionFilter{allowed: allowed, maxBytes: maxBytes}
}

func (f *AdmissionFilter) MaxBytes() int64 { return f.maxBytes }

// Admit checks type then size.
func (f *AdmissionFilter) Admit(meta FileMeta) error {
	if err := f.AdmitType(meta.ContentType); err != nil {
		return err
	}
	return f.AdmitSize(meta.DeclaredSize)
}

func (f *AdmissionFilter) AdmitType(contentType string) error {
	ct := NormalizeContentType(contentType)
	if _, ok := f.allowed[ct]; !ok {
		return admissionError(ErrUnsupportedType, fmt.Sprintf("%q is not an accepted video type", contentType))
	}
	return nil
}

func (f *AdmissionFilter) AdmitSize(size int64) error {
	if size > f.maxBytes {
		return admissionError(ErrTooLarge, fmt.Sprintf("limit is %d bytes", f.maxBytes))
	}
	return nil
}

// AdmitContent checks the type sniffed from the staged bytes. Content the
// sniffer cannot classify is let through; anything it recognizes as a
// non-video format is rejected even when the declared type was allowed.
func (f *AdmissionFilter) AdmitContent(detected string) error {
	mt := NormalizeContentType(detected)
	if mt == "" || mt == unknownContentType || strings.HasPrefix(mt, "video/") {
		return nil
	}
	return admissionError(ErrUnsupportedType, fmt.Sprintf("file content is %s, not a video", mt))
}

// AdmitFields validates the companion form fields and resolves the category.
func (f *AdmissionFilter) AdmitFields(title, category string) (domain.Category, error) {
	if strings.TrimSpace(title) == "" {
		return "", admissionError(ErrMissingField, "title is required")
	}
	c, ok := domain.ParseCategory(strings.TrimSpace(category))
	if !ok {
		return "", admissionError(ErrInvalidField, fmt.Sprintf("unknown category %q", category))
	}
	return c, nil
}

// NormalizeContentType lower-cases a media type and strips its parameters.
func NormalizeContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

const unknownContentType = "application/octet-stream"

var extensions = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/webm":       ".webm",
	"video/x-m4v":      ".m4v",
}

// extensionFor picks the object key extension for a staged file.
func extensionFor(contentType string) string {
	return extensions[NormalizeContentType(contentType)]
}
