// Package pipeline ingests one multipart video upload: admission, staging,
// remote upload, metadata recording and guaranteed cleanup.
package pipeline

import (
	"errors"
	"strings"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageAdmission   Stage = "admission"
	StageStaging     Stage = "staging"
	StageRemote      Stage = "remote"
	StagePersistence Stage = "persistence"
)

var (
	ErrUnsupportedType     = errors.New("unsupported file type")
	ErrTooLarge            = errors.New("file too large")
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidField        = errors.New("invalid field")
	ErrIOFailure           = errors.New("failed to stage upload")
	ErrRemoteUploadFailure = errors.New("failed to upload video to storage")
	ErrPersistenceFailure  = errors.New("failed to save video metadata")
	ErrAuthFailure         = errors.New("authentication required")
)

var errorCodes = map[error]string{
	ErrUnsupportedType:     "UnsupportedType",
	ErrTooLarge:            "TooLarge",
	ErrMissingField:        "MissingField",
	ErrInvalidField:        "InvalidField",
	ErrIOFailure:           "IOFailure",
	ErrRemoteUploadFailure: "RemoteUploadFailure",
	ErrPersistenceFailure:  "PersistenceFailure",
	ErrAuthFailure:         "AuthFailure",
}

// Error is a failed pipeline run. errors.Is matches both Kind and the wrapped cause.
type Error struct {
	Stage   Stage
	Kind    error
	Err     error
	Details string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code is the stable machine-readable name of the error kind, e.g. "TooLarge".
func (e *Error) Code() string {
	return errorCodes[e.Kind]
}

func admissionError(kind error, details string) *Error {
	return &Error{Stage: StageAdmission, Kind: kind, Details: details}
}

// IsAdmission reports whether err is a user-correctable rejection.
func IsAdmission(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Stage == StageAdmission
}
