package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"
)

var retryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// IsTransient reports whether a failed storage call is worth retrying.
// Server faults, throttling and connection errors are transient. Anything
// the SDK's retry rules cannot classify is treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorFault() {
		case smithy.FaultServer:
			return true
		case smithy.FaultClient:
			return false
		}
	}
	return retryables.IsErrorRetryable(err) == aws.TrueTernary
}
