package gateway

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a charge could not be created.
type FailureKind string

const (
	KindTimeout     FailureKind = "timeout"
	KindTransport   FailureKind = "transport"
	KindStatus      FailureKind = "status"
	KindDecode      FailureKind = "decode"
	KindUnavailable FailureKind = "unavailable"
)

// FailureError carries the failure classification for logs and metrics.
type FailureError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FailureError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failure: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, or "" when err is not a gateway failure.
func KindOf(err error) FailureKind {
	var failure *FailureError
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return ""
}
