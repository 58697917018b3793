package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes download errors
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindResolution
	KindFetch
	KindConfig
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindFetch:
		return "fetch"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ErrInterrupted is returned when a batch was stopped before all items ran
var ErrInterrupted = errors.New("download interrupted")

// DownloadError is a structured error raised while validating, resolving or fetching an item
type DownloadError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// NewValidationError reports a URL that is not a supported media URL
func NewValidationError(url string) *DownloadError {
	return &DownloadError{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s is not a valid TikTok URL", url),
	}
}

// NewResolutionError reports a failure to find the direct asset URL
func NewResolutionError(message string, cause error) *DownloadError {
	return &DownloadError{Kind: KindResolution, Message: message, Cause: cause}
}

// NewFetchError reports a failure while streaming the asset to disk
func NewFetchError(message string, cause error) *DownloadError {
	return &DownloadError{Kind: KindFetch, Message: message, Cause: cause}
}

// NewConfigError reports a batch-level configuration problem
func NewConfigError(message string, cause error) *DownloadError {
	return &DownloadError{Kind: KindConfig, Message: message, Cause: cause}
}

// IsKind checks whether err is a DownloadError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// FailureReason returns the short message shown to users for a failed item.
// A DownloadError with a cause is unwrapped one level.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	var de *DownloadError
	if errors.As(err, &de) {
		if de.Cause != nil {
			return de.Cause.Error()
		}
		return de.Message
	}
	return err.Error()
}
