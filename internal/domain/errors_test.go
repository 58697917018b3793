package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadError_Error(t *testing.T) {
	withCause := NewFetchError("download failed", errors.New("connection reset"))
	assert.Equal(t, "fetch: download failed: connection reset", withCause.Error())

	withoutCause := NewResolutionError("no video URL found", nil)
	assert.Equal(t, "resolution: no video URL found", withoutCause.Error())
}

func TestDownloadError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewFetchError("write failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("attempt 2: %w", NewResolutionError("fetch failed", nil))

	assert.True(t, IsKind(err, KindResolution))
	assert.False(t, IsKind(err, KindFetch))
	assert.False(t, IsKind(errors.New("plain"), KindResolution))
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), "boom"},
		{"unwraps one level", NewFetchError("download failed", errors.New("unexpected status 403")), "unexpected status 403"},
		{"message without cause", NewResolutionError("no video URL found", nil), "no video URL found"},
		{"validation", NewValidationError("https://example.com"), "https://example.com is not a valid TikTok URL"},
		{"wrapped download error", fmt.Errorf("retry: %w", NewFetchError("x", errors.New("eof"))), "eof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FailureReason(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "resolution", KindResolution.String())
	assert.Equal(t, "fetch", KindFetch.String())
	assert.Equal(t, "config", KindConfig.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}
