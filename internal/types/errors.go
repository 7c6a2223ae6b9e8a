package types

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrUnsupportedFormat = errors.New("unsupported tile format")
	ErrFetch             = errors.New("tile fetch failed")
	ErrWrite             = errors.New("write failed")
)

// ConfigurationError reports invalid render parameters.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// UnsupportedFormatError is returned when a tile URL does not end in .png or .jpg.
type UnsupportedFormatError struct {
	URL       string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported tile format for %q: no extension", e.URL)
	}
	return fmt.Sprintf("unsupported tile format %q for %q", e.Extension, e.URL)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// FetchReason classifies a FetchError.
type FetchReason string

const (
	FetchReasonTransport         FetchReason = "transport"
	FetchReasonDecode            FetchReason = "decode"
	FetchReasonUnsupportedFormat FetchReason = "unsupported_format"
)

// FetchError wraps a failure to retrieve or decode one tile.
type FetchError struct {
	Reason FetchReason
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetch, and ErrUnsupportedFormat for the unsupported_format reason.
func (e *FetchError) Is(target error) bool {
	if target == ErrFetch {
		return true
	}
	return target == ErrUnsupportedFormat && e.Reason == FetchReasonUnsupportedFormat
}

// WriteError wraps an encode or filesystem failure while persisting an image.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// NewConfigurationError is a shorthand for &ConfigurationError{...}.
func NewConfigurationError(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
