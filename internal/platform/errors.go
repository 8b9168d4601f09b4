package platform

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthRequired          ErrorKind = "auth_required"
	KindAccountNotConnected   ErrorKind = "account_not_connected"
	KindTokenExpiredNoRefresh ErrorKind = "token_expired_no_refresh"
	KindRefreshFailed         ErrorKind = "refresh_failed"
	KindMediaFetchFailed      ErrorKind = "media_fetch_failed"
	KindValidation            ErrorKind = "validation_error"
	KindPlatformRejected      ErrorKind = "platform_rejected"
	KindProcessingTimeout     ErrorKind = "processing_timeout"
)

// Error classifies a publish or token failure. Message carries the remote
// message where the platform supplied one.
type Error struct {
	Kind     ErrorKind
	Platform string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, platform, message string) *Error {
	return &Error{Kind: kind, Platform: platform, Message: message}
}

func WrapError(kind ErrorKind, platform string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Platform: platform, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind from err, or empty for untyped errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsTerminalAuth reports whether err means the user has to reconnect the
// account; these failures are never retried.
func IsTerminalAuth(err error) bool {
	switch KindOf(err) {
	case KindTokenExpiredNoRefresh, KindRefreshFailed:
		return true
	}
	return false
}
