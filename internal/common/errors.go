package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeDocument for local ticket document errors
	ErrorTypeDocument ErrorType = "document"
	// ErrorTypeRemote for remote API errors
	ErrorTypeRemote ErrorType = "remote"
	// ErrorTypeStorage for storage/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeGit for git operation errors
	ErrorTypeGit ErrorType = "git"
	// ErrorTypeWorklog for worklog entry errors
	ErrorTypeWorklog ErrorType = "worklog"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes for the failure modes the sync engine distinguishes.
const (
	CodeMalformedDocument = "MalformedDocument"
	CodeRemoteUnavailable = "RemoteUnavailable"
	CodeRemoteRejected    = "RemoteRejected"
	CodeNoTransitionPath  = "NoTransitionPath"
	CodeNoSeconds         = "NoSeconds"
)

// SyncError represents a structured error with context
type SyncError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *SyncError) WithCause(cause error) *SyncError {
	e.Cause = cause
	return e
}

// WithDetails sets the details string, typically the remote error payload.
func (e *SyncError) WithDetails(details string) *SyncError {
	e.Details = details
	return e
}

// NewError creates a new SyncError
func NewError(errorType ErrorType, code, message string) *SyncError {
	return &SyncError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewMalformedDocumentError reports an unparsable local ticket document.
func NewMalformedDocumentError(message string) *SyncError {
	return NewError(ErrorTypeDocument, CodeMalformedDocument, message)
}

// NewRemoteUnavailableError reports a network-level remote failure.
func NewRemoteUnavailableError(message string) *SyncError {
	return NewError(ErrorTypeRemote, CodeRemoteUnavailable, message)
}

// NewRemoteRejectedError reports a 4xx-class remote rejection. The
// remote error payload belongs in Details.
func NewRemoteRejectedError(message string) *SyncError {
	return NewError(ErrorTypeRemote, CodeRemoteRejected, message)
}

// NewNoTransitionPathError reports that no workflow transition reaches
// the requested status from the record's current state.
func NewNoTransitionPathError(message string) *SyncError {
	return NewError(ErrorTypeRemote, CodeNoTransitionPath, message)
}

// NewNoSecondsError reports an unparsable worklog duration.
func NewNoSecondsError(message string) *SyncError {
	return NewError(ErrorTypeWorklog, CodeNoSeconds, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *SyncError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewGitError creates a git error
func NewGitError(code, message string) *SyncError {
	return NewError(ErrorTypeGit, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *SyncError {
	return NewError(ErrorTypeInternal, code, message)
}

// WrapError wraps an existing error with SyncError context
func WrapError(err error, errorType ErrorType, code, message string) *SyncError {
	return &SyncError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// HasCode reports whether err is (or wraps) a SyncError with the given code.
func HasCode(err error, code string) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRemoteUnavailable reports whether err is a network-level remote failure.
func IsRemoteUnavailable(err error) bool {
	return HasCode(err, CodeRemoteUnavailable)
}

// IsRemoteRejected reports whether err is a 4xx-class remote rejection.
func IsRemoteRejected(err error) bool {
	return HasCode(err, CodeRemoteRejected)
}

// IsNoSeconds reports whether err is an unparsable-duration error.
func IsNoSeconds(err error) bool {
	return HasCode(err, CodeNoSeconds)
}

// IsMalformedDocument reports whether err is an unparsable-document error.
func IsMalformedDocument(err error) bool {
	return HasCode(err, CodeMalformedDocument)
}
