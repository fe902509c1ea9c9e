package errors

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	// Capsule lifecycle errors
	ErrNotYetAvailable ErrorCode = "NOT_YET_AVAILABLE"
	ErrAlreadyExpired  ErrorCode = "ALREADY_EXPIRED"
	ErrCapsuleNotFound ErrorCode = "CAPSULE_NOT_FOUND"

	// Creation-time validation errors
	ErrUploadTooLarge  ErrorCode = "UPLOAD_TOO_LARGE"
	ErrUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Media store errors
	ErrMediaUnavailable  ErrorCode = "MEDIA_UNAVAILABLE"
	ErrMediaUploadFailed ErrorCode = "MEDIA_UPLOAD_FAILED"
	ErrMediaAccessDenied ErrorCode = "MEDIA_ACCESS_DENIED"

	// Record store errors
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrDatabaseError    ErrorCode = "DATABASE_ERROR"
	ErrDuplicateRecord  ErrorCode = "DUPLICATE_RECORD"

	// Credentials and connectivity
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCredentialsExpired ErrorCode = "CREDENTIALS_EXPIRED"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrConnectionTimeout  ErrorCode = "CONNECTION_TIMEOUT"
	ErrOperationCanceled  ErrorCode = "OPERATION_CANCELED"

	// Configuration errors
	ErrConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	ErrMissingConfig      ErrorCode = "MISSING_CONFIG"

	// Generic errors
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents an application-specific error with user-friendly messaging
type AppError struct {
	Code            ErrorCode              `json:"code"`
	Message         string                 `json:"message"`
	UserMessage     string                 `json:"user_message"`
	Cause           error                  `json:"-"` // Don't serialize the underlying error
	Context         map[string]interface{} `json:"context,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Recoverable     bool                   `json:"recoverable"`
	RetryAfter      *time.Duration         `json:"retry_after,omitempty"`
	SuggestedAction string                 `json:"suggested_action,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// GetSuggestedAction returns a suggested action for the user
func (e *AppError) GetSuggestedAction() string {
	return e.SuggestedAction
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:            code,
		Message:         message,
		UserMessage:     getUserFriendlyMessage(code, message),
		Cause:           cause,
		Context:         make(map[string]interface{}),
		Timestamp:       time.Now(),
		Recoverable:     isRecoverable(code),
		RetryAfter:      getRetryAfter(code),
		SuggestedAction: getSuggestedAction(code),
	}
}

// NewAppErrorWithContext creates a new application error with context
func NewAppErrorWithContext(code ErrorCode, message string, cause error, context map[string]interface{}) *AppError {
	err := NewAppError(code, message, cause)
	err.Context = context
	return err
}

// NewNotYetAvailable creates a NotYetAvailable error carrying the time until
// the capsule unlocks, so the caller can show it to the user.
func NewNotYetAvailable(availableAt time.Time, now time.Time) *AppError {
	err := NewAppError(ErrNotYetAvailable, "capsule is not yet available for viewing", nil)
	err.Context["available_at"] = availableAt.UTC().Format(time.RFC3339)
	err.Context["available_in_seconds"] = availableAt.Sub(now).Seconds()
	return err
}

// WrapError wraps an existing error with application error context
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the original code if not specified
	if appErr, ok := err.(*AppError); ok && code == "" {
		return appErr
	}

	return NewAppError(code, message, err)
}

// HasCode reports whether err is an AppError with the given code, unwrapping
// as needed.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// ClassifyError attempts to classify a generic error into an AppError
func ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, return as-is
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	errStr := strings.ToLower(err.Error())

	// Context errors
	if err == context.DeadlineExceeded {
		return NewAppError(ErrConnectionTimeout, "Operation timed out", err)
	}
	if err == context.Canceled {
		return NewAppError(ErrOperationCanceled, "Operation was canceled", err)
	}

	// Network errors
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return NewAppError(ErrConnectionTimeout, "Network operation timed out", err)
		}
		return NewAppError(ErrNetworkError, "Network error occurred", err)
	}

	// S3 errors (based on error message patterns)
	if strings.Contains(errStr, "accessdenied") {
		return NewAppError(ErrMediaAccessDenied, "Access denied to the media store", err)
	}
	if strings.Contains(errStr, "nosuchbucket") {
		return NewAppError(ErrConfigurationError, "Media store bucket not found", err)
	}
	if strings.Contains(errStr, "nosuchkey") {
		return NewAppError(ErrMediaUnavailable, "Media not found in store", err)
	}
	if strings.Contains(errStr, "invalidaccesskeyid") || strings.Contains(errStr, "signaturemismatch") {
		return NewAppError(ErrInvalidCredentials, "Invalid AWS credentials", err)
	}
	if strings.Contains(errStr, "tokenrefreshrequired") || strings.Contains(errStr, "expiredtoken") {
		return NewAppError(ErrCredentialsExpired, "AWS credentials have expired", err)
	}

	// Database errors
	if strings.Contains(errStr, "database") || strings.Contains(errStr, "sql") {
		if strings.Contains(errStr, "no rows") {
			return NewAppError(ErrCapsuleNotFound, "Capsule not found", err)
		}
		if strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate") {
			return NewAppError(ErrDuplicateRecord, "Duplicate record", err)
		}
		if strings.Contains(errStr, "locked") || strings.Contains(errStr, "busy") {
			return NewAppError(ErrStoreUnavailable, "Record store is busy", err)
		}
		return NewAppError(ErrDatabaseError, "Database error", err)
	}

	// Default to unknown error
	return NewAppError(ErrUnknownError, "An unexpected error occurred", err)
}

// getUserFriendlyMessage returns a user-friendly message for the error code
func getUserFriendlyMessage(code ErrorCode, originalMessage string) string {
	switch code {
	case ErrNotYetAvailable:
		return "This time capsule is not yet available for viewing."
	case ErrAlreadyExpired:
		return "This time capsule has expired."
	case ErrCapsuleNotFound:
		return "The capsule could not be found. It may have expired and been deleted."
	case ErrUploadTooLarge:
		return "The file is too large to upload. Please choose a file smaller than 100MB."
	case ErrUnsupportedType:
		return "This file type is not supported. Please choose an image or video file."
	case ErrInvalidInput:
		return "The provided input is invalid. Please check your input and try again."
	case ErrMediaUnavailable:
		return "The capsule's media could not be loaded. Please try again."
	case ErrMediaUploadFailed:
		return "Failed to upload the media. Please check your internet connection and try again."
	case ErrMediaAccessDenied:
		return "Access to the media store was denied. Please check your permissions."
	case ErrStoreUnavailable:
		return "The capsule store is temporarily unavailable. Showing the last known list."
	case ErrDatabaseError:
		return "A database error occurred. Please try again."
	case ErrInvalidCredentials:
		return "Your AWS credentials are invalid. Please check your access key and secret key."
	case ErrCredentialsExpired:
		return "Your AWS credentials have expired. Please refresh your credentials and try again."
	case ErrNetworkError:
		return "A network error occurred. Please check your internet connection and try again."
	case ErrConnectionTimeout:
		return "The connection timed out. Please check your internet connection and try again."
	case ErrOperationCanceled:
		return "The operation was canceled."
	case ErrConfigurationError:
		return "There's a configuration error. Please check your settings."
	case ErrMissingConfig:
		return "Required configuration is missing. Please check your settings."
	default:
		// If we have a specific message, use it; otherwise use a generic message
		if originalMessage != "" {
			return originalMessage
		}
		return "An unexpected error occurred. Please try again."
	}
}

// isRecoverable determines if an error is recoverable
func isRecoverable(code ErrorCode) bool {
	recoverableErrors := map[ErrorCode]bool{
		ErrNotYetAvailable:   true,
		ErrMediaUnavailable:  true,
		ErrStoreUnavailable:  true,
		ErrNetworkError:      true,
		ErrConnectionTimeout: true,
		ErrUploadTooLarge:    true,
		ErrUnsupportedType:   true,
		ErrInvalidInput:      true,
	}
	return recoverableErrors[code]
}

// getRetryAfter returns the suggested retry delay for recoverable errors
func getRetryAfter(code ErrorCode) *time.Duration {
	retryDelays := map[ErrorCode]time.Duration{
		ErrNetworkError:      5 * time.Second,
		ErrConnectionTimeout: 10 * time.Second,
		ErrStoreUnavailable:  3 * time.Second,
		ErrMediaUnavailable:  5 * time.Second,
	}

	if delay, exists := retryDelays[code]; exists {
		return &delay
	}
	return nil
}

// getSuggestedAction returns a suggested action for the user
func getSuggestedAction(code ErrorCode) string {
	actions := map[ErrorCode]string{
		ErrNotYetAvailable:    "Come back once the capsule unlocks.",
		ErrAlreadyExpired:     "Return to the capsule list.",
		ErrUploadTooLarge:     "Choose a smaller file.",
		ErrUnsupportedType:    "Choose a supported image or video format.",
		ErrMediaUnavailable:   "Retry loading the capsule.",
		ErrStoreUnavailable:   "Wait for the next refresh.",
		ErrInvalidCredentials: "Open settings and re-enter your AWS credentials.",
		ErrCredentialsExpired: "Open settings and refresh your AWS credentials.",
		ErrMissingConfig:      "Open settings and complete the configuration.",
	}
	return actions[code]
}
