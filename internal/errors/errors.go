package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so wrapped copies compare equal to the
// predefined values.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// WithMessage returns a copy of domainErr carrying a more specific message.
func WithMessage(domainErr *DomainError, message string) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: message,
	}
}

// Error codes
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeCodeInvalid        = "CODE_INVALID"
	CodeCodeExpired        = "CODE_EXPIRED"
	CodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	CodeServerError        = "SERVER_ERROR"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodePhoneTaken         = "PHONE_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeIncorrectPassword  = "INCORRECT_PASSWORD"
	CodeRateLimited        = "RATE_LIMITED"
	CodeContactMissing     = "CONTACT_MISSING"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Predefined domain errors
var (
	// Input
	ErrValidation = NewDomainError(CodeValidation, "invalid input")

	// Authentication / authorization
	ErrUnauthorized       = NewDomainError(CodeUnauthorized, "authentication required")
	ErrForbidden          = NewDomainError(CodeForbidden, "access forbidden")
	ErrTwoFactorRequired  = NewDomainError(CodeForbidden, "two-factor verification required")
	ErrCSRFMismatch       = NewDomainError(CodeForbidden, "csrf token mismatch")
	ErrInvalidCredentials = NewDomainError(CodeInvalidCredentials, "invalid email or password")
	ErrIncorrectPassword  = NewDomainError(CodeIncorrectPassword, "current password is incorrect")
	ErrAccountSuspended   = NewDomainError(CodeAccountSuspended, "account is suspended")

	// Lookups
	ErrNotFound        = NewDomainError(CodeNotFound, "resource not found")
	ErrUserNotFound    = NewDomainError(CodeNotFound, "user not found")
	ErrAccountNotFound = NewDomainError(CodeNotFound, "account not found")
	ErrRoleNotFound    = NewDomainError(CodeNotFound, "role not found")

	// Conflicts
	ErrEmailTaken = NewDomainError(CodeEmailTaken, "email is already registered")
	ErrPhoneTaken = NewDomainError(CodePhoneTaken, "phone number is already registered")

	// One-time codes
	ErrCodeInvalid    = NewDomainError(CodeCodeInvalid, "verification code is invalid")
	ErrCodeExpired    = NewDomainError(CodeCodeExpired, "verification code has expired")
	ErrRateLimited    = NewDomainError(CodeRateLimited, "too many code requests, try again later")
	ErrContactMissing = NewDomainError(CodeContactMissing, "no contact address available for this operation")

	// System errors
	ErrInternal           = NewDomainError(CodeServerError, "internal server error")
	ErrServiceUnavailable = NewDomainError(CodeServiceUnavailable, "service unavailable")
)

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code string) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Code == code
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	return http.StatusInternalServerError
}

// domainErrorToHTTPStatus maps specific domain errors to HTTP status codes
func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	case CodeValidation, CodeCodeInvalid, CodeCodeExpired, CodeContactMissing:
		return http.StatusBadRequest

	case CodeUnauthorized, CodeInvalidCredentials, CodeIncorrectPassword:
		return http.StatusUnauthorized

	case CodeForbidden, CodeAccountSuspended:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	case CodeEmailTaken, CodePhoneTaken:
		return http.StatusConflict

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCode returns the domain code, or SERVER_ERROR for anything else.
func GetErrorCode(err error) string {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return CodeServerError
}

// GetErrorMessage safely extracts a client-facing message. Unknown errors
// never leak their text.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return ErrInternal.Message
}
