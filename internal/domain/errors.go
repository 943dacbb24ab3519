package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes for categorization
const (
	// Caller errors
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodePathTraversal = "PATH_TRAVERSAL"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAuthRequired  = "AUTHENTICATION_REQUIRED"

	// Waits and process failures
	ErrCodeTimeout  = "TIMEOUT_ERROR"
	ErrCodeInternal = "INTERNAL_ERROR"

	// Artifact defects
	ErrCodeStructuralDefect = "STRUCTURAL_DEFECT"
	ErrCodeSyntaxDefect     = "SYNTAX_DEFECT"
	ErrCodeSelectorMismatch = "SELECTOR_MISMATCH"
	ErrCodeCSSMismatch      = "CSS_MISMATCH"
	ErrCodeUnfixable        = "UNFIXABLE"

	// Pipeline stages
	ErrCodeExtractionFailed = "EXTRACTION_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeExecutionFailed  = "EXECUTION_FAILED"
)

// ErrorClass is the failure taxonomy shared by extraction, validation,
// execution and the fixer.
type ErrorClass string

const (
	ClassNone                   ErrorClass = ""
	ClassNotFound               ErrorClass = "NotFound"
	ClassAuthenticationRequired ErrorClass = "AuthenticationRequired"
	ClassTimeout                ErrorClass = "Timeout"
	ClassStructuralDefect       ErrorClass = "StructuralDefect"
	ClassSyntaxDefect           ErrorClass = "SyntaxDefect"
	ClassSelectorMismatch       ErrorClass = "SelectorMismatch"
	ClassCSSMismatch            ErrorClass = "CssMismatch"
	ClassPathTraversal          ErrorClass = "PathTraversal"
	ClassInvalidInput           ErrorClass = "InvalidInput"
	ClassUnfixable              ErrorClass = "Unfixable"
	ClassInternal               ErrorClass = "Internal"
)

// Recoverable reports whether the fixer is allowed to patch errors of this class.
func (c ErrorClass) Recoverable() bool {
	switch c {
	case ClassStructuralDefect, ClassSyntaxDefect, ClassSelectorMismatch:
		return true
	}
	return false
}

var classByCode = map[string]ErrorClass{
	ErrCodeValidation:       ClassInvalidInput,
	ErrCodePathTraversal:    ClassPathTraversal,
	ErrCodeNotFound:         ClassNotFound,
	ErrCodeAuthRequired:     ClassAuthenticationRequired,
	ErrCodeTimeout:          ClassTimeout,
	ErrCodeStructuralDefect: ClassStructuralDefect,
	ErrCodeSyntaxDefect:     ClassSyntaxDefect,
	ErrCodeSelectorMismatch: ClassSelectorMismatch,
	ErrCodeCSSMismatch:      ClassCSSMismatch,
	ErrCodeUnfixable:        ClassUnfixable,
}

// AppError is the base error type for all application errors
type AppError struct {
	// Error code for programmatic handling
	Code string `json:"code"`

	// Human-readable message
	Message string `json:"message"`

	// Detailed description (optional, for developers)
	Details string `json:"details,omitempty"`

	// HTTP status code
	HTTPStatus int `json:"-"`

	// Original error (for error wrapping)
	Cause error `json:"-"`

	// Metadata for additional context
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Timestamp when error occurred
	Timestamp time.Time `json:"timestamp"`

	// Retry information
	Retryable bool `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Class maps the error code onto the failure taxonomy.
func (e *AppError) Class() ErrorClass {
	if c, ok := classByCode[e.Code]; ok {
		return c
	}
	return ClassInternal
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetry marks the error as retryable
func (e *AppError) WithRetry() *AppError {
	e.Retryable = true
	return e
}

// ToJSON serializes the error to JSON
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// NewError creates a new AppError
func NewError(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now().UTC(),
	}
}

// Input errors

func ErrInvalidInput(field, message string) *AppError {
	return NewError(ErrCodeValidation, fmt.Sprintf("invalid %s: %s", field, message), http.StatusBadRequest).
		WithMetadata("field", field)
}

func ErrPathTraversal(path string) *AppError {
	return NewError(ErrCodePathTraversal, fmt.Sprintf("path escapes artifact root: %s", path), http.StatusBadRequest).
		WithMetadata("path", path)
}

// Lookup errors

func ErrNotFound(resource, id string) *AppError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", resource, id), http.StatusNotFound).
		WithMetadata("resource", resource).
		WithMetadata("id", id)
}

func ErrCardNotFound(cardID string) *AppError {
	return ErrNotFound("card", cardID)
}

func ErrAuthRequired(url string) *AppError {
	return NewError(ErrCodeAuthRequired, "authentication required: redirected to login", http.StatusUnauthorized).
		WithMetadata("url", url)
}

func ErrTimeout(operation string) *AppError {
	return NewError(ErrCodeTimeout, fmt.Sprintf("operation timed out: %s", operation), http.StatusGatewayTimeout).
		WithMetadata("operation", operation).
		WithRetry()
}

// Pipeline errors

func ErrExtractionFailed(reason string, err error) *AppError {
	return NewError(ErrCodeExtractionFailed, fmt.Sprintf("extraction failed: %s", reason), http.StatusUnprocessableEntity).
		WithCause(err)
}

func ErrGenerationFailed(reason string, err error) *AppError {
	return NewError(ErrCodeGenerationFailed, fmt.Sprintf("generation failed: %s", reason), http.StatusUnprocessableEntity).
		WithCause(err)
}

func ErrExecutionFailed(reason string, err error) *AppError {
	return NewError(ErrCodeExecutionFailed, fmt.Sprintf("test execution failed: %s", reason), http.StatusUnprocessableEntity).
		WithCause(err)
}

func ErrUnfixable(remaining []string) *AppError {
	return NewError(ErrCodeUnfixable, fmt.Sprintf("%d error(s) have no registered fix", len(remaining)), http.StatusUnprocessableEntity).
		WithMetadata("remaining", remaining)
}

// Helper functions

// AsAppError converts an error to AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ClassOf returns the taxonomy class of err, ClassNone for nil.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Class()
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if c, ok := classByCode[domainErr.Code]; ok {
			return c
		}
	}
	return ClassInternal
}

// Sentinel errors for comparison (used with errors.Is)
var (
	ErrNotFoundSentinel     = NewError(ErrCodeNotFound, "not found", http.StatusNotFound)
	ErrAuthRequiredSentinel = NewError(ErrCodeAuthRequired, "authentication required", http.StatusUnauthorized)
	ErrTimeoutSentinel      = NewError(ErrCodeTimeout, "timeout", http.StatusGatewayTimeout)
	ErrValidationSentinel   = NewError(ErrCodeValidation, "invalid input", http.StatusBadRequest)
)

// DomainError is a structured error for domain operations
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for error comparison
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel domain errors (used with errors.Is)
var (
	ErrNotFoundVal      = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrInvalidInputVal  = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
	ErrPathTraversalVal = &DomainError{Code: ErrCodePathTraversal, Message: "path traversal"}
)

// IsSentinelError checks if err matches a sentinel error
func IsSentinelError(err error, sentinel *DomainError) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == sentinel.Code
	}
	return false
}

// ValidationError creates a validation domain error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
		Err:     ErrInvalidInputVal,
	}
}

// TraversalError creates a path traversal domain error
func TraversalError(path string) *DomainError {
	return &DomainError{
		Code:    ErrCodePathTraversal,
		Message: fmt.Sprintf("path escapes root: %s", path),
		Details: map[string]any{"path": path},
		Err:     ErrPathTraversalVal,
	}
}
