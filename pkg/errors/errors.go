package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so callers can decide whether to skip a
// record, fail a patient, or abort the run.
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeExternal   ErrorType = "EXTERNAL"

	// Pipeline stages
	ErrorTypeMalformedReference ErrorType = "MALFORMED_REFERENCE"
	ErrorTypeDownload           ErrorType = "DOWNLOAD"
	ErrorTypeDocumentLoad       ErrorType = "DOCUMENT_LOAD"
	ErrorTypeExtraction         ErrorType = "EXTRACTION"
	ErrorTypeVerification       ErrorType = "VERIFICATION"
	ErrorTypeSynthesis          ErrorType = "SYNTHESIS"
	ErrorTypePublish            ErrorType = "PUBLISH"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError of the given type.
func New(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// IsType reports whether any AppError in err's chain has type t.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}

// TypeOf returns the type of the outermost AppError, or "" if there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return New(ErrorTypeNotFound, message, nil)
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, nil)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return New(ErrorTypeInternal, message, err)
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return New(ErrorTypeExternal, message, err)
}

// NewMalformedReferenceError is returned when a record's file URL cannot be
// split into a bucket and an object path.
func NewMalformedReferenceError(reference string) *AppError {
	return New(ErrorTypeMalformedReference, fmt.Sprintf("malformed file reference %q", reference), nil)
}

func NewDownloadError(message string, err error) *AppError {
	return New(ErrorTypeDownload, message, err)
}

func NewDocumentLoadError(message string, err error) *AppError {
	return New(ErrorTypeDocumentLoad, message, err)
}

func NewExtractionError(message string, err error) *AppError {
	return New(ErrorTypeExtraction, message, err)
}

func NewVerificationError(message string, err error) *AppError {
	return New(ErrorTypeVerification, message, err)
}

func NewSynthesisError(message string, err error) *AppError {
	return New(ErrorTypeSynthesis, message, err)
}

func NewPublishError(message string, err error) *AppError {
	return New(ErrorTypePublish, message, err)
}
