package manifest

import (
	"errors"
	"fmt"
)

// fileNotFoundError indicates that a deployment manifest could not be found.
type fileNotFoundError struct {
	path  string
	cause error
}

func (e *fileNotFoundError) Error() string {
	return fmt.Sprintf("deployment manifest not found: %s", e.path)
}

func (e *fileNotFoundError) Unwrap() error {
	return e.cause
}

// IsFileNotFoundError checks if an error is a fileNotFoundError.
func IsFileNotFoundError(err error) bool {
	var ferr *fileNotFoundError
	return errors.As(err, &ferr)
}

// invalidYAMLError indicates that the manifest contains invalid YAML.
type invalidYAMLError struct {
	cause error
}

func (e *invalidYAMLError) Error() string {
	return fmt.Sprintf("invalid YAML in deployment manifest: %v", e.cause)
}

func (e *invalidYAMLError) Unwrap() error {
	return e.cause
}

// IsInvalidYAMLError checks if an error is an invalidYAMLError.
func IsInvalidYAMLError(err error) bool {
	var yerr *invalidYAMLError
	return errors.As(err, &yerr)
}

// validationError indicates that the manifest failed validation.
type validationError struct {
	message string
	cause   error
}

func (e *validationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("validation failed: %s (%v)", e.message, e.cause)
	}
	return fmt.Sprintf("validation failed: %s", e.message)
}

func (e *validationError) Unwrap() error {
	return e.cause
}

// IsValidationError checks if an error is a validationError.
func IsValidationError(err error) bool {
	var verr *validationError
	return errors.As(err, &verr)
}
