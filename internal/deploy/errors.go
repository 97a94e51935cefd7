package deploy

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates that a caller-supplied service spec is
// self-inconsistent. It is always detected before any resource is
// constructed and is never retried.
type ConfigurationError struct {
	Service string
	Field   string
	Detail  string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for service %q: %s: %s", e.Service, e.Field, e.Detail)
	}
	return fmt.Sprintf("invalid configuration for service %q: %s", e.Service, e.Detail)
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}

// ResourceConflictError indicates that two mutually exclusive resource
// references were supplied together.
type ResourceConflictError struct {
	Service string
	First   string
	Second  string
}

func (e *ResourceConflictError) Error() string {
	return fmt.Sprintf("conflicting resources for service %q: %s and %s cannot both be supplied", e.Service, e.First, e.Second)
}

// IsResourceConflictError checks if an error is a ResourceConflictError.
func IsResourceConflictError(err error) bool {
	var rerr *ResourceConflictError
	return errors.As(err, &rerr)
}

// ExternalResolutionFailure indicates that an externally supplied
// resource reference could not be resolved. No fallback is attempted:
// silently substituting a different network or cluster would be a
// correctness violation.
type ExternalResolutionFailure struct {
	Kind  string
	ID    string
	Cause error
}

func (e *ExternalResolutionFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to resolve %s %q: %v", e.Kind, e.ID, e.Cause)
	}
	return fmt.Sprintf("failed to resolve %s %q", e.Kind, e.ID)
}

func (e *ExternalResolutionFailure) Unwrap() error {
	return e.Cause
}

// IsExternalResolutionFailure checks if an error is an ExternalResolutionFailure.
func IsExternalResolutionFailure(err error) bool {
	var xerr *ExternalResolutionFailure
	return errors.As(err, &xerr)
}
