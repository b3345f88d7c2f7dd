package common

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data, e.g. a rule priority outside
// [0,100] or a quiet-hours window without a timezone. Raised at write time so
// malformed records never reach resolution.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// ConfigurationError indicates a record references something the system does
// not support (unknown channel, unknown condition operator). Like validation
// errors it is surfaced at save time, never during resolution.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}

// CollaboratorUnavailableError indicates an external collaborator (membership,
// follower, or ledger lookup) failed or timed out.
type CollaboratorUnavailableError struct {
	Collaborator string
	Message      string
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Collaborator, e.Message)
}

// NewCollaboratorUnavailableError creates a new CollaboratorUnavailableError.
func NewCollaboratorUnavailableError(collaborator, message string) *CollaboratorUnavailableError {
	return &CollaboratorUnavailableError{Collaborator: collaborator, Message: message}
}
