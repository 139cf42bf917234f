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

// ValidationError indicates invalid input data.
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

// ProviderError indicates an external provider failure.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}

// MissingRecipientAddressError indicates a payload lacks a field a channel requires.
// It is channel-local and never fixed by retrying.
type MissingRecipientAddressError struct {
	Channel string
	Field   string
}

func (e *MissingRecipientAddressError) Error() string {
	return fmt.Sprintf("%s channel requires %s but payload has none", e.Channel, e.Field)
}

// NewMissingRecipientAddressError creates a new MissingRecipientAddressError.
func NewMissingRecipientAddressError(channel, field string) *MissingRecipientAddressError {
	return &MissingRecipientAddressError{Channel: channel, Field: field}
}

// ChannelSendError wraps a transport-level failure reported by a delivery channel.
type ChannelSendError struct {
	Channel string
	Err     error
}

func (e *ChannelSendError) Error() string {
	return fmt.Sprintf("%s channel send failed: %v", e.Channel, e.Err)
}

func (e *ChannelSendError) Unwrap() error {
	return e.Err
}

// NewChannelSendError creates a new ChannelSendError.
func NewChannelSendError(channel string, err error) *ChannelSendError {
	return &ChannelSendError{Channel: channel, Err: err}
}

// UnknownChannelError indicates no registered channel claims a channel kind.
// This is a configuration defect, not a per-notification failure.
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("no channel registered for kind: %s", e.Channel)
}

// NewUnknownChannelError creates a new UnknownChannelError.
func NewUnknownChannelError(channel string) *UnknownChannelError {
	return &UnknownChannelError{Channel: channel}
}

// ConflictError indicates a write lost against a concurrent writer or a unique key.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s '%s' conflicts with an existing record", e.Resource, e.Key)
}

// NewConflictError creates a new ConflictError.
func NewConflictError(resource, key string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key}
}

// StoreError indicates the persistence layer itself failed. It is kept distinct
// from delivery failures so callers never confuse the two.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
