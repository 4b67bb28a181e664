package model

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is; the typed errors below carry details.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrDuplicate        = errors.New("duplicate")
	ErrTransport        = errors.New("transport failed")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Retryable() bool      { return false }

type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind string, id any) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Retryable() bool      { return false }

type InvalidRecipientError struct {
	Address string
	Reason  string
}

func (e *InvalidRecipientError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("invalid recipient: %s", e.Reason)
	}
	return fmt.Sprintf("invalid recipient %q: %s", e.Address, e.Reason)
}

func (e *InvalidRecipientError) Is(target error) bool { return target == ErrInvalidRecipient }
func (e *InvalidRecipientError) Retryable() bool      { return false }

type DuplicateError struct {
	Kind  string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Value)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }
func (e *DuplicateError) Retryable() bool      { return false }

// TransportError wraps a failure at the email infrastructure boundary.
type TransportError struct {
	To  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending to %s: %v", e.To, e.Err)
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
func (e *TransportError) Retryable() bool      { return true }
