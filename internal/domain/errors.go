// Package domain contains the bibliographic types, identifier extraction, and errors.
// Domain errors represent resolution-level failures, NOT HTTP errors.
// They are infrastructure-agnostic and can be mapped to HTTP/CLI output by adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates a source has no data for the requested identifier.
	ErrNotFound = errors.New("not found")

	// ErrIdentifierNotFound indicates no identifier could be located in the input text.
	ErrIdentifierNotFound = errors.New("identifier not found")

	// ErrRecordNotFound indicates no source produced a usable record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidIdentifier indicates a source rejected the identifier as malformed.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrValidation indicates input validation failed.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a source could not be reached or returned garbage.
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundError reports that a single source has nothing for an identifier.
type NotFoundError struct {
	Source string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s has no record for %q", e.Source, e.ID)
	}

	return e.Source + ": no record"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(source, id string) error {
	return &NotFoundError{Source: source, ID: id}
}

// IdentifierNotFoundError is returned when extraction finds no identifier in the input.
type IdentifierNotFoundError struct {
	Kind  string
	Input string
}

// Error implements the error interface.
func (e *IdentifierNotFoundError) Error() string {
	return fmt.Sprintf("no %s found in %q", e.Kind, e.Input)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *IdentifierNotFoundError) Unwrap() error {
	return ErrIdentifierNotFound
}

// NewIdentifierNotFoundError creates an identifier not found error.
func NewIdentifierNotFoundError(kind, input string) error {
	return &IdentifierNotFoundError{Kind: kind, Input: input}
}

// RecordNotFoundError is returned by the reconciler when every source came back empty.
type RecordNotFoundError struct {
	ISBN string
}

// Error implements the error interface.
func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("no source returned a record for ISBN %s", e.ISBN)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *RecordNotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// NewRecordNotFoundError creates a record not found error.
func NewRecordNotFoundError(isbn string) error {
	return &RecordNotFoundError{ISBN: isbn}
}

// InvalidIdentifierError is returned when an authoritative source rejects the identifier.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

// Error implements the error interface.
func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Value)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *InvalidIdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// NewInvalidIdentifierError creates an invalid identifier error.
func NewInvalidIdentifierError(kind, value string) error {
	return &InvalidIdentifierError{Kind: kind, Value: value}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnavailableError is the source-unavailable condition: transport failure,
// non-success status, or an undecodable body.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("source %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("source %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// IsNotFound reports whether err means "no data", from one source or from all of them.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRecordNotFound)
}

// IsIdentifierNotFound checks if an error is an identifier extraction failure.
func IsIdentifierNotFound(err error) bool {
	return errors.Is(err, ErrIdentifierNotFound)
}

// IsInvalidIdentifier checks if an error is an invalid identifier error.
func IsInvalidIdentifier(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
