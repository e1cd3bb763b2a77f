// Package errors provides the error taxonomy shared by the workbook tools.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Every failure surfaced at the tool boundary
// unwraps to exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrRemoteTimeout     = errors.New("remote timeout")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
)

// Kind names used in structured tool results.
const (
	KindValidation        = "ValidationError"
	KindNotFound          = "NotFound"
	KindShapeMismatch     = "ShapeMismatch"
	KindRemoteUnavailable = "RemoteUnavailable"
	KindRemoteTimeout     = "RemoteTimeout"
	KindConflict          = "Conflict"
	KindUnauthorized      = "Unauthorized"
	KindInternal          = "InternalError"
)

var kinds = []struct {
	target error
	name   string
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrShapeMismatch, KindShapeMismatch},
	{ErrRemoteTimeout, KindRemoteTimeout},
	{ErrRemoteUnavailable, KindRemoteUnavailable},
	{ErrConflict, KindConflict},
	{ErrUnauthorized, KindUnauthorized},
}

// Kind returns the taxonomy name for err, or KindInternal when err does not
// wrap any of the sentinels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return KindInternal
}

// ValidationError represents a bad or missing input field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ShapeError reports a disagreement between a range address and its values.
type ShapeError struct {
	Address     string
	WantRows    int
	WantColumns int
	GotRows     int
	GotColumns  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: address %s spans %dx%d but values are %dx%d",
		e.Address, e.WantRows, e.WantColumns, e.GotRows, e.GotColumns)
}

// Unwrap lets errors.Is match ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// StoreError represents a failed call against the spreadsheet store.
type StoreError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("store error [%s] HTTP %d: %s", e.Op, e.Status, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("store error [%s]: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError. kind must be one of the sentinels.
func NewStoreError(op string, status int, message string, kind error) *StoreError {
	return &StoreError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     kind,
	}
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
