package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("product not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrPersistence        = errors.New("persistence failed")
	ErrNotification       = errors.New("notification failed")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateKey      = errors.New("duplicate idempotency key")
)

// Validation codes, used to pick a localized message.
const (
	CodeNameTooShort     = "name_too_short"
	CodePhoneInvalid     = "phone_invalid"
	CodeItemsEmpty       = "items_empty"
	CodeQuantityRange    = "quantity_out_of_range"
	CodeProductIDMissing = "product_id_missing"
	CodeMalformedBody    = "malformed_body"
	CodeIdempotencyKey   = "idempotency_key_too_long"
)

type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Code)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProductError names the product behind an ErrNotFound or ErrProductUnavailable.
type ProductError struct {
	ProductID string
	Name      string
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

// PersistenceError reports which write stage failed.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at %s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// TransitionError is an ErrInvalidTransition with the statuses involved.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
