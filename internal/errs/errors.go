// Package errs defines the error taxonomy shared by the engine, the stores
// and the HTTP layer.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	CodeValidation              Code = "VALIDATION"
	CodeInvalidState            Code = "INVALID_STATE"
	CodePermission              Code = "PERMISSION_DENIED"
	CodeEmptyRequest            Code = "EMPTY_REQUEST"
	CodeQuantityExceedsRequest  Code = "QUANTITY_EXCEEDS_REQUEST"
	CodeOverShipment            Code = "OVER_SHIPMENT"
	CodeDiscrepancyReasonNeeded Code = "DISCREPANCY_REASON_REQUIRED"
	CodeInsufficientStock       Code = "INSUFFICIENT_STOCK"
	CodeNotFound                Code = "NOT_FOUND"
	CodeConflict                Code = "CONFLICT"
	CodeTimeout                 Code = "TIMEOUT"
	CodeInternal                Code = "INTERNAL"
)

// Error is the single error type carried across package boundaries.
// errors.Is matches two *Error values by Code, so the sentinels below can be
// used as comparison targets.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation              = &Error{Code: CodeValidation}
	ErrInvalidState            = &Error{Code: CodeInvalidState}
	ErrPermission              = &Error{Code: CodePermission}
	ErrEmptyRequest            = &Error{Code: CodeEmptyRequest}
	ErrQuantityExceedsRequest  = &Error{Code: CodeQuantityExceedsRequest}
	ErrOverShipment            = &Error{Code: CodeOverShipment}
	ErrDiscrepancyReasonNeeded = &Error{Code: CodeDiscrepancyReasonNeeded}
	ErrInsufficientStock       = &Error{Code: CodeInsufficientStock}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrConflict                = &Error{Code: CodeConflict}
	ErrTimeout                 = &Error{Code: CodeTimeout}
	ErrInternal                = &Error{Code: CodeInternal}
)

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(CodeInvalidState, format, args...)
}

func Permission(format string, args ...any) *Error {
	return New(CodePermission, format, args...)
}

func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
		Details: map[string]string{"kind": kind, "id": id},
	}
}

// InsufficientStock reports a decrement that would drive availableQty negative.
func InsufficientStock(skuID, warehouseID string, requested, available int) *Error {
	return &Error{
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s at %s: requested %d, available %d", skuID, warehouseID, requested, available),
		Details: map[string]string{
			"skuID":       skuID,
			"warehouseID": warehouseID,
			"requested":   fmt.Sprintf("%d", requested),
			"available":   fmt.Sprintf("%d", available),
		},
	}
}

// CodeOf returns the category of err, or CodeInternal for anything that is
// not an *Error. A deadline anywhere in the chain is a timeout.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Normalize maps a raw error returned by a store or the context package onto
// the taxonomy. Already categorised errors pass through; a lost
// compare-and-set becomes an invalid-state error.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	switch CodeOf(err) {
	case CodeTimeout:
		var e *Error
		if errors.As(err, &e) && e.Code == CodeTimeout {
			return err
		}
		return &Error{Code: CodeTimeout, Message: "operation timed out", Err: err}
	case CodeConflict:
		return &Error{Code: CodeInvalidState, Message: "request was modified concurrently", Err: err}
	case CodeInternal:
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return &Error{Code: CodeInternal, Message: "internal error", Err: err}
	}
	return err
}
