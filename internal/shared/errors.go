package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every domain error wraps exactly one of them.
var (
	// ErrNotFound indicates a missing order, line, product or BOM edge.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an operation attempted from a forbidden state.
	ErrInvalidState = errors.New("invalid state")
	// ErrBusinessRule indicates a violated business rule.
	ErrBusinessRule = errors.New("business rule violation")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates an underlying transaction or network failure.
	ErrStorage = errors.New("storage failure")
)

// Error is a coded domain error. Two errors match under errors.Is when
// their codes are equal, so detailed instances match their sentinel.
type Error struct {
	Kind     error
	Code     string
	Message  string
	Products []string
}

// NewError builds a sentinel error of the given kind.
func NewError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if len(e.Products) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Products, ", "))
}

// Unwrap exposes the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Is matches by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithProducts returns a copy naming the offending product codes.
func (e *Error) WithProducts(codes ...string) *Error {
	clone := *e
	clone.Products = append([]string(nil), codes...)
	return &clone
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// Validation returns a validation error with the given message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageError wraps err as a storage failure naming the operation and order.
// Domain errors pass through untouched.
func StorageError(op string, orderID int64, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStorage) {
		return err
	}
	if orderID != 0 {
		return fmt.Errorf("%s order %d: %w: %w", op, orderID, ErrStorage, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Error()
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err.Error()
	}
	return "internal error, please retry or contact support"
}
