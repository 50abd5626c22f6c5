package types

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound        = &NotFoundError{Resource: "event"}
	ErrTicketWaveNotFound   = &NotFoundError{Resource: "ticket wave"}
	ErrOrderNotFound        = &NotFoundError{Resource: "order"}
	ErrPayoutNotFound       = &NotFoundError{Resource: "payout"}
	ErrPayoutMethodNotFound = &NotFoundError{Resource: "payout method"}
)

// ValidationError covers malformed or out-of-range input. Surfaced as 4xx.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found", e.Resource) }

// ConflictError is returned when a caller loses a reservation race.
// TicketIDs names the specific tickets that were unavailable.
type ConflictError struct {
	Message   string
	TicketIDs []uint
}

func (e *ConflictError) Error() string { return e.Message }

func NewNotEnoughAvailability(ticketIDs []uint) *ConflictError {
	return &ConflictError{
		Message:   "not enough availability",
		TicketIDs: ticketIDs,
	}
}

// StateError marks an operation that is invalid for the entity's
// current status, e.g. confirming an already-cancelled order.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

func NewStateError(format string, args ...any) *StateError {
	return &StateError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
