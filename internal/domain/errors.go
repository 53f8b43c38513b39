package domain

import (
	"errors"
	"fmt"
	"strings"
)

type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type SeatSelectionReason string

const (
	SeatsNotFound    SeatSelectionReason = "not_found"
	SeatsUnavailable SeatSelectionReason = "unavailable"
	SeatsDuplicated  SeatSelectionReason = "duplicate"
)

// InvalidSeatSelectionError rejects a whole seat selection. Reason tells the
// client whether the seats are missing from the trip or already taken.
type InvalidSeatSelectionError struct {
	Reason  SeatSelectionReason
	SeatIDs []string
}

func (e InvalidSeatSelectionError) Error() string {
	var msg string
	switch e.Reason {
	case SeatsNotFound:
		msg = "some seats not found"
	case SeatsDuplicated:
		msg = "duplicate seats in selection"
	default:
		msg = "some seats are not available"
	}
	if len(e.SeatIDs) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(e.SeatIDs, ", "))
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg == "" {
		return "forbidden"
	}
	return e.Msg
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e InvalidTransitionError) Error() string {
	switch {
	case e.From == BookingStatusCancelled && e.To == BookingStatusCancelled:
		return "booking is already cancelled"
	case e.From == BookingStatusCompleted && e.To == BookingStatusCancelled:
		return "cannot cancel completed booking"
	}
	return fmt.Sprintf("booking cannot move from %s to %s", e.From, e.To)
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	if e.Msg == "" {
		return "unauthorized"
	}
	return e.Msg
}

// ErrDuplicateOrderID is returned by storage when a generated order id collides.
var ErrDuplicateOrderID = errors.New("duplicate order id")

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsInvalidSeatSelection(err error) bool {
	var target InvalidSeatSelectionError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target InvalidTransitionError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}
