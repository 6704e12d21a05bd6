package service

import (
	"fmt"
)

// ValidationError : malformed or out-of-enum input. Surfaced to the caller,
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError : a referenced booking, card or user is absent.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// AlreadyCancelledError : the booking already carries a Cancellation.
// Cancelling twice is an error, not a no-op.
type AlreadyCancelledError struct {
	BookingID int64
}

func (e *AlreadyCancelledError) Error() string {
	return fmt.Sprintf("booking %d is already cancelled", e.BookingID)
}

// TooLateToCancelError : the input assessment has been signed, liability has
// shifted and the booking can only be cancelled manually by an operator.
type TooLateToCancelError struct {
	BookingID int64
}

func (e *TooLateToCancelError) Error() string {
	return fmt.Sprintf("booking %d input assessment is signed, cancel it manually", e.BookingID)
}

// TransferAlreadyDoneError : money has left the platform's custody; an
// operator must reverse the transfer explicitly before anything can be
// refunded.
type TransferAlreadyDoneError struct {
	BookingID int64
}

func (e *TransferAlreadyDoneError) Error() string {
	return fmt.Sprintf("booking %d transfer is already done, cancel it manually", e.BookingID)
}

// InvalidCancelConfigError : the requested (payment, takerFees) combination
// is contradictory.
type InvalidCancelConfigError struct {
	Reason string
}

func (e *InvalidCancelConfigError) Error() string {
	return e.Reason
}

// CardInvalidError : the card failed local validation, before any provider
// call.
type CardInvalidError struct {
	Reason string
}

func (e *CardInvalidError) Error() string {
	return "card invalid: " + e.Reason
}

// PreauthorizationFailedError : the provider rejected the preauthorization.
// ResultCode is the provider's result/outcome code.
type PreauthorizationFailedError struct {
	Provider   string
	ResultCode string
}

func (e *PreauthorizationFailedError) Error() string {
	return fmt.Sprintf("preauthorization failed (%s result code %s)", e.Provider, e.ResultCode)
}
