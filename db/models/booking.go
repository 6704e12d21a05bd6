package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking : financial snapshot of a booking. The payment core patches date
// and cancellation fields; the rest of the booking lifecycle is owned by the
// surrounding application.
type Booking struct {
	ID        int64 `json:"id" bun:",pk,autoincrement"`
	ListingID int64 `json:"listing_id" bun:",notnull"`
	OwnerID   int64 `json:"owner_id" bun:",notnull"`
	TakerID   int64 `json:"taker_id" bun:",notnull"`

	TakerPrice      int64  `json:"taker_price" bun:",nullzero"`
	TakerFees       int64  `json:"taker_fees" bun:",nullzero"`
	Deposit         int64  `json:"deposit" bun:",nullzero"`
	Currency        string `json:"currency" bun:",notnull"`
	PaymentProvider string `json:"payment_provider" bun:",notnull"`

	// Purchase bookings have no rental period and mark the listing as sold.
	Purchase  bool         `json:"purchase" bun:",nullzero"`
	StartDate bun.NullTime `json:"start_date" bun:",nullzero"`
	EndDate   bun.NullTime `json:"end_date" bun:",nullzero"`

	AcceptedDate bun.NullTime `json:"accepted_date" bun:",nullzero"`
	DepositDate  bun.NullTime `json:"deposit_date" bun:",nullzero"`
	PaymentDate  bun.NullTime `json:"payment_date" bun:",nullzero"`
	PaidDate     bun.NullTime `json:"paid_date" bun:",nullzero"`

	CancellationID int64         `json:"cancellation_id" bun:",nullzero"`
	Cancellation   *Cancellation `json:"-" bun:"rel:belongs-to,join:cancellation_id=id"`

	CreatedAt time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt bun.NullTime `json:"updated_at"`
}

// IsPaid reports whether every amount the booking carries has been secured:
// the deposit once a deposit is required, the payment once a price is set.
func (b *Booking) IsPaid() bool {
	if b.Deposit > 0 && b.DepositDate.IsZero() {
		return false
	}
	if b.TakerPrice > 0 && b.PaymentDate.IsZero() {
		return false
	}
	return true
}

// DatesIntersect reports whether the rental periods of two bookings overlap.
// Purchases have no period and always conflict on the same listing.
func (b *Booking) DatesIntersect(other *Booking) bool {
	if b.StartDate.IsZero() || other.StartDate.IsZero() {
		return true
	}
	return !b.EndDate.Time.Before(other.StartDate.Time) && !other.EndDate.Time.Before(b.StartDate.Time)
}
