package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Conversation : the owner/taker thread attached to a booking. The payment
// core only ever patches the agreement status and assessment link.
type Conversation struct {
	ID                int64        `json:"id" bun:",pk,autoincrement"`
	BookingID         int64        `json:"booking_id" bun:",notnull"`
	AgreementStatus   string       `json:"agreement_status" bun:",nullzero"`
	InputAssessmentID int64        `json:"input_assessment_id" bun:",nullzero"`
	CreatedAt         time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt         bun.NullTime `json:"updated_at"`
}

// Assessment : record of the physical hand-over of the listed item. Once
// signed, liability has shifted and automatic cancellation is refused.
type Assessment struct {
	ID         int64        `json:"id" bun:",pk,autoincrement"`
	BookingID  int64        `json:"booking_id" bun:",notnull"`
	SignedDate bun.NullTime `json:"signed_date" bun:",nullzero"`
	CreatedAt  time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

func (a *Assessment) IsSigned() bool {
	return !a.SignedDate.IsZero()
}

// Listing : the rented or sold item. The core clears SoldDate on purchase
// cancellation and decrements Quantity when a booking is paid.
type Listing struct {
	ID        int64        `json:"id" bun:",pk,autoincrement"`
	OwnerID   int64        `json:"owner_id" bun:",notnull"`
	Quantity  int64        `json:"quantity" bun:",notnull,default:1"`
	SoldDate  bun.NullTime `json:"sold_date" bun:",nullzero"`
	CreatedAt time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt bun.NullTime `json:"updated_at"`
}
