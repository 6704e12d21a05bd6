package models

import (
	"time"
)

// Cancellation : one row per cancelled booking. Its presence is the single
// source of truth that the booking is cancelled.
type Cancellation struct {
	ID         int64     `json:"id" bun:",pk,autoincrement"`
	BookingID  int64     `json:"booking_id" bun:",notnull,unique"`
	ReasonType string    `json:"reason_type" bun:",notnull"`
	Reason     string    `json:"reason" bun:",nullzero"`
	OwnerID    int64     `json:"owner_id" bun:",notnull"`
	TakerID    int64     `json:"taker_id" bun:",notnull"`
	Trigger    string    `json:"trigger" bun:",nullzero"`
	CreatedAt  time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
