package models

import (
	"encoding/json"
	"time"
)

// PaymentError : raw provider failure kept for support and reconciliation.
type PaymentError struct {
	ID              int64           `json:"id" bun:",pk,autoincrement"`
	UserID          int64           `json:"user_id" bun:",nullzero"`
	BookingID       int64           `json:"booking_id" bun:",nullzero"`
	PaymentProvider string          `json:"payment_provider" bun:",notnull"`
	ResultCode      string          `json:"result_code" bun:",nullzero"`
	Message         string          `json:"message" bun:",nullzero"`
	ProviderPayload json.RawMessage `json:"provider_payload" bun:"type:jsonb,nullzero"`
	CreatedAt       time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
