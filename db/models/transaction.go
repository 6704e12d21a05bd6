package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Transaction : immutable ledger entry. Rows are appended after the
// corresponding provider call succeeded and are never updated or deleted.
// All amounts are integer minor units of Currency.
type Transaction struct {
	ID              int64    `json:"id" bun:",pk,autoincrement"`
	BookingID       int64    `json:"booking_id" bun:",notnull" validate:"required"`
	Booking         *Booking `json:"-" bun:"rel:belongs-to,join:booking_id=id"`
	PaymentProvider string   `json:"payment_provider" bun:",notnull" validate:"required,oneof=stripe mangopay"`

	// Provider-side object backing this entry (payment intent, payin,
	// transfer, payout, ...).
	ResourceType string `json:"resource_type" bun:",nullzero"`
	ResourceID   string `json:"resource_id" bun:",nullzero"`

	Credit        int64  `json:"credit" bun:",nullzero"`
	Debit         int64  `json:"debit" bun:",nullzero"`
	Payment       int64  `json:"payment" bun:",nullzero"`
	Cashing       int64  `json:"cashing" bun:",nullzero"`
	PreauthAmount int64  `json:"preauth_amount" bun:",nullzero"`
	PayoutAmount  int64  `json:"payout_amount" bun:",nullzero"`
	Currency      string `json:"currency" bun:",nullzero"`

	// (Action, Label) is the transaction type.
	Action string `json:"action" bun:",notnull" validate:"required,oneof=preauthorization payin transfer payout"`
	Label  string `json:"label" bun:",notnull" validate:"required"`

	// When set, this row reverses the referenced transaction. A given
	// transaction can be referenced by at most one cancel row.
	CancelTransactionID int64 `json:"cancel_transaction_id" bun:",nullzero"`

	PreauthExpirationDate bun.NullTime `json:"preauth_expiration_date" bun:",nullzero"`
	ProviderCreatedDate   bun.NullTime `json:"provider_created_date" bun:",nullzero"`
	ExecutionDate         bun.NullTime `json:"execution_date" bun:",nullzero"`
	CreatedAt             time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

// TransactionDetail : breakdown line of one Transaction, for display and
// reporting. The parent transaction's amounts stay authoritative for
// provider reconciliation.
type TransactionDetail struct {
	ID            int64        `json:"id" bun:",pk,autoincrement"`
	TransactionID int64        `json:"transaction_id" bun:",notnull"`
	Transaction   *Transaction `json:"-" bun:"rel:belongs-to,join:transaction_id=id"`
	BookingID     int64        `json:"booking_id" bun:",notnull"`
	Label         string       `json:"label" bun:",notnull"`
	Credit        int64        `json:"credit" bun:",nullzero"`
	Debit         int64        `json:"debit" bun:",nullzero"`
	Payment       int64        `json:"payment" bun:",nullzero"`
	Cashing       int64        `json:"cashing" bun:",nullzero"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
