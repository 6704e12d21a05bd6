package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User : the slice of the user record the payment core needs. CustomerID is
// the payer reference at the provider, AccountID the provider sub-account
// credited by transfers, BankAccountID the payout destination on file (may
// be empty).
type User struct {
	ID            int64        `json:"id" bun:",pk,autoincrement"`
	CustomerID    string       `json:"customer_id" bun:",nullzero"`
	AccountID     string       `json:"account_id" bun:",nullzero"`
	BankAccountID string       `json:"bank_account_id" bun:",nullzero"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime `json:"updated_at"`
}

// Card : stored payment method reference. ResourceID points at the
// provider-side card or payment method object.
type Card struct {
	ID              int64     `json:"id" bun:",pk,autoincrement"`
	UserID          int64     `json:"user_id" bun:",notnull"`
	User            *User     `json:"-" bun:"rel:belongs-to,join:user_id=id"`
	PaymentProvider string    `json:"payment_provider" bun:",notnull"`
	ResourceID      string    `json:"resource_id" bun:",notnull"`
	ExpirationMonth int       `json:"expiration_month" bun:",notnull"`
	ExpirationYear  int       `json:"expiration_year" bun:",notnull"`
	Active          bool      `json:"active" bun:",notnull,default:true"`
	CreatedAt       time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

// ExpirationDate is the last instant the card is valid: the end of its
// expiration month.
func (c *Card) ExpirationDate() time.Time {
	firstOfMonth := time.Date(c.ExpirationYear, time.Month(c.ExpirationMonth), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, 0).Add(-time.Second)
}
