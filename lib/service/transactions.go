package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/ledger"
)

// CreateTransaction appends one ledger row and its breakdown lines in a
// single database transaction. Ledger rows are never updated afterwards.
func (svc *RenthubService) CreateTransaction(ctx context.Context, transaction *models.Transaction, details []*models.TransactionDetail) error {
	if err := validate.Struct(transaction); err != nil {
		return &ValidationError{Field: "transaction", Reason: err.Error()}
	}
	if transaction.CancelTransactionID != 0 {
		// each transaction can be reversed by at most one cancel row; the
		// partial unique index is the backstop for concurrent writers
		exists, err := svc.DB.NewSelect().
			Model((*models.Transaction)(nil)).
			Where("cancel_transaction_id = ?", transaction.CancelTransactionID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("transaction %d is already cancelled", transaction.CancelTransactionID)
		}
	}

	tx, err := svc.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.NewInsert().Model(transaction).Exec(ctx); err != nil {
		tx.Rollback()
		return err
	}
	for _, detail := range details {
		detail.TransactionID = transaction.ID
		detail.BookingID = transaction.BookingID
		if _, err = tx.NewInsert().Model(detail).Exec(ctx); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// saveTransactionWithRetry records a ledger row for an operation the
// provider already executed. The provider call is the source of truth, so a
// bookkeeping failure is retried here and only here, never by re-issuing the
// provider call.
func (svc *RenthubService) saveTransactionWithRetry(ctx context.Context, transaction *models.Transaction, details []*models.TransactionDetail) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.MaxInterval = 5 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		return svc.CreateTransaction(ctx, transaction, details)
	}, backoff.WithContext(exponentialBackoff, ctx))
	if err != nil {
		svc.Logger.Errorf("Failed to record ledger row after provider success [booking_id:%d action:%s label:%s resource:%s]: %v",
			transaction.BookingID, transaction.Action, transaction.Label, transaction.ResourceID, err)
	}
	return err
}

// LoadSnapshot reads every ledger row of the booking, in storage order, into
// an immutable snapshot.
func (svc *RenthubService) LoadSnapshot(ctx context.Context, bookingID int64) (*ledger.Snapshot, error) {
	var transactions []*models.Transaction
	err := svc.DB.NewSelect().Model(&transactions).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	var details []*models.TransactionDetail
	err = svc.DB.NewSelect().Model(&details).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.NewSnapshot(transactions, details), nil
}
