package service

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/payments"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/ziflex/lecho/v3"
)

// newTestService builds a service over an in-memory database and a scripted
// provider, enough to run the orchestration flows end to end.
func newTestService(t *testing.T) (*RenthubService, *mockProvider) {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// the in-memory database lives and dies with its connection
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.User)(nil),
		(*models.Card)(nil),
		(*models.Listing)(nil),
		(*models.Cancellation)(nil),
		(*models.Booking)(nil),
		(*models.Conversation)(nil),
		(*models.Assessment)(nil),
		(*models.Transaction)(nil),
		(*models.TransactionDetail)(nil),
		(*models.PaymentError)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	provider := &mockProvider{}
	svc := &RenthubService{
		Config:    &Config{CardValidityMarginDays: 30},
		DB:        db,
		Logger:    lecho.New(io.Discard),
		Providers: map[string]payments.Provider{common.PaymentProviderStripe: provider},
	}
	return svc, provider
}

func seedBooking(t *testing.T, svc *RenthubService, booking *models.Booking) *models.Booking {
	t.Helper()
	_, err := svc.DB.NewInsert().Model(booking).Exec(context.Background())
	require.NoError(t, err)
	return booking
}

func seedPayin(t *testing.T, svc *RenthubService, bookingID int64, chargeRef string) *models.Transaction {
	t.Helper()
	payin := &models.Transaction{
		BookingID:       bookingID,
		PaymentProvider: common.PaymentProviderStripe,
		ResourceType:    "charge",
		ResourceID:      chargeRef,
		Action:          common.TransactionActionPayin,
		Label:           common.TransactionLabelPayment,
		Payment:         100,
		Cashing:         20,
		Currency:        "EUR",
	}
	require.NoError(t, svc.CreateTransaction(context.Background(), payin, nil))
	return payin
}

func countRows(t *testing.T, svc *RenthubService, model interface{}, bookingID int64) int {
	t.Helper()
	count, err := svc.DB.NewSelect().Model(model).Where("booking_id = ?", bookingID).Count(context.Background())
	require.NoError(t, err)
	return count
}
