package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/renthub/renthub.go/db/models"
	"github.com/uptrace/bun"
)

func (svc *RenthubService) FindBookingById(ctx context.Context, bookingID int64) (*models.Booking, error) {
	var booking models.Booking
	err := svc.DB.NewSelect().Model(&booking).Where("id = ?", bookingID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (svc *RenthubService) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := svc.DB.NewSelect().Model(&user).Where("id = ?", userID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (svc *RenthubService) FindCard(ctx context.Context, cardID int64) (*models.Card, error) {
	var card models.Card
	err := svc.DB.NewSelect().Model(&card).Where("id = ?", cardID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "card", ID: cardID}
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// FindInputAssessment returns the hand-over assessment of the booking, or
// nil when none has been created yet.
func (svc *RenthubService) FindInputAssessment(ctx context.Context, bookingID int64) (*models.Assessment, error) {
	var assessment models.Assessment
	err := svc.DB.NewSelect().Model(&assessment).Where("booking_id = ?", bookingID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (svc *RenthubService) UpdateConversationByBookingId(ctx context.Context, bookingID int64, agreementStatus string) error {
	_, err := svc.DB.NewUpdate().
		Model((*models.Conversation)(nil)).
		Set("agreement_status = ?", agreementStatus).
		Set("updated_at = ?", time.Now()).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return err
}

func (svc *RenthubService) ClearListingSoldDate(ctx context.Context, listingID int64) error {
	_, err := svc.DB.NewUpdate().
		Model((*models.Listing)(nil)).
		Set("sold_date = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", listingID).
		Exec(ctx)
	return err
}

func (svc *RenthubService) DecrementListingQuantity(ctx context.Context, listingID int64) error {
	_, err := svc.DB.NewUpdate().
		Model((*models.Listing)(nil)).
		Set("quantity = quantity - 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND quantity > 0", listingID).
		Exec(ctx)
	return err
}

// RecordPaymentError keeps the provider's raw failure payload for support.
// Best effort: a failing insert is logged, the original failure still wins.
func (svc *RenthubService) RecordPaymentError(ctx context.Context, userID, bookingID int64, provider, resultCode, message string, payload json.RawMessage) {
	paymentError := models.PaymentError{
		UserID:          userID,
		BookingID:       bookingID,
		PaymentProvider: provider,
		ResultCode:      resultCode,
		Message:         message,
		ProviderPayload: payload,
	}
	if _, err := svc.DB.NewInsert().Model(&paymentError).Exec(ctx); err != nil {
		svc.Logger.Errorf("Failed to record payment error [booking_id:%d user_id:%d]: %v", bookingID, userID, err)
	}
}

func (svc *RenthubService) updateBooking(ctx context.Context, booking *models.Booking, columns ...string) error {
	booking.UpdatedAt = bun.NullTime{Time: time.Now()}
	columns = append(columns, "updated_at")
	_, err := svc.DB.NewUpdate().
		Model(booking).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return err
}
