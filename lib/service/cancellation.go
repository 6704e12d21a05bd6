package service

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/ledger"
	"github.com/renthub/renthub.go/payments"
)

// CancelArgs describes one cancellation request.
type CancelArgs struct {
	BookingID  int64  `json:"bookingId" validate:"required"`
	ReasonType string `json:"reasonType" validate:"required"`
	// free-text complement to ReasonType, shown to the other party
	Reason  string `json:"reason"`
	Trigger string `json:"trigger" validate:"required"`

	CancelPayment  bool                 `json:"cancelPayment"`
	PaymentOptions CancelPaymentOptions `json:"paymentOptions"`
}

// DefaultCancelArgs is the friendly cancellation: reverse the payment and
// give everything back.
func DefaultCancelArgs(bookingID int64, reasonType, trigger string) CancelArgs {
	return CancelArgs{
		BookingID:      bookingID,
		ReasonType:     reasonType,
		Trigger:        trigger,
		CancelPayment:  true,
		PaymentOptions: DefaultCancelPaymentOptions(),
	}
}

// CancelBooking cancels a booking: it reverses the money per the requested
// options, updates the surrounding records and stamps the cancellation on the
// booking. All checks run before any side effect, so a refused cancellation
// leaves everything untouched.
func (svc *RenthubService) CancelBooking(ctx context.Context, args CancelArgs) (*models.Cancellation, error) {
	if err := validate.Struct(args); err != nil {
		return nil, &ValidationError{Field: "args", Reason: err.Error()}
	}
	if !common.CancellationReasons[args.ReasonType] {
		return nil, &ValidationError{Field: "reasonType", Reason: "unknown cancellation reason " + args.ReasonType}
	}
	if !common.CancellationTriggers[args.Trigger] {
		return nil, &ValidationError{Field: "trigger", Reason: "unknown cancellation trigger " + args.Trigger}
	}

	booking, err := svc.FindBookingById(ctx, args.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.CancellationID != 0 {
		return nil, &AlreadyCancelledError{BookingID: booking.ID}
	}
	assessment, err := svc.FindInputAssessment(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if assessment != nil && assessment.IsSigned() {
		// the item changed hands, liability has shifted; an operator must
		// settle this one by hand
		return nil, &TooLateToCancelError{BookingID: booking.ID}
	}

	if args.CancelPayment {
		snap, err := svc.LoadSnapshot(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		plan, err := resolveCancelPayment(booking, snap, args.PaymentOptions)
		if err != nil {
			return nil, err
		}
		if err = svc.executeCancelPlan(ctx, booking, snap, plan); err != nil {
			return nil, err
		}
	}

	if status := agreementStatusForCancellation(args); status != "" {
		if err := svc.UpdateConversationByBookingId(ctx, booking.ID, status); err != nil {
			svc.Logger.Errorf("Failed to update conversation [booking_id:%d]: %v", booking.ID, err)
		}
	}
	if booking.Purchase {
		if err := svc.ClearListingSoldDate(ctx, booking.ListingID); err != nil {
			svc.Logger.Errorf("Failed to clear listing sold date [listing_id:%d booking_id:%d]: %v", booking.ListingID, booking.ID, err)
		}
	}

	cancellation := &models.Cancellation{
		BookingID:  booking.ID,
		ReasonType: args.ReasonType,
		Reason:     args.Reason,
		OwnerID:    booking.OwnerID,
		TakerID:    booking.TakerID,
		Trigger:    args.Trigger,
	}
	tx, err := svc.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err = tx.NewInsert().Model(cancellation).Exec(ctx); err != nil {
		tx.Rollback()
		return nil, err
	}
	booking.CancellationID = cancellation.ID
	if _, err = tx.NewUpdate().Model(booking).Column("cancellation_id").WherePK().Exec(ctx); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	svc.EmitEvent(ctx, Event{Type: common.EventBookingCancelled, BookingID: booking.ID, UserID: booking.TakerID})
	return cancellation, nil
}

// executeCancelPlan runs the provider operations the plan asks for and
// records their ledger rows. Each provider call is followed by its own
// bookkeeping write, so a late failure never re-issues an earlier call.
func (svc *RenthubService) executeCancelPlan(ctx context.Context, booking *models.Booking, snap *ledger.Snapshot, plan *cancelPaymentPlan) error {
	if plan.NoOp {
		return nil
	}
	if plan.CompleteTransfer {
		transfer, err := svc.transferPayment(ctx, booking, snap)
		if err != nil {
			return err
		}
		if _, err = svc.payoutPayment(ctx, booking, snap.Add(transfer, nil)); err != nil {
			return err
		}
		return nil
	}
	provider, err := svc.ProviderFor(booking.PaymentProvider)
	if err != nil {
		return err
	}

	for _, preauth := range plan.VoidPreauths {
		if err := provider.CancelPreauthorization(ctx, preauth.ResourceID); err != nil {
			return svc.providerFailure(ctx, booking.TakerID, booking.ID, provider.Name(), err)
		}
		cancelRow := &models.Transaction{
			BookingID:           booking.ID,
			PaymentProvider:     booking.PaymentProvider,
			Action:              common.TransactionActionPreauthorization,
			Label:               preauth.Label,
			PreauthAmount:       preauth.PreauthAmount,
			Currency:            booking.Currency,
			CancelTransactionID: preauth.ID,
		}
		if err := svc.saveTransactionWithRetry(ctx, cancelRow, nil); err != nil {
			return err
		}
	}

	if plan.Refund != nil {
		payin := plan.Refund.Payin
		data, err := provider.Refund(ctx, payin.ResourceID, payments.RefundOptions{
			Amount:     plan.Refund.Amount,
			RefundFees: plan.Refund.RefundFees,
		})
		if err != nil {
			return svc.providerFailure(ctx, booking.TakerID, booking.ID, provider.Name(), err)
		}
		cancelRow := &models.Transaction{
			BookingID:           booking.ID,
			PaymentProvider:     booking.PaymentProvider,
			Action:              common.TransactionActionPayin,
			Label:               common.TransactionLabelPayment,
			Payment:             plan.Refund.Amount,
			Currency:            booking.Currency,
			CancelTransactionID: payin.ID,
		}
		if plan.Refund.RefundFees {
			cancelRow.Cashing = payin.Cashing
		}
		applyProviderData(cancelRow, data)
		if err := svc.saveTransactionWithRetry(ctx, cancelRow, nil); err != nil {
			return err
		}

		if plan.FeeTransfer > 0 {
			owner, err := svc.FindUser(ctx, booking.OwnerID)
			if err != nil {
				return err
			}
			data, err := provider.Transfer(ctx, owner.AccountID, plan.FeeTransfer, booking.Currency, payin.ResourceID)
			if err != nil {
				return svc.providerFailure(ctx, booking.OwnerID, booking.ID, provider.Name(), err)
			}
			feeRow := &models.Transaction{
				BookingID:       booking.ID,
				PaymentProvider: booking.PaymentProvider,
				Action:          common.TransactionActionTransfer,
				Label:           common.TransactionLabelTakerFees,
				Credit:          plan.FeeTransfer,
				Currency:        booking.Currency,
			}
			applyProviderData(feeRow, data)
			if err := svc.saveTransactionWithRetry(ctx, feeRow, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// agreementStatusForCancellation maps the cancellation to the status the
// booking's conversation should display, or "" to leave it alone.
func agreementStatusForCancellation(args CancelArgs) string {
	switch args.ReasonType {
	case common.CancellationReasonRejected:
		return common.AgreementStatusRejected
	case common.CancellationReasonOtherBookingFirst, common.CancellationReasonItemSold, common.CancellationReasonOutOfStock:
		return common.AgreementStatusRejectedByOther
	default:
		return common.AgreementStatusCancelled
	}
}

// CancelIntersectionBookings cancels the not-yet-paid bookings whose rental
// period overlaps the one that was just secured. Each failure is reported
// and skipped; one stuck booking must not block the others.
func (svc *RenthubService) CancelIntersectionBookings(ctx context.Context, booking *models.Booking) {
	candidates, err := svc.findCompetingBookings(ctx, booking)
	if err != nil {
		svc.Logger.Errorf("Failed to list competing bookings [booking_id:%d]: %v", booking.ID, err)
		sentry.CaptureException(err)
		return
	}
	for _, candidate := range candidates {
		if !booking.DatesIntersect(candidate) {
			continue
		}
		args := DefaultCancelArgs(candidate.ID, common.CancellationReasonOtherBookingFirst, common.CancellationTriggerSystem)
		if _, err := svc.CancelBooking(ctx, args); err != nil {
			svc.Logger.Errorf("Failed to cancel competing booking [booking_id:%d competing_id:%d]: %v", booking.ID, candidate.ID, err)
			sentry.CaptureException(err)
		}
	}
}

// CancelBookingsFromSameItem cancels every other not-yet-paid booking of a
// listing that was just sold.
func (svc *RenthubService) CancelBookingsFromSameItem(ctx context.Context, booking *models.Booking) {
	candidates, err := svc.findCompetingBookings(ctx, booking)
	if err != nil {
		svc.Logger.Errorf("Failed to list bookings of sold listing [booking_id:%d]: %v", booking.ID, err)
		sentry.CaptureException(err)
		return
	}
	for _, candidate := range candidates {
		args := DefaultCancelArgs(candidate.ID, common.CancellationReasonItemSold, common.CancellationTriggerSystem)
		if _, err := svc.CancelBooking(ctx, args); err != nil {
			svc.Logger.Errorf("Failed to cancel booking of sold listing [booking_id:%d other_id:%d]: %v", booking.ID, candidate.ID, err)
			sentry.CaptureException(err)
		}
	}
}

func (svc *RenthubService) findCompetingBookings(ctx context.Context, booking *models.Booking) ([]*models.Booking, error) {
	var candidates []*models.Booking
	err := svc.DB.NewSelect().Model(&candidates).
		Where("listing_id = ?", booking.ListingID).
		Where("id != ?", booking.ID).
		Where("cancellation_id IS NULL").
		Where("paid_date IS NULL").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
