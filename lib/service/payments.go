package service

import (
	"context"
	"errors"
	"time"

	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/ledger"
	"github.com/renthub/renthub.go/lib/tokens"
	"github.com/renthub/renthub.go/payments"
	"github.com/uptrace/bun"
)

// PreauthorizationOutcome is what the caller gets back from a
// preauthorization attempt. Exactly one of Transaction (the hold is placed)
// or RedirectURL+VerificationToken (the payer must complete 3-D Secure) is
// set.
type PreauthorizationOutcome struct {
	Status            string
	RedirectURL       string
	VerificationToken string
	Transaction       *models.Transaction
}

// CreatePreauthorization places a hold on the taker's card for the given
// operation. When the provider requires 3-D Secure no ledger row is written;
// the hold is recorded by FinalizePreauthorization once the payer returns.
func (svc *RenthubService) CreatePreauthorization(ctx context.Context, bookingID, cardID int64, operation string) (*PreauthorizationOutcome, error) {
	label, err := labelForOperation(operation)
	if err != nil {
		return nil, err
	}
	booking, err := svc.FindBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	amount, err := amountForOperation(booking, operation)
	if err != nil {
		return nil, err
	}
	card, err := svc.FindCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err = svc.validateCard(card, booking); err != nil {
		return nil, err
	}
	snap, err := svc.LoadSnapshot(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing := snap.FirstNonCancelled(preauthFilter(label)); existing != nil {
		// the hold is already placed, return it instead of charging twice
		return &PreauthorizationOutcome{Status: payments.PreauthStatusSucceeded, Transaction: existing}, nil
	}
	taker, err := svc.FindUser(ctx, booking.TakerID)
	if err != nil {
		return nil, err
	}
	provider, err := svc.ProviderFor(booking.PaymentProvider)
	if err != nil {
		return nil, err
	}

	result, err := provider.CreatePreauthorization(ctx, &payments.PreauthorizationRequest{
		UserRef:    taker.CustomerID,
		CardRef:    card.ResourceID,
		Amount:     amount,
		Currency:   booking.Currency,
		SecureMode: true,
		ReturnURL:  svc.Config.SecureModeReturnUrl,
	})
	if err != nil {
		return nil, svc.providerFailure(ctx, booking.TakerID, booking.ID, provider.Name(), err)
	}

	switch result.Status {
	case payments.PreauthStatusPending3DS:
		token, err := tokens.GenerateVerificationToken(svc.Config.JWTSecret, svc.Config.VerificationTokenExpiry, booking.TakerID, booking.ID, operation)
		if err != nil {
			return nil, err
		}
		return &PreauthorizationOutcome{
			Status:            result.Status,
			RedirectURL:       result.RedirectURL,
			VerificationToken: token,
		}, nil
	case payments.PreauthStatusSucceeded:
		transaction, err := svc.recordPreauthorization(ctx, booking, operation, amount, result.Data)
		if err != nil {
			return nil, err
		}
		return &PreauthorizationOutcome{Status: result.Status, Transaction: transaction}, nil
	default:
		resultCode := ""
		if result.Data != nil {
			resultCode = result.Data.ResultCode
			svc.RecordPaymentError(ctx, booking.TakerID, booking.ID, provider.Name(), result.Data.ResultCode, result.Data.Status, result.Data.Raw)
		}
		return nil, &PreauthorizationFailedError{Provider: provider.Name(), ResultCode: resultCode}
	}
}

// FinalizePreauthorization completes a 3-D Secure round trip. The token binds
// the return to the attempt it was issued for; the provider result is what
// the payer's return reported.
func (svc *RenthubService) FinalizePreauthorization(ctx context.Context, tokenString string, result *payments.PreauthorizationResult) (*models.Transaction, error) {
	userID, bookingID, operation, err := tokens.ParseVerificationToken(svc.Config.JWTSecret, tokenString)
	if err != nil {
		return nil, &ValidationError{Field: "verificationToken", Reason: err.Error()}
	}
	booking, err := svc.FindBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TakerID != userID {
		return nil, &ValidationError{Field: "verificationToken", Reason: "token does not belong to the booking's taker"}
	}
	return svc.AfterPreauthorizationReturn(ctx, booking, operation, result)
}

// AfterPreauthorizationReturn records the outcome of a preauthorization the
// provider has already decided, typically after a 3-D Secure redirect.
// Idempotent: if the hold is already on the ledger it is returned as is.
func (svc *RenthubService) AfterPreauthorizationReturn(ctx context.Context, booking *models.Booking, operation string, result *payments.PreauthorizationResult) (*models.Transaction, error) {
	label, err := labelForOperation(operation)
	if err != nil {
		return nil, err
	}
	if result.Status != payments.PreauthStatusSucceeded {
		resultCode := ""
		if result.Data != nil {
			resultCode = result.Data.ResultCode
			svc.RecordPaymentError(ctx, booking.TakerID, booking.ID, booking.PaymentProvider, result.Data.ResultCode, result.Data.Status, result.Data.Raw)
		}
		return nil, &PreauthorizationFailedError{Provider: booking.PaymentProvider, ResultCode: resultCode}
	}
	snap, err := svc.LoadSnapshot(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing := snap.FirstNonCancelled(preauthFilter(label)); existing != nil {
		return existing, nil
	}
	amount, err := amountForOperation(booking, operation)
	if err != nil {
		return nil, err
	}
	return svc.recordPreauthorization(ctx, booking, operation, amount, result.Data)
}

func (svc *RenthubService) recordPreauthorization(ctx context.Context, booking *models.Booking, operation string, amount int64, data *payments.ProviderData) (*models.Transaction, error) {
	label, err := labelForOperation(operation)
	if err != nil {
		return nil, err
	}
	transaction := &models.Transaction{
		BookingID:       booking.ID,
		PaymentProvider: booking.PaymentProvider,
		Action:          common.TransactionActionPreauthorization,
		Label:           label,
		PreauthAmount:   amount,
		Currency:        booking.Currency,
	}
	applyProviderData(transaction, data)
	if err := svc.saveTransactionWithRetry(ctx, transaction, nil); err != nil {
		return nil, err
	}
	if err := svc.AfterPaymentSuccess(ctx, booking, operation); err != nil {
		svc.Logger.Errorf("Failed to apply payment success effects [booking_id:%d operation:%s]: %v", booking.ID, operation, err)
	}
	return transaction, nil
}

// AfterPaymentSuccess stamps the booking dates the secured operation implies
// and, once the booking is fully paid and accepted, resolves its conflicts:
// overlapping pending bookings are cancelled and purchases decrement stock.
func (svc *RenthubService) AfterPaymentSuccess(ctx context.Context, booking *models.Booking, operation string) error {
	now := bun.NullTime{Time: time.Now()}
	columns := []string{}
	switch operation {
	case common.OperationDeposit:
		booking.DepositDate = now
		columns = append(columns, "deposit_date")
	case common.OperationPayment:
		booking.PaymentDate = now
		columns = append(columns, "payment_date")
	case common.OperationDepositPayment:
		booking.DepositDate = now
		booking.PaymentDate = now
		columns = append(columns, "deposit_date", "payment_date")
	default:
		return &ValidationError{Field: "operation", Reason: "unknown operation " + operation}
	}
	justPaid := false
	if booking.PaidDate.IsZero() && booking.IsPaid() {
		booking.PaidDate = now
		columns = append(columns, "paid_date")
		justPaid = true
	}
	if err := svc.updateBooking(ctx, booking, columns...); err != nil {
		return err
	}

	switch operation {
	case common.OperationDeposit:
		svc.EmitEvent(ctx, Event{Type: common.EventDepositSecured, BookingID: booking.ID, UserID: booking.TakerID})
	default:
		svc.EmitEvent(ctx, Event{Type: common.EventPaymentCompleted, BookingID: booking.ID, UserID: booking.TakerID})
	}

	if justPaid && !booking.AcceptedDate.IsZero() {
		if booking.Purchase {
			if err := svc.DecrementListingQuantity(ctx, booking.ListingID); err != nil {
				svc.Logger.Errorf("Failed to decrement listing quantity [listing_id:%d booking_id:%d]: %v", booking.ListingID, booking.ID, err)
			}
			svc.CancelBookingsFromSameItem(ctx, booking)
		} else {
			svc.CancelIntersectionBookings(ctx, booking)
		}
	}
	return nil
}

// CapturePayment converts the payment hold into an actual charge. The taker
// fees stay with the platform; the remainder will be moved to the owner by
// TransferPayment.
func (svc *RenthubService) CapturePayment(ctx context.Context, bookingID int64) (*models.Transaction, error) {
	booking, err := svc.FindBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	snap, err := svc.LoadSnapshot(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing := snap.NonCancelledPayinPaymentTransaction(); existing != nil {
		return existing, nil
	}
	preauth := snap.NonCancelledPreauthPaymentTransaction()
	if preauth == nil {
		preauth = snap.NonCancelledDepositPaymentTransaction()
	}
	if preauth == nil {
		return nil, &ValidationError{Field: "booking", Reason: "no active payment hold to capture"}
	}
	provider, err := svc.ProviderFor(booking.PaymentProvider)
	if err != nil {
		return nil, err
	}

	data, err := provider.CapturePreauthorization(ctx, preauth.ResourceID, payments.CaptureOptions{
		Amount:         booking.TakerPrice,
		ApplicationFee: booking.TakerFees,
	})
	if err != nil {
		return nil, svc.providerFailure(ctx, booking.TakerID, booking.ID, provider.Name(), err)
	}

	transaction := &models.Transaction{
		BookingID:       booking.ID,
		PaymentProvider: booking.PaymentProvider,
		Action:          common.TransactionActionPayin,
		Label:           common.TransactionLabelPayment,
		Payment:         booking.TakerPrice,
		Cashing:         booking.TakerFees,
		Currency:        booking.Currency,
	}
	applyProviderData(transaction, data)
	details := []*models.TransactionDetail{
		{Label: common.TransactionLabelPayment, Payment: booking.TakerPrice - booking.TakerFees},
		{Label: common.TransactionLabelTakerFees, Payment: booking.TakerFees, Cashing: booking.TakerFees},
	}
	if err := svc.saveTransactionWithRetry(ctx, transaction, details); err != nil {
		return nil, err
	}
	return transaction, nil
}

// TransferPayment moves the owner's share of a captured payment to the
// owner's provider account.
func (svc *RenthubService) TransferPayment(ctx context.Context, bookingID int64) (*models.Transaction, error) {
	booking, err := svc.FindBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	snap, err := svc.LoadSnapshot(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return svc.transferPayment(ctx, booking, snap)
}

func (svc *RenthubService) transferPayment(ctx context.Context, booking *models.Booking, snap *ledger.Snapshot) (*models.Transaction, error) {
	if existing := snap.NonCancelledTransferPaymentTransaction(); existing != nil {
		return existing, nil
	}
	payin := snap.NonCancelledPayinPaymentTransaction()
	if payin == nil {
		return nil, &ValidationError{Field: "booking", Reason: "payment is not captured, nothing to transfer"}
	}
	amount := booking.TakerPrice - booking.TakerFees
	if amount <= 0 {
		return nil, &ValidationError{Field: "booking", Reason: "owner share is not positive, nothing to transfer"}
	}
	owner, err := svc.FindUser(ctx, booking.OwnerID)
	if err != nil {
		return nil, err
	}
	provider, err := svc.ProviderFor(booking.PaymentProvider)
	if err != nil {
		return nil, err
	}

	data, err := provider.Transfer(ctx, owner.AccountID, amount, booking.Currency, payin.ResourceID)
	if err != nil {
		return nil, svc.providerFailure(ctx, booking.OwnerID, booking.ID, provider.Name(), err)
	}

	transaction := &models.Transaction{
		BookingID:       booking.ID,
		PaymentProvider: booking.PaymentProvider,
		Action:          common.TransactionActionTransfer,
		Label:           common.TransactionLabelPayment,
		Credit:          amount,
		Currency:        booking.Currency,
	}
	applyProviderData(transaction, data)
	if err := svc.saveTransactionWithRetry(ctx, transaction, nil); err != nil {
		return nil, err
	}
	svc.EmitEvent(ctx, Event{Type: common.EventTransferCompleted, BookingID: booking.ID, UserID: booking.OwnerID})
	return transaction, nil
}

// PayoutPayment wires the transferred amount to the owner's bank account.
// Owners without a bank account on file are skipped, not failed; the money
// stays on their provider account until they add one.
func (svc *RenthubService) PayoutPayment(ctx context.Context, bookingID int64) (*models.Transaction, error) {
	booking, err := svc.FindBookingById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	snap, err := svc.LoadSnapshot(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	return svc.payoutPayment(ctx, booking, snap)
}

func (svc *RenthubService) payoutPayment(ctx context.Context, booking *models.Booking, snap *ledger.Snapshot) (*models.Transaction, error) {
	if existing := snap.NonCancelledPayoutPaymentTransaction(); existing != nil {
		return existing, nil
	}
	transfer := snap.NonCancelledTransferPaymentTransaction()
	if transfer == nil {
		return nil, &ValidationError{Field: "booking", Reason: "payment is not transferred, nothing to pay out"}
	}
	owner, err := svc.FindUser(ctx, booking.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.BankAccountID == "" {
		svc.Logger.Infof("Skipping payout, owner has no bank account on file [booking_id:%d owner_id:%d]", booking.ID, owner.ID)
		return nil, nil
	}
	provider, err := svc.ProviderFor(booking.PaymentProvider)
	if err != nil {
		return nil, err
	}

	data, err := provider.Payout(ctx, owner.BankAccountID, transfer.Credit, booking.Currency)
	if err != nil {
		return nil, svc.providerFailure(ctx, booking.OwnerID, booking.ID, provider.Name(), err)
	}

	transaction := &models.Transaction{
		BookingID:       booking.ID,
		PaymentProvider: booking.PaymentProvider,
		Action:          common.TransactionActionPayout,
		Label:           common.TransactionLabelPayment,
		PayoutAmount:    transfer.Credit,
		Currency:        booking.Currency,
	}
	applyProviderData(transaction, data)
	if err := svc.saveTransactionWithRetry(ctx, transaction, nil); err != nil {
		return nil, err
	}
	svc.EmitEvent(ctx, Event{Type: common.EventPayoutCompleted, BookingID: booking.ID, UserID: booking.OwnerID})
	return transaction, nil
}

// validateCard refuses cards that will not survive the booking: the card
// must belong to the taker, be active and stay valid for a safety margin
// past the rental end.
func (svc *RenthubService) validateCard(card *models.Card, booking *models.Booking) error {
	if card.UserID != booking.TakerID {
		return &CardInvalidError{Reason: "card does not belong to the booking's taker"}
	}
	if !card.Active {
		return &CardInvalidError{Reason: "card is deactivated"}
	}
	if card.PaymentProvider != booking.PaymentProvider {
		return &CardInvalidError{Reason: "card is registered with another payment provider"}
	}
	reference := time.Now()
	if !booking.EndDate.IsZero() && booking.EndDate.Time.After(reference) {
		reference = booking.EndDate.Time
	}
	reference = reference.AddDate(0, 0, svc.Config.CardValidityMarginDays)
	if card.ExpirationDate().Before(reference) {
		return &CardInvalidError{Reason: "card expires too soon"}
	}
	return nil
}

// amountForOperation resolves the amount a hold must cover. Deposit and
// payment holds are placed separately unless the deposit-payment operation
// covers both in one hold.
func amountForOperation(booking *models.Booking, operation string) (int64, error) {
	var amount int64
	switch operation {
	case common.OperationDeposit:
		amount = booking.Deposit
	case common.OperationPayment:
		amount = booking.TakerPrice
	case common.OperationDepositPayment:
		amount = booking.TakerPrice
		if amount == 0 {
			amount = booking.Deposit
		}
	default:
		return 0, &ValidationError{Field: "operation", Reason: "unknown operation " + operation}
	}
	if amount <= 0 {
		return 0, &ValidationError{Field: "operation", Reason: "booking carries no amount for operation " + operation}
	}
	return amount, nil
}

func labelForOperation(operation string) (string, error) {
	switch operation {
	case common.OperationDeposit:
		return common.TransactionLabelDeposit, nil
	case common.OperationPayment:
		return common.TransactionLabelPayment, nil
	case common.OperationDepositPayment:
		return common.TransactionLabelDepositPayment, nil
	default:
		return "", &ValidationError{Field: "operation", Reason: "unknown operation " + operation}
	}
}

func preauthFilter(label string) ledger.TypeFilter {
	return ledger.TypeFilter{Action: common.TransactionActionPreauthorization, Label: label}
}

// providerFailure records a provider rejection for support and passes the
// error through unchanged.
func (svc *RenthubService) providerFailure(ctx context.Context, userID, bookingID int64, providerName string, err error) error {
	var providerError *payments.ProviderError
	if errors.As(err, &providerError) {
		svc.RecordPaymentError(ctx, userID, bookingID, providerName, providerError.Code, providerError.Message, providerError.Raw)
	}
	return err
}

func applyProviderData(t *models.Transaction, data *payments.ProviderData) {
	if data == nil {
		return
	}
	t.ResourceType = data.ResourceType
	t.ResourceID = data.ResourceID
	if !data.ProviderCreatedDate.IsZero() {
		t.ProviderCreatedDate = bun.NullTime{Time: data.ProviderCreatedDate}
		t.ExecutionDate = bun.NullTime{Time: data.ProviderCreatedDate}
	}
	if !data.ExpirationDate.IsZero() {
		t.PreauthExpirationDate = bun.NullTime{Time: data.ExpirationDate}
	}
}
