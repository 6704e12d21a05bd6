package service

import (
	"encoding/json"
	"testing"

	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/ledger"
	"github.com/stretchr/testify/assert"
)

func testBooking() *models.Booking {
	return &models.Booking{
		ID:              1,
		ListingID:       10,
		OwnerID:         20,
		TakerID:         30,
		TakerPrice:      100,
		TakerFees:       20,
		Currency:        "EUR",
		PaymentProvider: common.PaymentProviderStripe,
	}
}

func ledgerRow(id int64, action, label string) *models.Transaction {
	return &models.Transaction{
		ID:              id,
		BookingID:       1,
		PaymentProvider: common.PaymentProviderStripe,
		Action:          action,
		Label:           label,
	}
}

func snapshotOf(rows ...*models.Transaction) *ledger.Snapshot {
	return ledger.NewSnapshot(rows, nil)
}

func TestResolveCancelPaymentRefusesAfterTransfer(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	transfer := ledgerRow(3, common.TransactionActionTransfer, common.TransactionLabelPayment)
	snap := snapshotOf(payin, transfer)

	_, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: FullRefund(),
	})
	assert.Error(t, err)
	assert.IsType(t, &TransferAlreadyDoneError{}, err)
}

func TestResolveCancelPaymentVoidsHoldsBeforeCapture(t *testing.T) {
	preauth := ledgerRow(1, common.TransactionActionPreauthorization, common.TransactionLabelPayment)
	deposit := ledgerRow(2, common.TransactionActionPreauthorization, common.TransactionLabelDeposit)
	snap := snapshotOf(preauth, deposit)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: FullRefund(),
	})
	assert.NoError(t, err)
	assert.Len(t, plan.VoidPreauths, 2)
	assert.Nil(t, plan.Refund)
	assert.False(t, plan.CompleteTransfer)
	assert.False(t, plan.NoOp)
}

func TestResolveCancelPaymentNoOpWhenAlreadyRefunded(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	refund := ledgerRow(3, common.TransactionActionPayin, common.TransactionLabelPayment)
	refund.CancelTransactionID = 2
	snap := snapshotOf(payin, refund)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: FullRefund(),
	})
	assert.NoError(t, err)
	assert.True(t, plan.NoOp)
}

func TestResolveCancelPaymentFullRefund(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: FullRefund(),
	})
	assert.NoError(t, err)
	assert.NotNil(t, plan.Refund)
	assert.Equal(t, payin, plan.Refund.Payin)
	assert.Equal(t, int64(100), plan.Refund.Amount)
	assert.True(t, plan.Refund.RefundFees)
	assert.Zero(t, plan.FeeTransfer)
}

func TestResolveCancelPaymentKeepsFees(t *testing.T) {
	// the taker gets the goods price back, the owner receives the
	// fee-equivalent amount
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: NoRefund(),
	})
	assert.NoError(t, err)
	assert.NotNil(t, plan.Refund)
	assert.Equal(t, int64(80), plan.Refund.Amount)
	assert.False(t, plan.Refund.RefundFees)
	assert.Equal(t, int64(20), plan.FeeTransfer)
}

func TestResolveCancelPaymentNoRefundCompletesTransfer(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   NoRefund(),
		TakerFees: NoRefund(),
	})
	assert.NoError(t, err)
	assert.True(t, plan.CompleteTransfer)
	assert.Nil(t, plan.Refund)
}

func TestResolveCancelPaymentRejectsFeeOnlyRefund(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	_, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   NoRefund(),
		TakerFees: FullRefund(),
	})
	assert.Error(t, err)
	assert.IsType(t, &InvalidCancelConfigError{}, err)
}

func TestResolveCancelPaymentPartialRefund(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	plan, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   PartialRefund(40),
		TakerFees: FullRefund(),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(40), plan.Refund.Amount)
}

func TestResolveCancelPaymentRejectsRefundAbovePayin(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	_, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   PartialRefund(150),
		TakerFees: FullRefund(),
	})
	assert.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)
}

func TestResolveCancelPaymentRejectsFeesAbovePrice(t *testing.T) {
	booking := testBooking()
	booking.TakerFees = 150
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	_, err := resolveCancelPayment(booking, snap, CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: NoRefund(),
	})
	assert.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)
}

func TestRefundUnmarshalJSON(t *testing.T) {
	var r Refund

	assert.NoError(t, json.Unmarshal([]byte(`true`), &r))
	assert.True(t, r.Refundable())
	assert.Equal(t, int64(100), r.AmountOr(100))

	assert.NoError(t, json.Unmarshal([]byte(`false`), &r))
	assert.False(t, r.Refundable())

	assert.NoError(t, json.Unmarshal([]byte(`55`), &r))
	assert.True(t, r.Refundable())
	assert.Equal(t, int64(55), r.AmountOr(100))

	// a zero amount must not pass through as a partial refund: the providers
	// read a missing amount as "refund everything"
	assert.NoError(t, json.Unmarshal([]byte(`0`), &r))
	assert.False(t, r.Refundable())

	assert.Error(t, json.Unmarshal([]byte(`-3`), &r))
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &r))
}

func TestResolveCancelPaymentRejectsZeroRefund(t *testing.T) {
	payin := ledgerRow(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	payin.Payment = 100
	snap := snapshotOf(payin)

	_, err := resolveCancelPayment(testBooking(), snap, CancelPaymentOptions{
		Payment:   PartialRefund(0),
		TakerFees: FullRefund(),
	})
	assert.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)
}

func TestCancelPaymentOptionsUnmarshalJSON(t *testing.T) {
	var opts CancelPaymentOptions
	err := json.Unmarshal([]byte(`{"payment": 80, "takerFees": false}`), &opts)
	assert.NoError(t, err)
	assert.True(t, opts.Payment.Refundable())
	assert.Equal(t, int64(80), opts.Payment.AmountOr(0))
	assert.False(t, opts.TakerFees.Refundable())
}

func TestCancelPaymentOptionsUnmarshalJSONDefaultsToFullRefund(t *testing.T) {
	var opts CancelPaymentOptions
	assert.NoError(t, json.Unmarshal([]byte(`{}`), &opts))
	assert.True(t, opts.Payment.Refundable())
	assert.True(t, opts.TakerFees.Refundable())

	// an omitted field keeps the full-refund default
	opts = CancelPaymentOptions{}
	assert.NoError(t, json.Unmarshal([]byte(`{"payment": 80}`), &opts))
	assert.Equal(t, int64(80), opts.Payment.AmountOr(0))
	assert.True(t, opts.TakerFees.Refundable())
}
