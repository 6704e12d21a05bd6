package ledger

import (
	"testing"

	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
	"github.com/stretchr/testify/assert"
)

func tx(id int64, action, label string) *models.Transaction {
	return &models.Transaction{
		ID:        id,
		BookingID: 1,
		Action:    action,
		Label:     label,
	}
}

func cancelTx(id, target int64, action, label string) *models.Transaction {
	t := tx(id, action, label)
	t.CancelTransactionID = target
	return t
}

func TestSnapshotTypedAccessors(t *testing.T) {
	deposit := tx(1, common.TransactionActionPreauthorization, common.TransactionLabelDeposit)
	preauth := tx(2, common.TransactionActionPreauthorization, common.TransactionLabelPayment)
	payin := tx(3, common.TransactionActionPayin, common.TransactionLabelPayment)
	snap := NewSnapshot([]*models.Transaction{deposit, preauth, payin}, nil)

	assert.Equal(t, deposit, snap.DepositTransaction())
	assert.Equal(t, preauth, snap.PreauthPaymentTransaction())
	assert.Equal(t, payin, snap.PayinPaymentTransaction())
	assert.Nil(t, snap.TransferPaymentTransaction())
	assert.Nil(t, snap.PayoutPaymentTransaction())
	assert.Len(t, snap.NonCancelledPreauthorizations(), 2)
}

func TestSnapshotCancelDetection(t *testing.T) {
	payin := tx(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	cancel := cancelTx(3, 2, common.TransactionActionPayin, common.TransactionLabelPayment)
	snap := NewSnapshot([]*models.Transaction{payin, cancel}, nil)

	assert.True(t, snap.IsCancelled(payin))
	assert.True(t, snap.IsCancelTransaction(cancel))
	assert.Equal(t, cancel, snap.CancelTransactionFor(payin))

	// the plain accessor still sees the reversed row, the non-cancelled one
	// does not
	assert.Equal(t, payin, snap.PayinPaymentTransaction())
	assert.Nil(t, snap.NonCancelledPayinPaymentTransaction())

	pairs := snap.Pairs(TypeFilter{Action: common.TransactionActionPayin})
	assert.Len(t, pairs, 1)
	assert.Equal(t, payin, pairs[0].Transaction)
	assert.Equal(t, cancel, pairs[0].CancelTransaction)
}

func TestSnapshotStorageOrderBreaksTies(t *testing.T) {
	first := tx(1, common.TransactionActionPreauthorization, common.TransactionLabelPayment)
	second := tx(2, common.TransactionActionPreauthorization, common.TransactionLabelPayment)
	snap := NewSnapshot([]*models.Transaction{first, second}, nil)

	assert.Equal(t, first, snap.PreauthPaymentTransaction())
	assert.Equal(t, first, snap.NonCancelledPreauthPaymentTransaction())
}

func TestSnapshotAddReturnsNewSnapshot(t *testing.T) {
	payin := tx(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	snap := NewSnapshot([]*models.Transaction{payin}, nil)

	cancel := cancelTx(3, 2, common.TransactionActionPayin, common.TransactionLabelPayment)
	next := snap.Add(cancel, nil)

	assert.False(t, snap.IsCancelled(payin))
	assert.True(t, next.IsCancelled(payin))
	assert.NotNil(t, snap.NonCancelledPayinPaymentTransaction())
	assert.Nil(t, next.NonCancelledPayinPaymentTransaction())
}

func TestSnapshotDetails(t *testing.T) {
	payin := tx(2, common.TransactionActionPayin, common.TransactionLabelPayment)
	details := []*models.TransactionDetail{
		{ID: 1, TransactionID: 2, Label: common.TransactionLabelPayment, Payment: 80},
		{ID: 2, TransactionID: 2, Label: common.TransactionLabelTakerFees, Payment: 20},
	}
	snap := NewSnapshot([]*models.Transaction{payin}, details)

	got := snap.Details(payin)
	assert.Len(t, got, 2)
	assert.Equal(t, common.TransactionLabelPayment, got[0].Label)
	assert.Equal(t, common.TransactionLabelTakerFees, got[1].Label)
}
