package ledger

import (
	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/db/models"
)

// TypeFilter selects transactions by their (action, label) type. Empty
// fields match everything.
type TypeFilter struct {
	Action string
	Label  string
}

func (f TypeFilter) matches(t *models.Transaction) bool {
	if f.Action != "" && t.Action != f.Action {
		return false
	}
	if f.Label != "" && t.Label != f.Label {
		return false
	}
	return true
}

// Pair correlates a transaction with the transaction cancelling it, if any.
type Pair struct {
	Transaction       *models.Transaction
	CancelTransaction *models.Transaction
}

// Snapshot is an immutable view over all ledger rows of one booking (or a
// batch of bookings). All queries are pure; Add returns a new Snapshot
// instead of mutating in place, so a snapshot can be shared across
// concurrent readers and mid-workflow reasoning never re-reads storage.
type Snapshot struct {
	transactions []*models.Transaction
	details      map[int64][]*models.TransactionDetail
	cancelledBy  map[int64]*models.Transaction
}

// NewSnapshot builds a snapshot from rows in storage order. Storage order is
// authoritative whenever several transactions match a filter.
func NewSnapshot(transactions []*models.Transaction, details []*models.TransactionDetail) *Snapshot {
	snap := &Snapshot{
		transactions: transactions,
		details:      make(map[int64][]*models.TransactionDetail, len(transactions)),
		cancelledBy:  make(map[int64]*models.Transaction),
	}
	for _, d := range details {
		snap.details[d.TransactionID] = append(snap.details[d.TransactionID], d)
	}
	for _, t := range transactions {
		if t.CancelTransactionID != 0 {
			if _, taken := snap.cancelledBy[t.CancelTransactionID]; !taken {
				snap.cancelledBy[t.CancelTransactionID] = t
			}
		}
	}
	return snap
}

// Add returns a new snapshot with the transaction and its details appended.
// The receiver is left untouched.
func (s *Snapshot) Add(t *models.Transaction, details []*models.TransactionDetail) *Snapshot {
	transactions := make([]*models.Transaction, 0, len(s.transactions)+1)
	transactions = append(transactions, s.transactions...)
	transactions = append(transactions, t)

	allDetails := make([]*models.TransactionDetail, 0, len(details))
	for _, existing := range s.transactions {
		allDetails = append(allDetails, s.details[existing.ID]...)
	}
	allDetails = append(allDetails, details...)
	return NewSnapshot(transactions, allDetails)
}

// IsCancelTransaction reports whether t is itself a reversal of another row.
func (s *Snapshot) IsCancelTransaction(t *models.Transaction) bool {
	return t.CancelTransactionID != 0
}

// IsCancelled reports whether some other row in the snapshot reverses t.
func (s *Snapshot) IsCancelled(t *models.Transaction) bool {
	return s.cancelledBy[t.ID] != nil
}

// CancelTransactionFor returns the row reversing t, or nil.
func (s *Snapshot) CancelTransactionFor(t *models.Transaction) *models.Transaction {
	return s.cancelledBy[t.ID]
}

// Details returns the breakdown lines of t in storage order.
func (s *Snapshot) Details(t *models.Transaction) []*models.TransactionDetail {
	return s.details[t.ID]
}

// Transactions returns the rows that are not themselves cancel transactions,
// optionally filtered by type.
func (s *Snapshot) Transactions(filter TypeFilter) []*models.Transaction {
	var out []*models.Transaction
	for _, t := range s.transactions {
		if s.IsCancelTransaction(t) {
			continue
		}
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// NonCancelledTransactions returns the rows of Transactions that have not
// been reversed.
func (s *Snapshot) NonCancelledTransactions(filter TypeFilter) []*models.Transaction {
	var out []*models.Transaction
	for _, t := range s.Transactions(filter) {
		if !s.IsCancelled(t) {
			out = append(out, t)
		}
	}
	return out
}

// CancelTransactions returns the rows that are reversals, filtered by type.
func (s *Snapshot) CancelTransactions(filter TypeFilter) []*models.Transaction {
	var out []*models.Transaction
	for _, t := range s.transactions {
		if !s.IsCancelTransaction(t) {
			continue
		}
		if filter.matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Pairs correlates each matching transaction with its reversal, if any.
func (s *Snapshot) Pairs(filter TypeFilter) []Pair {
	var out []Pair
	for _, t := range s.Transactions(filter) {
		out = append(out, Pair{Transaction: t, CancelTransaction: s.cancelledBy[t.ID]})
	}
	return out
}

// First returns the first non-cancel-transaction row matching the filter.
func (s *Snapshot) First(filter TypeFilter) *models.Transaction {
	for _, t := range s.transactions {
		if s.IsCancelTransaction(t) {
			continue
		}
		if filter.matches(t) {
			return t
		}
	}
	return nil
}

// FirstNonCancelled returns the first matching row that has not been
// reversed. The orchestrator keeps at most one such row per (booking, type).
func (s *Snapshot) FirstNonCancelled(filter TypeFilter) *models.Transaction {
	for _, t := range s.transactions {
		if s.IsCancelTransaction(t) || s.IsCancelled(t) {
			continue
		}
		if filter.matches(t) {
			return t
		}
	}
	return nil
}

func (s *Snapshot) DepositTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelDeposit})
}

func (s *Snapshot) NonCancelledDepositTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelDeposit})
}

func (s *Snapshot) DepositPaymentTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelDepositPayment})
}

func (s *Snapshot) NonCancelledDepositPaymentTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelDepositPayment})
}

func (s *Snapshot) RenewDepositTransactions() []*models.Transaction {
	return s.Transactions(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelRenewDeposit})
}

func (s *Snapshot) NonCancelledRenewDepositTransactions() []*models.Transaction {
	return s.NonCancelledTransactions(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelRenewDeposit})
}

func (s *Snapshot) PreauthPaymentTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) NonCancelledPreauthPaymentTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionPreauthorization, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) PayinPaymentTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionPayin, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) NonCancelledPayinPaymentTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionPayin, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) TransferPaymentTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionTransfer, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) NonCancelledTransferPaymentTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionTransfer, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) PayoutPaymentTransaction() *models.Transaction {
	return s.First(TypeFilter{Action: common.TransactionActionPayout, Label: common.TransactionLabelPayment})
}

func (s *Snapshot) NonCancelledPayoutPaymentTransaction() *models.Transaction {
	return s.FirstNonCancelled(TypeFilter{Action: common.TransactionActionPayout, Label: common.TransactionLabelPayment})
}

// NonCancelledPreauthorizations returns every active preauthorization hold,
// whatever its label.
func (s *Snapshot) NonCancelledPreauthorizations() []*models.Transaction {
	return s.NonCancelledTransactions(TypeFilter{Action: common.TransactionActionPreauthorization})
}
