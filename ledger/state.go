package ledger

import (
	"github.com/renthub/renthub.go/common"
)

// State is the payment state of a booking, derived from ledger contents
// rather than stored. Cancellation is tracked on the booking itself, not
// here: a cancelled booking keeps whatever ledger state it reached.
type State string

const (
	StateNone           State = "none"
	StatePreauthorized  State = "preauthorized"
	StatePaid           State = "paid"
	StateTransferred    State = "transferred"
	StatePaidOut        State = "paid_out"
)

// DeriveState computes the booking's payment state from the active
// (non-cancelled) rows of the snapshot.
func DeriveState(s *Snapshot) State {
	if s.NonCancelledPayoutPaymentTransaction() != nil {
		return StatePaidOut
	}
	if s.NonCancelledTransferPaymentTransaction() != nil {
		return StateTransferred
	}
	if s.NonCancelledPayinPaymentTransaction() != nil {
		return StatePaid
	}
	if len(s.NonCancelledTransactions(TypeFilter{Action: common.TransactionActionPreauthorization})) > 0 {
		return StatePreauthorized
	}
	return StateNone
}
