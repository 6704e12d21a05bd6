package service

import (
	"encoding/json"
	"fmt"

	"github.com/renthub/renthub.go/db/models"
	"github.com/renthub/renthub.go/ledger"
)

// Refund says how much of an amount must be given back: everything, nothing,
// or an explicit partial amount. The legacy wire shape is `true|false|number`;
// it is translated here once so the engine never re-inspects dynamic types.
type Refund struct {
	refundable bool
	partial    bool
	amount     int64
}

func FullRefund() Refund {
	return Refund{refundable: true}
}

func NoRefund() Refund {
	return Refund{}
}

func PartialRefund(amount int64) Refund {
	return Refund{refundable: true, partial: true, amount: amount}
}

// Refundable reports whether any amount must be given back.
func (r Refund) Refundable() bool {
	return r.refundable
}

// AmountOr returns the partial amount if one was requested, the fallback
// otherwise.
func (r Refund) AmountOr(fallback int64) int64 {
	if r.partial {
		return r.amount
	}
	return fallback
}

func (r *Refund) UnmarshalJSON(b []byte) error {
	var full bool
	if err := json.Unmarshal(b, &full); err == nil {
		if full {
			*r = FullRefund()
		} else {
			*r = NoRefund()
		}
		return nil
	}
	var amount int64
	if err := json.Unmarshal(b, &amount); err == nil {
		if amount < 0 {
			return fmt.Errorf("refund amount must not be negative")
		}
		if amount == 0 {
			// the providers treat a missing amount as "refund everything",
			// so a zero never travels further than this boundary
			*r = NoRefund()
			return nil
		}
		*r = PartialRefund(amount)
		return nil
	}
	return fmt.Errorf("refund must be a boolean or an amount")
}

func (r Refund) MarshalJSON() ([]byte, error) {
	if r.partial {
		return json.Marshal(r.amount)
	}
	return json.Marshal(r.refundable)
}

// CancelPaymentOptions selects what must be reversed when a booking is
// cancelled. The default is to give everything back; callers opt out of
// refunding, never into it.
type CancelPaymentOptions struct {
	Payment   Refund `json:"payment"`
	TakerFees Refund `json:"takerFees"`
}

func DefaultCancelPaymentOptions() CancelPaymentOptions {
	return CancelPaymentOptions{
		Payment:   FullRefund(),
		TakerFees: FullRefund(),
	}
}

// UnmarshalJSON starts from the full-refund default so that an omitted field
// means "refund it", not "keep it".
func (o *CancelPaymentOptions) UnmarshalJSON(b []byte) error {
	type plain CancelPaymentOptions
	opts := plain(DefaultCancelPaymentOptions())
	if err := json.Unmarshal(b, &opts); err != nil {
		return err
	}
	*o = CancelPaymentOptions(opts)
	return nil
}

// cancelPaymentPlan is the resolved outcome of the decision table: the
// provider operations to run and the ledger rows they will produce. Resolved
// before any side effect so a refused cancellation mutates nothing.
type cancelPaymentPlan struct {
	// nothing to do: the payin is already reversed
	NoOp bool

	// holds to void; nothing was captured so nothing is refunded
	VoidPreauths []*models.Transaction

	// capture to reverse
	Refund *refundStep

	// fee-equivalent amount transferred to the owner alongside a partial
	// refund, so the owner still receives what the fee would have paid for
	FeeTransfer int64

	// run the regular transfer (and payout when the owner has a bank
	// account on file) as if the booking had completed
	CompleteTransfer bool
}

type refundStep struct {
	Payin      *models.Transaction
	Amount     int64
	RefundFees bool
}

// resolveCancelPayment evaluates, in order, what money must move when a
// booking's payment is cancelled. Pure: it reads the snapshot and decides,
// nothing more.
func resolveCancelPayment(booking *models.Booking, snap *ledger.Snapshot, opts CancelPaymentOptions) (*cancelPaymentPlan, error) {
	if transfer := snap.NonCancelledTransferPaymentTransaction(); transfer != nil {
		// executed transfers are never reversed implicitly
		return nil, &TransferAlreadyDoneError{BookingID: booking.ID}
	}

	payin := snap.PayinPaymentTransaction()
	if payin == nil {
		return &cancelPaymentPlan{VoidPreauths: snap.NonCancelledPreauthorizations()}, nil
	}
	if snap.IsCancelled(payin) {
		return &cancelPaymentPlan{NoOp: true}, nil
	}

	switch {
	case !opts.Payment.Refundable() && opts.TakerFees.Refundable():
		return nil, &InvalidCancelConfigError{Reason: "cannot cancel taker fees but not payment"}

	case !opts.Payment.Refundable() && !opts.TakerFees.Refundable():
		// taker forfeits the payment, owner is paid as if completed
		return &cancelPaymentPlan{CompleteTransfer: true}, nil

	case opts.Payment.Refundable() && opts.TakerFees.Refundable():
		amount := opts.Payment.AmountOr(payin.Payment)
		if err := checkRefundAmount(amount, payin.Payment); err != nil {
			return nil, err
		}
		return &cancelPaymentPlan{
			Refund: &refundStep{Payin: payin, Amount: amount, RefundFees: true},
		}, nil

	default:
		// payment refunded, fees kept: the taker gets the goods price back
		// and the fee-equivalent amount is transferred to the owner
		if booking.TakerPrice < booking.TakerFees {
			return nil, &ValidationError{Field: "takerFees", Reason: "taker fees exceed taker price"}
		}
		amount := opts.Payment.AmountOr(booking.TakerPrice - booking.TakerFees)
		if err := checkRefundAmount(amount, payin.Payment); err != nil {
			return nil, err
		}
		return &cancelPaymentPlan{
			Refund:      &refundStep{Payin: payin, Amount: amount},
			FeeTransfer: opts.TakerFees.AmountOr(booking.TakerFees),
		}, nil
	}
}

func checkRefundAmount(amount, payinAmount int64) error {
	if amount <= 0 {
		// the providers read a zero amount as "refund everything"
		return &ValidationError{Field: "refund", Reason: "refund amount must be positive"}
	}
	if amount > payinAmount {
		return &ValidationError{Field: "refund", Reason: fmt.Sprintf("refund amount %d exceeds payin amount %d", amount, payinAmount)}
	}
	return nil
}
