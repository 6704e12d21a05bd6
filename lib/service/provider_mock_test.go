package service

import (
	"context"

	"github.com/renthub/renthub.go/common"
	"github.com/renthub/renthub.go/payments"
)

type refundCall struct {
	PayinRef string
	Opts     payments.RefundOptions
}

type transferCall struct {
	Account  string
	Amount   int64
	Currency string
	Source   string
}

// mockProvider is a scripted payments.Provider recording what the engine
// asked of it.
type mockProvider struct {
	RefundCalls    []refundCall
	TransferCalls  []transferCall
	VoidedPreauths []string
	PayoutAmounts  []int64

	// Refund fails with a provider error for this payin reference.
	FailRefundRef string
}

func (m *mockProvider) Name() string {
	return common.PaymentProviderStripe
}

func (m *mockProvider) CreatePreauthorization(ctx context.Context, req *payments.PreauthorizationRequest) (*payments.PreauthorizationResult, error) {
	return &payments.PreauthorizationResult{
		Status: payments.PreauthStatusSucceeded,
		Data: &payments.ProviderData{
			ResourceType: "preauthorization",
			ResourceID:   "hold_for_" + req.CardRef,
			Status:       payments.PreauthStatusSucceeded,
		},
	}, nil
}

func (m *mockProvider) CapturePreauthorization(ctx context.Context, preauthRef string, opts payments.CaptureOptions) (*payments.ProviderData, error) {
	return &payments.ProviderData{ResourceType: "charge", ResourceID: "charge_for_" + preauthRef}, nil
}

func (m *mockProvider) Refund(ctx context.Context, payinRef string, opts payments.RefundOptions) (*payments.ProviderData, error) {
	if payinRef == m.FailRefundRef {
		return nil, &payments.ProviderError{Provider: m.Name(), Code: "refund_refused", Message: "refund refused"}
	}
	m.RefundCalls = append(m.RefundCalls, refundCall{PayinRef: payinRef, Opts: opts})
	return &payments.ProviderData{ResourceType: "refund", ResourceID: "refund_for_" + payinRef}, nil
}

func (m *mockProvider) CancelPreauthorization(ctx context.Context, preauthRef string) error {
	m.VoidedPreauths = append(m.VoidedPreauths, preauthRef)
	return nil
}

func (m *mockProvider) Transfer(ctx context.Context, destinationAccount string, amount int64, currency, sourceChargeRef string) (*payments.ProviderData, error) {
	m.TransferCalls = append(m.TransferCalls, transferCall{
		Account:  destinationAccount,
		Amount:   amount,
		Currency: currency,
		Source:   sourceChargeRef,
	})
	return &payments.ProviderData{ResourceType: "transfer", ResourceID: "transfer_for_" + sourceChargeRef}, nil
}

func (m *mockProvider) ReverseTransfer(ctx context.Context, transferRef string) (*payments.ProviderData, error) {
	return &payments.ProviderData{ResourceType: "transfer_reversal", ResourceID: "reversal_for_" + transferRef}, nil
}

func (m *mockProvider) Payout(ctx context.Context, bankAccount string, amount int64, currency string) (*payments.ProviderData, error) {
	m.PayoutAmounts = append(m.PayoutAmounts, amount)
	return &payments.ProviderData{ResourceType: "payout", ResourceID: "payout_1"}, nil
}
