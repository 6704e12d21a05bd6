package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	PreauthStatusSucceeded  = "succeeded"
	PreauthStatusFailed     = "failed"
	PreauthStatusPending3DS = "pending_3ds"
)

// Provider abstracts one payment provider behind a uniform contract. The
// orchestrator and the cancellation engine depend only on this interface,
// never on a provider tag.
type Provider interface {
	Name() string
	CreatePreauthorization(ctx context.Context, req *PreauthorizationRequest) (*PreauthorizationResult, error)
	CapturePreauthorization(ctx context.Context, preauthRef string, opts CaptureOptions) (*ProviderData, error)
	Refund(ctx context.Context, payinRef string, opts RefundOptions) (*ProviderData, error)
	// CancelPreauthorization voids an un-captured hold. Holds already past
	// their cancellable window are treated as voided, not as errors.
	CancelPreauthorization(ctx context.Context, preauthRef string) error
	Transfer(ctx context.Context, destinationAccount string, amount int64, currency, sourceChargeRef string) (*ProviderData, error)
	ReverseTransfer(ctx context.Context, transferRef string) (*ProviderData, error)
	Payout(ctx context.Context, bankAccount string, amount int64, currency string) (*ProviderData, error)
}

type PreauthorizationRequest struct {
	UserRef    string
	CardRef    string
	Amount     int64
	Currency   string
	SecureMode bool
	ReturnURL  string
}

type PreauthorizationResult struct {
	// One of PreauthStatusSucceeded, PreauthStatusFailed,
	// PreauthStatusPending3DS.
	Status      string
	RedirectURL string
	Data        *ProviderData
}

type CaptureOptions struct {
	// Amount to capture; 0 captures the full hold.
	Amount int64
	// Platform fee withheld from the capture.
	ApplicationFee int64
}

type RefundOptions struct {
	// Amount to refund; 0 refunds the full capture.
	Amount int64
	// Also return the platform fee to the payer.
	RefundFees bool
}

// ProviderData is the provider-side outcome embedded into a ledger row.
type ProviderData struct {
	ResourceType        string
	ResourceID          string
	Status              string
	ResultCode          string
	ProviderCreatedDate time.Time
	ExpirationDate      time.Time
	Raw                 json.RawMessage
}

// ProviderError carries the provider's raw failure payload. The adapter
// never swallows provider failures.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Raw      json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}
