package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/renthub/renthub.go/common"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

// Stripe's manual-capture holds stay capturable for 7 days.
const stripePreauthValidity = 7 * 24 * time.Hour

type StripeProvider struct {
	apiURL    string
	secretKey string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *lecho.Logger
}

func NewStripeProvider(c *Config, logger *lecho.Logger) *StripeProvider {
	return &StripeProvider{
		apiURL:    c.StripeAPIURL,
		secretKey: c.StripeSecretKey,
		client:    &http.Client{Timeout: time.Duration(c.RequestTimeout) * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.RequestBurst),
		logger:    logger,
	}
}

func (s *StripeProvider) Name() string {
	return common.PaymentProviderStripe
}

type stripePaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Created      int64  `json:"created"`
	LatestCharge string `json:"latest_charge"`
	NextAction   *struct {
		RedirectToURL struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	Created int64  `json:"created"`
}

type stripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

func (s *StripeProvider) request(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		errResp := stripeErrorResponse{}
		if err = json.Unmarshal(payload, &errResp); err != nil {
			return fmt.Errorf("stripe: unexpected response %d: %s", resp.StatusCode, payload)
		}
		code := errResp.Error.Code
		if errResp.Error.DeclineCode != "" {
			code = errResp.Error.DeclineCode
		}
		return &ProviderError{
			Provider: s.Name(),
			Code:     code,
			Message:  errResp.Error.Message,
			Raw:      payload,
		}
	}
	if out != nil {
		return json.Unmarshal(payload, out)
	}
	return nil
}

func (s *StripeProvider) CreatePreauthorization(ctx context.Context, req *PreauthorizationRequest) (*PreauthorizationResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("customer", req.UserRef)
	form.Set("payment_method", req.CardRef)
	form.Set("capture_method", "manual")
	form.Set("confirm", "true")
	if req.SecureMode && req.ReturnURL != "" {
		form.Set("return_url", req.ReturnURL)
	}

	intent := stripePaymentIntent{}
	err := s.request(ctx, http.MethodPost, "/payment_intents", form, &intent)
	if err != nil {
		return nil, err
	}

	result := &PreauthorizationResult{Data: s.intentData(&intent)}
	switch {
	case intent.Status == "requires_capture":
		result.Status = PreauthStatusSucceeded
	case intent.Status == "requires_action" && intent.NextAction != nil:
		result.Status = PreauthStatusPending3DS
		result.RedirectURL = intent.NextAction.RedirectToURL.URL
	default:
		result.Status = PreauthStatusFailed
		if intent.LastPaymentError != nil {
			result.Data.ResultCode = intent.LastPaymentError.Code
			if intent.LastPaymentError.DeclineCode != "" {
				result.Data.ResultCode = intent.LastPaymentError.DeclineCode
			}
		}
	}
	return result, nil
}

func (s *StripeProvider) CapturePreauthorization(ctx context.Context, preauthRef string, opts CaptureOptions) (*ProviderData, error) {
	form := url.Values{}
	if opts.Amount > 0 {
		form.Set("amount_to_capture", strconv.FormatInt(opts.Amount, 10))
	}
	if opts.ApplicationFee > 0 {
		form.Set("application_fee_amount", strconv.FormatInt(opts.ApplicationFee, 10))
	}
	intent := stripePaymentIntent{}
	err := s.request(ctx, http.MethodPost, "/payment_intents/"+preauthRef+"/capture", form, &intent)
	if err != nil {
		return nil, err
	}
	data := s.intentData(&intent)
	// the settled charge is what refunds and transfers reference
	if intent.LatestCharge != "" {
		data.ResourceType = "charge"
		data.ResourceID = intent.LatestCharge
	}
	return data, nil
}

func (s *StripeProvider) Refund(ctx context.Context, payinRef string, opts RefundOptions) (*ProviderData, error) {
	form := url.Values{}
	form.Set("charge", payinRef)
	if opts.Amount > 0 {
		form.Set("amount", strconv.FormatInt(opts.Amount, 10))
	}
	if opts.RefundFees {
		form.Set("refund_application_fee", "true")
	}
	refund := stripeObject{}
	err := s.request(ctx, http.MethodPost, "/refunds", form, &refund)
	if err != nil {
		return nil, err
	}
	return s.objectData(&refund), nil
}

func (s *StripeProvider) CancelPreauthorization(ctx context.Context, preauthRef string) error {
	err := s.request(ctx, http.MethodPost, "/payment_intents/"+preauthRef+"/cancel", url.Values{}, nil)
	if providerErr, ok := err.(*ProviderError); ok {
		// hold already captured, expired or voided: nothing left to release
		s.logger.Warnf("stripe: preauthorization %s not cancellable: %s", preauthRef, providerErr.Message)
		return nil
	}
	return err
}

func (s *StripeProvider) Transfer(ctx context.Context, destinationAccount string, amount int64, currency, sourceChargeRef string) (*ProviderData, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("destination", destinationAccount)
	if sourceChargeRef != "" {
		form.Set("source_transaction", sourceChargeRef)
	}
	transfer := stripeObject{}
	err := s.request(ctx, http.MethodPost, "/transfers", form, &transfer)
	if err != nil {
		return nil, err
	}
	return s.objectData(&transfer), nil
}

func (s *StripeProvider) ReverseTransfer(ctx context.Context, transferRef string) (*ProviderData, error) {
	reversal := stripeObject{}
	err := s.request(ctx, http.MethodPost, "/transfers/"+transferRef+"/reversals", url.Values{}, &reversal)
	if err != nil {
		return nil, err
	}
	return s.objectData(&reversal), nil
}

func (s *StripeProvider) Payout(ctx context.Context, bankAccount string, amount int64, currency string) (*ProviderData, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("destination", bankAccount)
	payout := stripeObject{}
	err := s.request(ctx, http.MethodPost, "/payouts", form, &payout)
	if err != nil {
		return nil, err
	}
	return s.objectData(&payout), nil
}

func (s *StripeProvider) intentData(intent *stripePaymentIntent) *ProviderData {
	created := time.Unix(intent.Created, 0)
	raw, _ := json.Marshal(intent)
	return &ProviderData{
		ResourceType:        "payment_intent",
		ResourceID:          intent.ID,
		Status:              intent.Status,
		ProviderCreatedDate: created,
		ExpirationDate:      created.Add(stripePreauthValidity),
		Raw:                 raw,
	}
}

func (s *StripeProvider) objectData(obj *stripeObject) *ProviderData {
	raw, _ := json.Marshal(obj)
	return &ProviderData{
		ResourceType:        obj.Object,
		ResourceID:          obj.ID,
		Status:              obj.Status,
		ProviderCreatedDate: time.Unix(obj.Created, 0),
		Raw:                 raw,
	}
}
