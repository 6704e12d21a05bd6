package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/renthub/renthub.go/common"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

type MangopayProvider struct {
	apiURL   string
	clientID string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *lecho.Logger
}

func NewMangopayProvider(c *Config, logger *lecho.Logger) *MangopayProvider {
	return &MangopayProvider{
		apiURL:   c.MangopayAPIURL,
		clientID: c.MangopayClientID,
		apiKey:   c.MangopayAPIKey,
		client:   &http.Client{Timeout: time.Duration(c.RequestTimeout) * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.RequestBurst),
		logger:   logger,
	}
}

func (m *MangopayProvider) Name() string {
	return common.PaymentProviderMangopay
}

type mangopayMoney struct {
	Currency string `json:"Currency"`
	Amount   int64  `json:"Amount"`
}

type mangopayResource struct {
	ID                    string         `json:"Id"`
	Tag                   string         `json:"Tag"`
	Status                string         `json:"Status"`
	PaymentStatus         string         `json:"PaymentStatus"`
	ResultCode            string         `json:"ResultCode"`
	ResultMessage         string         `json:"ResultMessage"`
	SecureModeNeeded      bool           `json:"SecureModeNeeded"`
	SecureModeRedirectURL string         `json:"SecureModeRedirectURL"`
	DebitedFunds          *mangopayMoney `json:"DebitedFunds"`
	CreationDate          int64          `json:"CreationDate"`
	ExecutionDate         int64          `json:"ExecutionDate"`
	ExpirationDate        int64          `json:"ExpirationDate"`
}

type mangopayError struct {
	Message string            `json:"Message"`
	Type    string            `json:"Type"`
	Errors  map[string]string `json:"Errors"`
}

func (m *MangopayProvider) request(ctx context.Context, method, path string, in, out interface{}) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.apiURL+"/"+m.clientID+path, body)
	if err != nil {
		return err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(m.clientID + ":" + m.apiKey))
	req.Header.Set("Authorization", "Basic "+credentials)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		errResp := mangopayError{}
		if err = json.Unmarshal(payload, &errResp); err != nil {
			return fmt.Errorf("mangopay: unexpected response %d: %s", resp.StatusCode, payload)
		}
		return &ProviderError{
			Provider: m.Name(),
			Code:     errResp.Type,
			Message:  errResp.Message,
			Raw:      payload,
		}
	}
	if out != nil {
		return json.Unmarshal(payload, out)
	}
	return nil
}

// resultErr surfaces provider-side failures reported with a 200 response,
// which is how Mangopay signals declined operations.
func (m *MangopayProvider) resultErr(res *mangopayResource) error {
	if res.Status != "FAILED" {
		return nil
	}
	raw, _ := json.Marshal(res)
	return &ProviderError{
		Provider: m.Name(),
		Code:     res.ResultCode,
		Message:  res.ResultMessage,
		Raw:      raw,
	}
}

func (m *MangopayProvider) CreatePreauthorization(ctx context.Context, req *PreauthorizationRequest) (*PreauthorizationResult, error) {
	secureMode := "DEFAULT"
	if req.SecureMode {
		secureMode = "FORCE"
	}
	in := map[string]interface{}{
		"AuthorId":            req.UserRef,
		"CardId":              req.CardRef,
		"DebitedFunds":        mangopayMoney{Currency: req.Currency, Amount: req.Amount},
		"SecureMode":          secureMode,
		"SecureModeReturnURL": req.ReturnURL,
	}
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/preauthorizations/card/direct", in, &res)
	if err != nil {
		return nil, err
	}

	result := &PreauthorizationResult{Data: m.resourceData("preauthorization", &res)}
	switch {
	case res.Status == "SUCCEEDED":
		result.Status = PreauthStatusSucceeded
	case res.SecureModeNeeded && res.SecureModeRedirectURL != "":
		result.Status = PreauthStatusPending3DS
		result.RedirectURL = res.SecureModeRedirectURL
	default:
		result.Status = PreauthStatusFailed
	}
	return result, nil
}

func (m *MangopayProvider) CapturePreauthorization(ctx context.Context, preauthRef string, opts CaptureOptions) (*ProviderData, error) {
	in := map[string]interface{}{
		"PreauthorizationId": preauthRef,
	}
	if opts.Amount > 0 {
		in["DebitedFunds"] = mangopayMoney{Amount: opts.Amount}
	}
	if opts.ApplicationFee > 0 {
		in["Fees"] = mangopayMoney{Amount: opts.ApplicationFee}
	}
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/payins/preauthorized/direct", in, &res)
	if err != nil {
		return nil, err
	}
	if err = m.resultErr(&res); err != nil {
		return nil, err
	}
	return m.resourceData("payin", &res), nil
}

func (m *MangopayProvider) Refund(ctx context.Context, payinRef string, opts RefundOptions) (*ProviderData, error) {
	in := map[string]interface{}{}
	if opts.Amount > 0 {
		in["DebitedFunds"] = mangopayMoney{Amount: opts.Amount}
	}
	if !opts.RefundFees {
		in["Fees"] = mangopayMoney{Amount: 0}
	}
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/payins/"+payinRef+"/refunds", in, &res)
	if err != nil {
		return nil, err
	}
	if err = m.resultErr(&res); err != nil {
		return nil, err
	}
	return m.resourceData("refund", &res), nil
}

func (m *MangopayProvider) CancelPreauthorization(ctx context.Context, preauthRef string) error {
	in := map[string]interface{}{
		"PaymentStatus": "CANCELED",
	}
	err := m.request(ctx, http.MethodPut, "/preauthorizations/"+preauthRef, in, nil)
	if providerErr, ok := err.(*ProviderError); ok {
		// hold already captured, expired or voided: nothing left to release
		m.logger.Warnf("mangopay: preauthorization %s not cancellable: %s", preauthRef, providerErr.Message)
		return nil
	}
	return err
}

func (m *MangopayProvider) Transfer(ctx context.Context, destinationAccount string, amount int64, currency, sourceChargeRef string) (*ProviderData, error) {
	in := map[string]interface{}{
		"CreditedWalletId": destinationAccount,
		"DebitedFunds":     mangopayMoney{Currency: currency, Amount: amount},
		"Fees":             mangopayMoney{Currency: currency, Amount: 0},
		"Tag":              sourceChargeRef,
	}
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/transfers", in, &res)
	if err != nil {
		return nil, err
	}
	if err = m.resultErr(&res); err != nil {
		return nil, err
	}
	return m.resourceData("transfer", &res), nil
}

func (m *MangopayProvider) ReverseTransfer(ctx context.Context, transferRef string) (*ProviderData, error) {
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/transfers/"+transferRef+"/refunds", map[string]interface{}{}, &res)
	if err != nil {
		return nil, err
	}
	if err = m.resultErr(&res); err != nil {
		return nil, err
	}
	return m.resourceData("transfer_refund", &res), nil
}

func (m *MangopayProvider) Payout(ctx context.Context, bankAccount string, amount int64, currency string) (*ProviderData, error) {
	in := map[string]interface{}{
		"BankAccountId": bankAccount,
		"DebitedFunds":  mangopayMoney{Currency: currency, Amount: amount},
		"Fees":          mangopayMoney{Currency: currency, Amount: 0},
	}
	res := mangopayResource{}
	err := m.request(ctx, http.MethodPost, "/payouts/bankwire", in, &res)
	if err != nil {
		return nil, err
	}
	if err = m.resultErr(&res); err != nil {
		return nil, err
	}
	return m.resourceData("payout", &res), nil
}

func (m *MangopayProvider) resourceData(resourceType string, res *mangopayResource) *ProviderData {
	raw, _ := json.Marshal(res)
	data := &ProviderData{
		ResourceType:        resourceType,
		ResourceID:          res.ID,
		Status:              res.Status,
		ResultCode:          res.ResultCode,
		ProviderCreatedDate: time.Unix(res.CreationDate, 0),
		Raw:                 raw,
	}
	if res.ExpirationDate > 0 {
		data.ExpirationDate = time.Unix(res.ExpirationDate, 0)
	}
	return data
}
