package payments

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/renthub/renthub.go/common"
	"github.com/ziflex/lecho/v3"
)

type Config struct {
	StripeAPIURL       string `envconfig:"STRIPE_API_URL" default:"https://api.stripe.com/v1"`
	StripeSecretKey    string `envconfig:"STRIPE_SECRET_KEY"`
	MangopayAPIURL     string `envconfig:"MANGOPAY_API_URL" default:"https://api.mangopay.com/v2.01"`
	MangopayClientID   string `envconfig:"MANGOPAY_CLIENT_ID"`
	MangopayAPIKey     string `envconfig:"MANGOPAY_API_KEY"`
	RequestTimeout     int    `envconfig:"PROVIDER_REQUEST_TIMEOUT" default:"30"` // seconds
	RequestsPerSecond  int    `envconfig:"PROVIDER_REQUESTS_PER_SECOND" default:"25"`
	RequestBurst       int    `envconfig:"PROVIDER_REQUEST_BURST" default:"5"`
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InitProviders constructs a client per configured provider, keyed by the
// provider name stored on bookings. Credentials come from the explicit
// config only.
func InitProviders(c *Config, logger *lecho.Logger) map[string]Provider {
	providers := map[string]Provider{}
	if c.StripeSecretKey != "" {
		providers[common.PaymentProviderStripe] = NewStripeProvider(c, logger)
	}
	if c.MangopayClientID != "" && c.MangopayAPIKey != "" {
		providers[common.PaymentProviderMangopay] = NewMangopayProvider(c, logger)
	}
	return providers
}
