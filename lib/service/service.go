package service

import (
	"github.com/go-playground/validator/v10"
	"github.com/renthub/renthub.go/payments"
	"github.com/renthub/renthub.go/rabbitmq"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

var validate = validator.New()

// RenthubService carries everything the payment core needs: configuration,
// the ledger database, the provider adapters and the event plumbing.
// Callers must serialize mutating operations per booking; the service itself
// takes no per-booking lock.
type RenthubService struct {
	Config         *Config
	DB             *bun.DB
	Logger         *lecho.Logger
	Providers      map[string]payments.Provider
	EventPubSub    *Pubsub
	RabbitMQClient rabbitmq.Client
}

// ProviderFor returns the adapter serving the given provider name, as stored
// on bookings and cards.
func (svc *RenthubService) ProviderFor(name string) (payments.Provider, error) {
	provider, ok := svc.Providers[name]
	if !ok {
		return nil, &ValidationError{Field: "paymentProvider", Reason: "unknown payment provider " + name}
	}
	return provider, nil
}
