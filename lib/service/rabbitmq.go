package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/renthub/renthub.go/payments"
	"github.com/renthub/renthub.go/rabbitmq"
)

const (
	CommandCreatePreauthorization   = "create_preauthorization"
	CommandFinalizePreauthorization = "finalize_preauthorization"
	CommandCapturePayment           = "capture_payment"
	CommandTransferPayment          = "transfer_payment"
	CommandPayoutPayment            = "payout_payment"
	CommandCancelBooking            = "cancel_booking"
)

type createPreauthorizationArgs struct {
	CardID    int64  `json:"card_id"`
	Operation string `json:"operation"`
}

type finalizePreauthorizationArgs struct {
	VerificationToken string `json:"verification_token"`
	Status            string `json:"status"`
	ResourceType      string `json:"resource_type"`
	ResourceID        string `json:"resource_id"`
	ResultCode        string `json:"result_code"`
}

type cancelBookingArgs struct {
	ReasonType     string               `json:"reasonType"`
	Reason         string               `json:"reason"`
	Trigger        string               `json:"trigger"`
	CancelPayment  bool                 `json:"cancelPayment"`
	PaymentOptions CancelPaymentOptions `json:"paymentOptions"`
}

// decodeCancelBookingArgs decodes the cancel command payload. Payment options
// left out of the message mean a full refund, the same default as
// DefaultCancelArgs.
func decodeCancelBookingArgs(raw json.RawMessage) (cancelBookingArgs, error) {
	args := cancelBookingArgs{PaymentOptions: DefaultCancelPaymentOptions()}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return cancelBookingArgs{}, err
	}
	return args, nil
}

// HandleCommand dispatches one booking command from the queue. Returning an
// error nacks the delivery.
func (svc *RenthubService) HandleCommand(ctx context.Context, command *rabbitmq.Command) error {
	svc.Logger.Infof("Handling command %s [booking_id:%d]", command.Name, command.BookingID)
	switch command.Name {
	case CommandCreatePreauthorization:
		var args createPreauthorizationArgs
		if err := json.Unmarshal(command.Args, &args); err != nil {
			return err
		}
		_, err := svc.CreatePreauthorization(ctx, command.BookingID, args.CardID, args.Operation)
		return err
	case CommandFinalizePreauthorization:
		var args finalizePreauthorizationArgs
		if err := json.Unmarshal(command.Args, &args); err != nil {
			return err
		}
		result := &payments.PreauthorizationResult{
			Status: args.Status,
			Data: &payments.ProviderData{
				ResourceType: args.ResourceType,
				ResourceID:   args.ResourceID,
				ResultCode:   args.ResultCode,
			},
		}
		_, err := svc.FinalizePreauthorization(ctx, args.VerificationToken, result)
		return err
	case CommandCapturePayment:
		_, err := svc.CapturePayment(ctx, command.BookingID)
		return err
	case CommandTransferPayment:
		_, err := svc.TransferPayment(ctx, command.BookingID)
		return err
	case CommandPayoutPayment:
		_, err := svc.PayoutPayment(ctx, command.BookingID)
		return err
	case CommandCancelBooking:
		args, err := decodeCancelBookingArgs(command.Args)
		if err != nil {
			return err
		}
		_, err = svc.CancelBooking(ctx, CancelArgs{
			BookingID:      command.BookingID,
			ReasonType:     args.ReasonType,
			Reason:         args.Reason,
			Trigger:        args.Trigger,
			CancelPayment:  args.CancelPayment,
			PaymentOptions: args.PaymentOptions,
		})
		return err
	default:
		svc.Logger.Warnf("Ignoring unknown command %s [booking_id:%d]", command.Name, command.BookingID)
		return nil
	}
}

// subscribeEvents adapts the in-process event stream for the rabbitmq
// publisher.
func (svc *RenthubService) subscribeEvents() (chan rabbitmq.PublishableEvent, error) {
	events := make(chan Event)
	svc.EventPubSub.Subscribe(DefaultTopic, events)
	out := make(chan rabbitmq.PublishableEvent)
	go func() {
		for event := range events {
			out <- event
		}
		close(out)
	}()
	return out, nil
}

func (svc *RenthubService) encodeEvent(ctx context.Context, w io.Writer, event rabbitmq.PublishableEvent) error {
	return json.NewEncoder(w).Encode(event)
}

// StartRabbitMqPublisher pushes booking events to the broker until the
// context is cancelled.
func (svc *RenthubService) StartRabbitMqPublisher(ctx context.Context) error {
	return svc.RabbitMQClient.StartPublishEvents(ctx, svc.subscribeEvents, svc.encodeEvent)
}

// StartCommandConsumer processes booking commands from the broker until the
// context is cancelled.
func (svc *RenthubService) StartCommandConsumer(ctx context.Context) error {
	return svc.RabbitMQClient.SubscribeToCommands(ctx, svc.HandleCommand)
}
