package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// StartWebhookSubscription forwards every booking event to the configured
// webhook url until the context is cancelled.
func (svc *RenthubService) StartWebhookSubscription(ctx context.Context) {

	svc.Logger.Infof("Starting webhook subscription with webhook url %s", svc.Config.WebhookUrl)
	events := make(chan Event)
	subId := svc.EventPubSub.Subscribe(DefaultTopic, events)
	defer svc.EventPubSub.Unsubscribe(subId, DefaultTopic)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			svc.postToWebhook(event)
		}
	}
}

func (svc *RenthubService) postToWebhook(event Event) {

	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(event)
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	resp, err := http.Post(svc.Config.WebhookUrl, "application/json", payload)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			svc.Logger.Error(err)
		}
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode, msg)
	}
}
