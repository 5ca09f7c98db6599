package queue

import (
	"context"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
)

// Transport publishes dispatch jobs toward the gateway worker. It
// satisfies the job runner's MessageTransport interface.
type Transport struct {
	publisher *Publisher
}

// NewTransport creates a transport over a dispatch-queue publisher
func NewTransport(publisher *Publisher) *Transport {
	return &Transport{publisher: publisher}
}

// Dispatch enqueues one rendered message. Delivery confirmation arrives
// later on the receipt queue, keyed by tag.
func (t *Transport) Dispatch(ctx context.Context, body string, recipients []string, subscriptionID int, attachments []models.Attachment, tag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.publisher.Publish(DispatchJob{
		Tag:            tag,
		Body:           body,
		Recipients:     recipients,
		SubscriptionID: subscriptionID,
		Attachments:    attachments,
	})
}
