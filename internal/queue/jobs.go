package queue

import "github.com/ptrckSTL/BoomOrganized/internal/models"

// DispatchJob carries one fully rendered message to the gateway worker.
// Tag is the recipient's derived id; it travels through to the delivery
// receipt so the receipt consumer can mark the right row sent.
type DispatchJob struct {
	Tag            string              `json:"tag"`
	Body           string              `json:"body"`
	Recipients     []string            `json:"recipients"`
	SubscriptionID int                 `json:"subscription_id"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
}

// DeliveryReceipt is the gateway worker's asynchronous confirmation for
// a dispatch, keyed by the same correlation tag.
type DeliveryReceipt struct {
	Tag       string `json:"tag"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}
