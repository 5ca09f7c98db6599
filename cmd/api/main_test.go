package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/queue"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/testutil"
)

func newReceiptStore(t *testing.T) repository.RecipientStore {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	if err := repository.InitSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return repository.NewRecipientRepository(db)
}

func receiptBody(t *testing.T, receipt queue.DeliveryReceipt) []byte {
	t.Helper()
	body, err := json.Marshal(receipt)
	testutil.AssertNoError(t, err)
	return body
}

// TestReceiptHandler_MarksSent tests folding a delivery receipt back
// into the store
func TestReceiptHandler_MarksSent(t *testing.T) {
	store := newReceiptStore(t)
	ctx := context.Background()

	recipient := models.NewRecipient("555-0100", testutil.StringPtr("Ann"), nil)
	testutil.AssertNoError(t, store.Upsert(ctx, recipient))
	testutil.AssertNoError(t, store.UpdateStatus(ctx, recipient.UUID, models.RecipientStatusSending))

	handle := receiptHandler(store)
	err := handle(receiptBody(t, queue.DeliveryReceipt{Tag: recipient.UUID, Delivered: true}))
	testutil.AssertNoError(t, err)

	counts, err := store.Counts(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, counts.Sent, 1)
	testutil.AssertEqual(t, counts.Sending, 0)
}

// TestReceiptHandler_UnknownTag tests that a receipt whose row was
// cleared mid-flight (fresh start, reset) is dropped rather than
// requeued. Returning an error here would nack-requeue the same
// delivery forever and stall every receipt behind it.
func TestReceiptHandler_UnknownTag(t *testing.T) {
	store := newReceiptStore(t)

	handle := receiptHandler(store)
	err := handle(receiptBody(t, queue.DeliveryReceipt{Tag: "row-cleared-mid-flight", Delivered: true}))

	testutil.AssertNoError(t, err)
}

// TestReceiptHandler_BadPayload tests that undecodable bodies are acked
// and dropped
func TestReceiptHandler_BadPayload(t *testing.T) {
	store := newReceiptStore(t)

	handle := receiptHandler(store)
	err := handle([]byte("not json"))

	testutil.AssertNoError(t, err)
}

// TestReceiptHandler_FailedDelivery tests that a negative receipt
// leaves the row in "sending" for the stale sweep to reclaim
func TestReceiptHandler_FailedDelivery(t *testing.T) {
	store := newReceiptStore(t)
	ctx := context.Background()

	recipient := models.NewRecipient("555-0101", testutil.StringPtr("Bob"), nil)
	testutil.AssertNoError(t, store.Upsert(ctx, recipient))
	testutil.AssertNoError(t, store.UpdateStatus(ctx, recipient.UUID, models.RecipientStatusSending))

	handle := receiptHandler(store)
	err := handle(receiptBody(t, queue.DeliveryReceipt{Tag: recipient.UUID, Delivered: false, Error: "gateway timeout"}))
	testutil.AssertNoError(t, err)

	counts, err := store.Counts(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, counts.Sending, 1)
	testutil.AssertEqual(t, counts.Sent, 0)
}
