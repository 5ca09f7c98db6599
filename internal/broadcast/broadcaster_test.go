package broadcast

import (
	"context"
	"testing"

	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/testutil"
)

func drain(ch <-chan Status) []Status {
	var got []Status
	for {
		select {
		case s := <-ch:
			got = append(got, s)
		default:
			return got
		}
	}
}

// TestBroadcaster_StartsUninitiated tests the zero state
func TestBroadcaster_StartsUninitiated(t *testing.T) {
	b := New(nil)

	status := b.Status()

	if _, ok := status.State.(Uninitiated); !ok {
		t.Errorf("Expected Uninitiated but got %s", status.State.Name())
	}
	testutil.AssertEqual(t, status.Counts.IsEmpty(), true)
}

// TestBroadcaster_PublishesTransitions tests that subscribers see each
// state change in order
func TestBroadcaster_PublishesTransitions(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe(8)
	defer unsub()

	b.SetLoading()
	b.SetExecuting("Ann Lee")
	b.SetPaused()

	got := drain(ch)
	if len(got) != 3 {
		t.Fatalf("Expected 3 emissions but got %d", len(got))
	}
	testutil.AssertEqual(t, got[0].State.Name(), "loading")
	testutil.AssertEqual(t, got[1].State, Executing{Contact: "Ann Lee"})
	testutil.AssertEqual(t, got[2].State.Name(), "paused")
}

// TestBroadcaster_DeduplicatesEmissions tests that an identical status
// is not re-emitted
func TestBroadcaster_DeduplicatesEmissions(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe(8)
	defer unsub()

	b.SetExecuting("Ann Lee")
	b.SetExecuting("Ann Lee")
	b.SetExecuting("Bob Ray")

	got := drain(ch)
	testutil.AssertEqual(t, len(got), 2)
}

// TestBroadcaster_Reset tests that reset is the only zeroing point
func TestBroadcaster_Reset(t *testing.T) {
	b := New(nil)

	b.SetExecuting("Ann Lee")
	b.SetComplete()
	b.Reset()

	status := b.Status()
	if _, ok := status.State.(Uninitiated); !ok {
		t.Errorf("Expected Uninitiated after reset but got %s", status.State.Name())
	}
	testutil.AssertEqual(t, status.Counts, models.RecipientCounts{})
}

// TestBroadcaster_StoreCounts tests that store mutations push fresh
// counts into the status
func TestBroadcaster_StoreCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	if err := repository.InitSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	store := repository.NewRecipientRepository(db)
	b := New(store)

	recipients := []*models.Recipient{
		models.NewRecipient("555-0100", testutil.StringPtr("Ann"), nil),
		models.NewRecipient("555-0101", testutil.StringPtr("Bob"), nil),
	}
	if err := store.BulkLoad(context.Background(), recipients); err != nil {
		t.Fatalf("Failed to load recipients: %v", err)
	}

	testutil.AssertEqual(t, b.Status().Counts.Pending, 2)

	if err := store.UpdateStatus(context.Background(), recipients[0].UUID, models.RecipientStatusSent); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	counts := b.Status().Counts
	testutil.AssertEqual(t, counts.Pending, 1)
	testutil.AssertEqual(t, counts.Sent, 1)
}

// TestBroadcaster_CompleteSnapshotsCounts tests that the terminal state
// carries the counts at completion time
func TestBroadcaster_CompleteSnapshotsCounts(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	if err := repository.InitSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	store := repository.NewRecipientRepository(db)
	b := New(store)

	r := models.NewRecipient("555-0100", nil, nil)
	if err := store.BulkLoad(context.Background(), []*models.Recipient{r}); err != nil {
		t.Fatalf("Failed to load recipients: %v", err)
	}
	if err := store.UpdateStatus(context.Background(), r.UUID, models.RecipientStatusSent); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	b.SetComplete()

	done, ok := b.Status().State.(Complete)
	if !ok {
		t.Fatalf("Expected Complete but got %s", b.Status().State.Name())
	}
	testutil.AssertEqual(t, done.Counts.Sent, 1)
	testutil.AssertEqual(t, done.Counts.Pending, 0)
}

// TestBroadcaster_SlowSubscriberDropsUpdates tests non-blocking delivery
func TestBroadcaster_SlowSubscriberDropsUpdates(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.SetExecuting("Ann")
	b.SetExecuting("Bob")
	b.SetExecuting("Cal")

	got := drain(ch)
	// Only the first emission fit the buffer
	testutil.AssertEqual(t, len(got), 1)
	testutil.AssertEqual(t, got[0].State, Executing{Contact: "Ann"})
}
