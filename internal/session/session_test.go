package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ptrckSTL/BoomOrganized/internal/broadcast"
	"github.com/ptrckSTL/BoomOrganized/internal/job"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/notify"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/service"
	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
	"github.com/ptrckSTL/BoomOrganized/internal/testutil"
)

// confirmTransport confirms every dispatch immediately so batches drain
type confirmTransport struct {
	store repository.RecipientStore
}

func (t *confirmTransport) Dispatch(ctx context.Context, body string, recipients []string, subscriptionID int, attachments []models.Attachment, tag string) error {
	return t.store.UpdateStatus(ctx, tag, models.RecipientStatusSent)
}

type fixture struct {
	session     *Session
	store       repository.RecipientStore
	prefs       repository.PrefsStore
	runner      *job.Runner
	broadcaster *broadcast.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	if err := repository.InitSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	store := repository.NewRecipientRepository(db)
	prefs := repository.NewPrefsRepository(db)
	broadcaster := broadcast.New(store)
	templates := service.NewTemplateService()
	runner := job.NewRunner(
		store,
		templates,
		service.NewAttachmentService(),
		&confirmTransport{store: store},
		broadcaster,
		notify.NopNotifier{},
		time.Millisecond,
		1,
	)
	return &fixture{
		session:     NewSession(store, prefs, templates, runner, broadcaster),
		store:       store,
		prefs:       prefs,
		runner:      runner,
		broadcaster: broadcaster,
	}
}

func attachCSV(t *testing.T, f *fixture, csv string) {
	t.Helper()
	sh, err := sheet.ReadCSV(strings.NewReader(csv))
	f.session.AttachSource(sh, err)
}

const goodCSV = "First Name,Last,Cell\nAnn,Lee,555-0100\nBob,Ray,555-0101\n"

// TestColdStart_EmptyStore tests that a fresh database lands on compose
// with the persisted script restored
func TestColdStart_EmptyStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.prefs.Set(ctx, repository.PrefScript, "Hey firstName"))
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	view, ok := f.session.State().(ComposeMessage)
	if !ok {
		t.Fatalf("Expected ComposeMessage but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, view.Script, "Hey firstName")
}

// TestColdStart_PendingRows tests that leftover pending recipients turn
// into an offer to resume with a rendered preview
func TestColdStart_PendingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.prefs.Set(ctx, repository.PrefScript, "Hey firstName"))
	recipients := []*models.Recipient{
		models.NewRecipient("555-0100", testutil.StringPtr("Ann"), nil),
		models.NewRecipient("555-0101", testutil.StringPtr("Bob"), nil),
		models.NewRecipient("555-0102", testutil.StringPtr("Cal"), nil),
	}
	testutil.AssertNoError(t, f.store.BulkLoad(ctx, recipients))

	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	view, ok := f.session.State().(OfferToResume)
	if !ok {
		t.Fatalf("Expected OfferToResume but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, view.Counts.Pending, 3)
	testutil.AssertEqual(t, view.Preview, "Hey Ann")
}

// TestColdStart_SentRowsOnly tests that a drained store does not offer
// to resume
func TestColdStart_SentRowsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := models.NewRecipient("555-0100", nil, nil)
	testutil.AssertNoError(t, f.store.BulkLoad(ctx, []*models.Recipient{r}))
	testutil.AssertNoError(t, f.store.UpdateStatus(ctx, r.UUID, models.RecipientStatusSent))

	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	if _, ok := f.session.State().(ComposeMessage); !ok {
		t.Errorf("Expected ComposeMessage but got %s", f.session.State().Name())
	}
}

// TestFlow_ComposeToComplete drives the whole forward flow: compose,
// preview, attach a source, commence, and reach completion
func TestFlow_ComposeToComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.session.ColdStart(ctx))
	testutil.AssertNoError(t, f.session.SetScript(ctx, "Hey firstName"))

	// Compose -> Preview (no source yet)
	testutil.AssertNoError(t, f.session.Next(ctx))
	preview, ok := f.session.State().(PreviewOutgoing)
	if !ok {
		t.Fatalf("Expected PreviewOutgoing but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, preview.Source.Kind, SourceNone)

	// Advancing without a source is refused
	if err := f.session.Next(ctx); err == nil {
		t.Fatal("Expected error advancing without a source")
	}

	// Attach a clean source and map columns
	attachCSV(t, f, goodCSV)
	if _, ok := f.session.State().(RequestColumnLabels); !ok {
		t.Fatalf("Expected RequestColumnLabels but got %s", f.session.State().Name())
	}

	// Mapping validates clean, so the source commits
	testutil.AssertNoError(t, f.session.Next(ctx))
	preview, ok = f.session.State().(PreviewOutgoing)
	if !ok {
		t.Fatalf("Expected PreviewOutgoing but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, preview.Source.Kind, SourceFound)
	testutil.AssertEqual(t, preview.Preview, "Hey Ann")

	// Commence
	testutil.AssertNoError(t, f.session.Next(ctx))
	f.runner.Wait()

	done, ok := f.session.State().(Complete)
	if !ok {
		t.Fatalf("Expected Complete but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, done.Counts.Sent, 2)
	testutil.AssertEqual(t, done.Counts.Pending, 0)
}

// TestFlow_ParseFailureLandsOnPreview tests that a garbage source shows
// up as an error in the preview's source slot
func TestFlow_ParseFailureLandsOnPreview(t *testing.T) {
	f := newFixture(t)
	testutil.AssertNoError(t, f.session.ColdStart(context.Background()))

	attachCSV(t, f, `"unterminated`)

	preview, ok := f.session.State().(PreviewOutgoing)
	if !ok {
		t.Fatalf("Expected PreviewOutgoing but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, preview.Source.Kind, SourceError)
	testutil.AssertContains(t, preview.Source.Err, "source error")
}

// TestFlow_BlockingMappingError tests that a source with no cell column
// pins the user on the mapping screen
func TestFlow_BlockingMappingError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	attachCSV(t, f, "Email,Name\na@b.c,Ann\nd@e.f,Bob\n")

	// No matter how many times the user pushes forward, the blocking
	// error keeps them here
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, f.session.Next(ctx))
		view, ok := f.session.State().(RequestColumnLabels)
		if !ok {
			t.Fatalf("Expected RequestColumnLabels but got %s", f.session.State().Name())
		}
		testutil.AssertEqual(t, view.Err.Kind, sheet.ErrNoCellColumn)
	}
}

// TestFlow_ConfirmPastWarning tests the double-ack: the same warning
// shown twice in a row counts as accepted, and broken rows are dropped
func TestFlow_ConfirmPastWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	attachCSV(t, f, "First Name,Cell\nAnn,555-0100\nBob,not a phone\n")

	// First advance surfaces the warning
	testutil.AssertNoError(t, f.session.Next(ctx))
	view, ok := f.session.State().(RequestColumnLabels)
	if !ok {
		t.Fatalf("Expected RequestColumnLabels but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, view.Err.Kind, sheet.ErrBrokenNumbers)
	testutil.AssertEqual(t, view.Err.Count, 1)

	// Second advance accepts it; the broken row is filtered out
	testutil.AssertNoError(t, f.session.Next(ctx))
	preview, ok := f.session.State().(PreviewOutgoing)
	if !ok {
		t.Fatalf("Expected PreviewOutgoing but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, preview.Source.Kind, SourceFound)
	testutil.AssertEqual(t, len(preview.Source.Sheet.Rows), 1)
}

// TestFlow_AssignColumnResetsWarningAck tests that changing the mapping
// invalidates a pending warning acknowledgement
func TestFlow_AssignColumnResetsWarningAck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	attachCSV(t, f, "First Name,Cell\nAnn,555-0100\nBob,not a phone\n")

	testutil.AssertNoError(t, f.session.Next(ctx))
	testutil.AssertNoError(t, f.session.AssignColumn(sheet.ColumnFirstName, 0))

	// The warning must be shown again before it can be accepted
	testutil.AssertNoError(t, f.session.Next(ctx))
	view, ok := f.session.State().(RequestColumnLabels)
	if !ok {
		t.Fatalf("Expected RequestColumnLabels but got %s", f.session.State().Name())
	}
	testutil.AssertEqual(t, view.Err.Kind, sheet.ErrBrokenNumbers)
}

// TestAssignColumn_Validation tests mapping-screen guards
func TestAssignColumn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	// Not on the mapping screen yet
	if err := f.session.AssignColumn(sheet.ColumnCellPhone, 0); err == nil {
		t.Error("Expected error assigning outside the mapping screen")
	}

	attachCSV(t, f, goodCSV)

	// Out-of-range index
	if err := f.session.AssignColumn(sheet.ColumnCellPhone, 9); err == nil {
		t.Error("Expected error for out-of-range index")
	}

	// Reassigning a mapped column moves the role
	testutil.AssertNoError(t, f.session.AssignColumn(sheet.ColumnLastName, 0))
	view := f.session.State().(RequestColumnLabels)
	testutil.AssertEqual(t, view.Sheet.LastNameIndex, 0)
	testutil.AssertEqual(t, view.Sheet.FirstNameIndex, sheet.Unmapped)

	// Unmapping clears only the named role
	testutil.AssertNoError(t, f.session.AssignColumn(sheet.ColumnLastName, sheet.Unmapped))
	view = f.session.State().(RequestColumnLabels)
	testutil.AssertEqual(t, view.Sheet.LastNameIndex, sheet.Unmapped)
	testutil.AssertEqual(t, view.Sheet.CellIndex, 2)
}

// TestBack tests backward navigation rules
func TestBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	// Compose -> Preview -> mapping, then all the way back
	testutil.AssertNoError(t, f.session.Next(ctx))
	attachCSV(t, f, goodCSV)

	handled, err := f.session.Back(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, handled, true)
	preview, ok := f.session.State().(PreviewOutgoing)
	if !ok {
		t.Fatalf("Expected PreviewOutgoing but got %s", f.session.State().Name())
	}
	// Leaving the mapping screen discarded the pending source
	testutil.AssertEqual(t, preview.Source.Kind, SourceNone)

	handled, err = f.session.Back(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, handled, true)
	if _, ok := f.session.State().(ComposeMessage); !ok {
		t.Errorf("Expected ComposeMessage but got %s", f.session.State().Name())
	}

	// Compose swallows back
	handled, err = f.session.Back(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, handled, false)
}

// TestResumeFromOffer tests accepting the cold-start resume offer
func TestResumeFromOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))
	testutil.AssertNoError(t, f.session.SetScript(ctx, "Hey firstName"))

	recipients := []*models.Recipient{
		models.NewRecipient("555-0100", testutil.StringPtr("Ann"), nil),
		models.NewRecipient("555-0101", testutil.StringPtr("Bob"), nil),
	}
	testutil.AssertNoError(t, f.store.BulkLoad(ctx, recipients))
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	// Resume from the offer
	testutil.AssertNoError(t, f.session.Next(ctx))
	if _, ok := f.session.State().(Executing); !ok {
		t.Fatalf("Expected Executing but got %s", f.session.State().Name())
	}
	f.runner.Wait()

	if _, ok := f.session.State().(Complete); !ok {
		t.Errorf("Expected Complete but got %s", f.session.State().Name())
	}
}

// TestReset tests acknowledging a completed run
func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.AssertNoError(t, f.session.ColdStart(ctx))
	testutil.AssertNoError(t, f.session.SetScript(ctx, "Hey firstName"))

	attachCSV(t, f, goodCSV)
	testutil.AssertNoError(t, f.session.Next(ctx))
	testutil.AssertNoError(t, f.session.Next(ctx))
	f.runner.Wait()

	if _, ok := f.session.State().(Complete); !ok {
		t.Fatalf("Expected Complete but got %s", f.session.State().Name())
	}

	testutil.AssertNoError(t, f.session.Reset(ctx))

	if _, ok := f.session.State().(ComposeMessage); !ok {
		t.Errorf("Expected ComposeMessage but got %s", f.session.State().Name())
	}
	if _, ok := f.broadcaster.Status().State.(broadcast.Uninitiated); !ok {
		t.Errorf("Expected Uninitiated broadcaster but got %s", f.broadcaster.Status().State.Name())
	}

	counts, err := f.store.Counts(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, counts.IsEmpty(), true)
}

// TestFreshStart tests abandoning leftovers
func TestFreshStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.AssertNoError(t, f.prefs.Set(ctx, repository.PrefScript, "Hey firstName"))
	testutil.AssertNoError(t, f.prefs.Set(ctx, repository.PrefAttachmentRef, "/tmp/flyer.png"))
	testutil.AssertNoError(t, f.store.BulkLoad(ctx, []*models.Recipient{
		models.NewRecipient("555-0100", nil, nil),
	}))
	testutil.AssertNoError(t, f.session.ColdStart(ctx))

	testutil.AssertNoError(t, f.session.FreshStart(ctx))

	view, ok := f.session.State().(ComposeMessage)
	if !ok {
		t.Fatalf("Expected ComposeMessage but got %s", f.session.State().Name())
	}
	// Script survives, attachment and recipients do not
	testutil.AssertEqual(t, view.Script, "Hey firstName")
	testutil.AssertEqual(t, view.AttachmentRef, "")

	counts, err := f.store.Counts(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, counts.IsEmpty(), true)

	ref, err := f.prefs.Get(ctx, repository.PrefAttachmentRef)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ref, "")
}
