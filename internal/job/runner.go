package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ptrckSTL/BoomOrganized/internal/broadcast"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/notify"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/service"
)

// MessageTransport dispatches one rendered message. Dispatch is
// fire-and-forget from the runner's perspective: the Sent confirmation
// arrives later through the delivery-receipt path, keyed by tag.
type MessageTransport interface {
	Dispatch(ctx context.Context, body string, recipients []string, subscriptionID int, attachments []models.Attachment, tag string) error
}

// ErrCancelled reports a run stopped by explicit user cancellation.
// Expected and benign, unlike ErrIncomplete.
var ErrCancelled = errors.New("batch cancelled")

// ErrIncomplete reports a run that finished its loop with rows still
// pending
var ErrIncomplete = errors.New("recipients still pending after run")

// ErrNotRunning reports a pause with no active batch
var ErrNotRunning = errors.New("no active batch to pause")

// Runner drives one resumable batch send at a time. Starting a new
// batch replaces any active one; two runs never execute concurrently
// against the same store.
type Runner struct {
	store       repository.RecipientStore
	templates   *service.TemplateService
	attachments *service.AttachmentService
	transport   MessageTransport
	broadcaster *broadcast.Broadcaster
	notifier    notify.ProgressNotifier

	pacing         time.Duration
	subscriptionID int

	mu     sync.Mutex
	state  RunState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates an idle runner
func NewRunner(
	store repository.RecipientStore,
	templates *service.TemplateService,
	attachments *service.AttachmentService,
	transport MessageTransport,
	broadcaster *broadcast.Broadcaster,
	notifier notify.ProgressNotifier,
	pacing time.Duration,
	subscriptionID int,
) *Runner {
	return &Runner{
		store:          store,
		templates:      templates,
		attachments:    attachments,
		transport:      transport,
		broadcaster:    broadcaster,
		notifier:       notifier,
		pacing:         pacing,
		subscriptionID: subscriptionID,
		state:          Idle,
	}
}

// State returns the runner's current lifecycle state
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Active reports whether a batch is currently running
func (r *Runner) Active() bool {
	return r.State() == Running
}

// Start launches a batch over every recipient still pending in the
// store. Any active run is cancelled and awaited first, so only one
// batch is ever live.
func (r *Runner) Start(script, attachmentRef string) error {
	r.mu.Lock()
	for !r.state.canStart() {
		cancel, done := r.cancel, r.done
		r.mu.Unlock()
		cancel()
		<-done
		r.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.state = Running
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		err := r.execute(ctx, script, attachmentRef)

		r.mu.Lock()
		if errors.Is(err, ErrCancelled) {
			r.state = Cancelled
		} else {
			r.state = Completed
		}
		r.mu.Unlock()

		switch {
		case err == nil:
			log.Println("✅ Batch completed, all recipients organized")
		case errors.Is(err, ErrCancelled):
			log.Println("⏸️  Batch paused by user")
		default:
			log.Printf("❌ Batch finished with error: %v", err)
		}
	}()

	return nil
}

// Pause cancels the active run at its next delay boundary. Rows already
// marked sending are left untouched; a later resume re-filters to
// strictly pending rows and never re-attempts them.
func (r *Runner) Pause() error {
	r.mu.Lock()
	if !r.state.canCancel() {
		r.mu.Unlock()
		return ErrNotRunning
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	return nil
}

// Wait blocks until the current run, if any, finishes
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// execute is the batch loop. Status broadcasts are issued in order:
// Loading once, Executing per recipient, then a terminal Paused or
// Complete.
func (r *Runner) execute(ctx context.Context, script, attachmentRef string) error {
	r.broadcaster.SetLoading()

	all, err := r.store.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}
	pending := make([]*models.Recipient, 0, len(all))
	for _, rec := range all {
		if rec.Status == models.RecipientStatusPending {
			pending = append(pending, rec)
		}
	}

	var attachments []models.Attachment
	if attachmentRef != "" {
		att, err := r.attachments.Resolve(attachmentRef)
		if err != nil {
			return fmt.Errorf("failed to resolve attachment: %w", err)
		}
		attachments = []models.Attachment{*att}
	}

	total := len(pending)
	defer r.notifier.Clear()

	for i, rec := range pending {
		// Pacing delay before every send, including the first. This is
		// also the cancellation point, so pause stays responsive.
		if err := r.await(ctx); err != nil {
			r.broadcaster.SetPaused()
			return err
		}

		if err := r.store.UpdateStatus(ctx, rec.UUID, models.RecipientStatusSending); err != nil {
			return fmt.Errorf("failed to mark recipient sending: %w", err)
		}

		label := rec.Label()
		r.broadcaster.SetExecuting(label)
		r.notifier.Progress(total, i+1, label)

		body := r.templates.Render(script, rec.FirstName, rec.LastName)
		err := r.transport.Dispatch(ctx, body, []string{rec.Phone}, r.subscriptionID, attachments, rec.UUID)
		if err != nil {
			// The transport owns retry; the row stays sending until its
			// receipt arrives.
			log.Printf("Warning: dispatch failed for %s: %v", rec.Phone, err)
		}
	}

	counts, err := r.store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-query counts: %w", err)
	}
	if counts.Pending != 0 {
		return ErrIncomplete
	}

	r.broadcaster.SetComplete()
	return nil
}

// await sleeps the pacing interval or returns ErrCancelled
func (r *Runner) await(ctx context.Context) error {
	timer := time.NewTimer(r.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrCancelled
	case <-timer.C:
		return nil
	}
}
