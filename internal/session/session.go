package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ptrckSTL/BoomOrganized/internal/broadcast"
	"github.com/ptrckSTL/BoomOrganized/internal/job"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/repository"
	"github.com/ptrckSTL/BoomOrganized/internal/service"
	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
)

// Session drives the single-operator view state machine. Every mutation
// happens under one mutex; State() overlays the broadcaster's live job
// status on top of the stored view so callers always see fresh progress.
type Session struct {
	store       repository.RecipientStore
	prefs       repository.PrefsStore
	templates   *service.TemplateService
	runner      *job.Runner
	broadcaster *broadcast.Broadcaster

	mu            sync.Mutex
	view          ViewState
	source        SourceState
	script        string
	attachmentRef string
	lastWarning   sheet.SheetError
}

func NewSession(store repository.RecipientStore, prefs repository.PrefsStore, templates *service.TemplateService, runner *job.Runner, broadcaster *broadcast.Broadcaster) *Session {
	return &Session{
		store:       store,
		prefs:       prefs,
		templates:   templates,
		runner:      runner,
		broadcaster: broadcaster,
		view:        ComposeMessage{},
		source:      SourceState{Kind: SourceNone},
		lastWarning: sheet.NoError,
	}
}

// ColdStart restores persisted prefs and resolves the initial view:
// a live job rehydrates into Executing, leftover pending recipients
// become an offer to resume, and anything else lands on compose.
func (s *Session) ColdStart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, err := s.prefs.Get(ctx, repository.PrefScript)
	if err != nil {
		return fmt.Errorf("loading script pref: %w", err)
	}
	attachment, err := s.prefs.Get(ctx, repository.PrefAttachmentRef)
	if err != nil {
		return fmt.Errorf("loading attachment pref: %w", err)
	}
	s.script = script
	s.attachmentRef = attachment

	if _, running := s.broadcaster.Status().State.(broadcast.Executing); running {
		s.view = Executing{Loading: true}
		return nil
	}

	initial, err := s.initialView(ctx)
	if err != nil {
		return err
	}
	s.view = initial
	return nil
}

// initialView picks between OfferToResume and ComposeMessage based on
// leftover rows. Caller holds the lock.
func (s *Session) initialView(ctx context.Context) (ViewState, error) {
	recipients, err := s.store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading recipients: %w", err)
	}
	counts := models.CountRecipients(recipients)
	if counts.Pending == 0 {
		return ComposeMessage{Script: s.script, AttachmentRef: s.attachmentRef}, nil
	}

	preview := s.script
	for _, r := range recipients {
		if r.Status == models.RecipientStatusPending {
			preview = s.templates.Render(s.script, r.FirstName, r.LastName)
			break
		}
	}
	return OfferToResume{
		AttachmentRef: s.attachmentRef,
		Preview:       preview,
		Counts:        counts,
	}, nil
}

// State returns the current view with live job status folded in.
func (s *Session) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.broadcaster.Status()
	if done, ok := status.State.(broadcast.Complete); ok {
		return Complete{Counts: done.Counts}
	}

	exec, ok := s.view.(Executing)
	if !ok {
		return s.view
	}
	switch st := status.State.(type) {
	case broadcast.Loading:
		exec.Loading = true
		exec.Paused = false
	case broadcast.Executing:
		exec.Contact = st.Contact
		exec.Counts = status.Counts
		exec.Loading = false
		exec.Paused = false
	case broadcast.Paused:
		exec.Counts = status.Counts
		exec.Loading = false
		exec.Paused = true
	}
	return exec
}

// SetScript updates and persists the message script.
func (s *Session) SetScript(ctx context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.prefs.Set(ctx, repository.PrefScript, script); err != nil {
		return fmt.Errorf("saving script: %w", err)
	}
	s.script = script
	if v, ok := s.view.(ComposeMessage); ok {
		v.Script = script
		s.view = v
	}
	return nil
}

// SetAttachment updates and persists the attachment reference.
func (s *Session) SetAttachment(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAttachmentLocked(ctx, ref)
}

// ClearAttachment removes the attachment reference.
func (s *Session) ClearAttachment(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAttachmentLocked(ctx, "")
}

func (s *Session) setAttachmentLocked(ctx context.Context, ref string) error {
	if ref == "" {
		if err := s.prefs.Delete(ctx, repository.PrefAttachmentRef); err != nil {
			return fmt.Errorf("clearing attachment: %w", err)
		}
	} else if err := s.prefs.Set(ctx, repository.PrefAttachmentRef, ref); err != nil {
		return fmt.Errorf("saving attachment: %w", err)
	}
	s.attachmentRef = ref

	switch v := s.view.(type) {
	case ComposeMessage:
		v.AttachmentRef = ref
		s.view = v
	case PreviewOutgoing:
		v.AttachmentRef = ref
		s.view = v
	case OfferToResume:
		v.AttachmentRef = ref
		s.view = v
	}
	return nil
}

// AttachSource takes a freshly parsed sheet (or the parse failure) and
// moves to column mapping. A parse failure lands back on the preview
// screen with the error in the source slot.
func (s *Session) AttachSource(sh sheet.Sheet, parseErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastWarning = sheet.NoError
	if parseErr != nil {
		s.source = SourceState{Kind: SourceError, Err: parseErr.Error()}
		s.view = PreviewOutgoing{
			Source:        s.source,
			Preview:       s.script,
			AttachmentRef: s.attachmentRef,
		}
		return
	}

	s.view = RequestColumnLabels{
		Required: s.templates.RequiredLabels(s.script),
		Sheet:    sh,
		Err:      sheet.NoError,
	}
}

// AssignColumn maps a sheet column to a semantic role on the mapping
// screen. An index of sheet.Unmapped clears the role.
func (s *Session) AssignColumn(label sheet.ColumnLabel, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.view.(RequestColumnLabels)
	if !ok {
		return &service.TransitionError{Action: "assign column", State: s.view.Name()}
	}
	if index != sheet.Unmapped && (index < 0 || index >= len(v.Sheet.Headers)) {
		return &service.ValidationError{Message: fmt.Sprintf("column index %d out of range", index)}
	}

	if index == sheet.Unmapped {
		v.Sheet = v.Sheet.Unassign(label)
	} else {
		v.Sheet = v.Sheet.Assign(label, index)
	}
	v.Err = sheet.NoError
	s.lastWarning = sheet.NoError
	s.view = v
	return nil
}

// Next advances the forward flow from the current view.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := s.view.(type) {
	case ComposeMessage:
		s.view = PreviewOutgoing{
			Source:        s.source,
			Preview:       s.previewLocked(),
			AttachmentRef: s.attachmentRef,
		}
		return nil

	case RequestColumnLabels:
		return s.commitMappingLocked(v)

	case PreviewOutgoing:
		if s.source.Kind != SourceFound {
			return &service.ValidationError{Message: "no recipient source attached"}
		}
		return s.commenceLocked(ctx)

	case OfferToResume:
		return s.resumeLocked()

	case Executing:
		return &service.TransitionError{Action: "advance", State: v.Name()}

	case Complete:
		return s.resetLocked(ctx)
	}
	return &service.TransitionError{Action: "advance", State: s.view.Name()}
}

// commitMappingLocked validates the mapping. A blocking error pins the
// user on the mapping screen; a warning must be shown twice in a row
// before it is taken as accepted, at which point broken rows are
// filtered out and the source commits.
func (s *Session) commitMappingLocked(v RequestColumnLabels) error {
	required := s.templates.RequiredLabels(s.script)
	result := v.Sheet.Validate(required)

	if result.Blocking() {
		v.Err = result
		s.view = v
		return nil
	}
	if !result.IsNone() && result != s.lastWarning {
		s.lastWarning = result
		v.Err = result
		s.view = v
		return nil
	}

	committed := v.Sheet
	if !result.IsNone() {
		committed = committed.FilterBrokenNumbers()
	}
	s.source = SourceState{Kind: SourceFound, Sheet: committed}
	s.lastWarning = sheet.NoError
	s.view = PreviewOutgoing{
		Source:        s.source,
		Preview:       s.previewLocked(),
		AttachmentRef: s.attachmentRef,
	}
	return nil
}

// commenceLocked bulk-loads the committed sheet and starts the runner.
func (s *Session) commenceLocked(ctx context.Context) error {
	recipients := s.source.Sheet.Recipients()
	if len(recipients) == 0 {
		return &service.ValidationError{Message: "source has no sendable recipients"}
	}
	if err := s.store.BulkLoad(ctx, recipients); err != nil {
		return fmt.Errorf("loading recipients: %w", err)
	}
	return s.startRunnerLocked()
}

func (s *Session) resumeLocked() error {
	return s.startRunnerLocked()
}

func (s *Session) startRunnerLocked() error {
	if err := s.runner.Start(s.script, s.attachmentRef); err != nil {
		return fmt.Errorf("starting send job: %w", err)
	}
	s.view = Executing{Loading: true}
	return nil
}

// Back moves one step backward. It reports false when the current view
// swallows back navigation, which for a live run means the caller
// should fall through to its platform default.
func (s *Session) Back(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.view.(type) {
	case RequestColumnLabels:
		// leaving the mapping screen discards the pending mapping
		s.source = SourceState{Kind: SourceNone}
		s.lastWarning = sheet.NoError
		s.view = PreviewOutgoing{
			Source:        s.source,
			Preview:       s.previewLocked(),
			AttachmentRef: s.attachmentRef,
		}
		return true, nil

	case PreviewOutgoing:
		s.view = ComposeMessage{Script: s.script, AttachmentRef: s.attachmentRef}
		return true, nil

	case OfferToResume:
		s.view = ComposeMessage{Script: s.script, AttachmentRef: s.attachmentRef}
		return true, nil

	case Executing:
		if s.runner.Active() {
			return false, nil
		}
		initial, err := s.initialView(ctx)
		if err != nil {
			return false, err
		}
		s.view = initial
		return true, nil
	}
	return false, nil
}

// Pause asks the running job to stop after the in-flight recipient.
func (s *Session) Pause() error {
	if err := s.runner.Pause(); err != nil {
		if errors.Is(err, job.ErrNotRunning) {
			return &service.TransitionError{Action: "pause", State: s.State().Name()}
		}
		return fmt.Errorf("pausing send job: %w", err)
	}
	return nil
}

// Resume restarts a paused run over the remaining pending recipients.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.view.(type) {
	case Executing, OfferToResume:
		return s.startRunnerLocked()
	}
	return &service.TransitionError{Action: "resume", State: s.view.Name()}
}

// FreshStart abandons leftover recipients and the attachment, landing
// back on compose with the script intact.
func (s *Session) FreshStart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing recipients: %w", err)
	}
	if err := s.setAttachmentLocked(ctx, ""); err != nil {
		return err
	}
	s.source = SourceState{Kind: SourceNone}
	s.view = ComposeMessage{Script: s.script}
	return nil
}

// Reset acknowledges a completed run: the batch table empties, the
// broadcaster returns to uninitiated, and the session lands on compose.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(ctx)
}

func (s *Session) resetLocked(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		log.Printf("❌ Failed to clear recipients on reset: %v", err)
	}
	s.broadcaster.Reset()
	s.source = SourceState{Kind: SourceNone}
	s.view = ComposeMessage{Script: s.script, AttachmentRef: s.attachmentRef}
	return nil
}

// previewLocked renders the script against the committed sheet's first
// data row, or returns the raw script when nothing is committed yet.
func (s *Session) previewLocked() string {
	if s.source.Kind != SourceFound {
		return s.script
	}
	return s.templates.Preview(s.script, s.source.Sheet)
}
