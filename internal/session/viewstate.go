package session

import (
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
)

// ViewState is the closed set of screens the session can show. The only
// implementations live in this package, so a type switch over them is
// exhaustive.
type ViewState interface {
	viewState()
	Name() string
}

// SourceKind tags the recipient-source slot of the preview screen
type SourceKind string

const (
	SourceNone  SourceKind = "none"
	SourceError SourceKind = "error"
	SourceFound SourceKind = "found"
)

// SourceState is the last-attached recipient source: nothing yet, a
// failed import, or a mapped sheet ready to commit.
type SourceState struct {
	Kind  SourceKind  `json:"kind"`
	Err   string      `json:"error,omitempty"`
	Sheet sheet.Sheet `json:"sheet,omitempty"`
}

// ComposeMessage is the entry screen: script text plus optional image
type ComposeMessage struct {
	Script        string `json:"script"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
}

// RequestColumnLabels asks the user to map sheet columns to semantic
// roles before the source can be committed
type RequestColumnLabels struct {
	Required map[sheet.ColumnLabel]bool `json:"required"`
	Sheet    sheet.Sheet                `json:"sheet"`
	Err      sheet.SheetError           `json:"err"`
}

// PreviewOutgoing shows the rendered first-row preview over the current
// source state
type PreviewOutgoing struct {
	Source        SourceState `json:"source"`
	Preview       string      `json:"preview"`
	AttachmentRef string      `json:"attachment_ref,omitempty"`
}

// OfferToResume is the cold-start screen shown when a previous session
// left pending recipients behind
type OfferToResume struct {
	AttachmentRef string                 `json:"attachment_ref,omitempty"`
	Preview       string                 `json:"preview"`
	Counts        models.RecipientCounts `json:"counts"`
}

// Executing shows live batch progress
type Executing struct {
	Contact string                 `json:"contact"`
	Counts  models.RecipientCounts `json:"counts"`
	Paused  bool                   `json:"paused"`
	Loading bool                   `json:"loading"`
}

// Complete shows the final counts until the user acknowledges them
type Complete struct {
	Counts models.RecipientCounts `json:"counts"`
}

func (ComposeMessage) viewState()      {}
func (RequestColumnLabels) viewState() {}
func (PreviewOutgoing) viewState()     {}
func (OfferToResume) viewState()       {}
func (Executing) viewState()           {}
func (Complete) viewState()            {}

func (ComposeMessage) Name() string      { return "compose_message" }
func (RequestColumnLabels) Name() string { return "request_column_labels" }
func (PreviewOutgoing) Name() string     { return "preview_outgoing" }
func (OfferToResume) Name() string       { return "offer_to_resume" }
func (Executing) Name() string           { return "executing" }
func (Complete) Name() string            { return "complete" }
