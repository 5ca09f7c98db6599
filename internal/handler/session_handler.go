package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ptrckSTL/BoomOrganized/internal/broadcast"
	"github.com/ptrckSTL/BoomOrganized/internal/models"
	"github.com/ptrckSTL/BoomOrganized/internal/session"
	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
)

// maxSourceSize caps uploaded recipient sources at 8 MiB
const maxSourceSize = 8 << 20

// SessionHandler handles HTTP requests for the batch session
type SessionHandler struct {
	session     *session.Session
	broadcaster *broadcast.Broadcaster
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(s *session.Session, b *broadcast.Broadcaster) *SessionHandler {
	return &SessionHandler{
		session:     s,
		broadcaster: b,
	}
}

// ViewResponse wraps a view state with its discriminator tag
type ViewResponse struct {
	State string            `json:"state"`
	View  session.ViewState `json:"view"`
}

func (h *SessionHandler) writeView(w http.ResponseWriter) {
	v := h.session.State()
	WriteOK(w, ViewResponse{State: v.Name(), View: v})
}

// Get handles GET /session - returns the current view state
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeView(w)
}

// SetScript handles PUT /session/script - updates the message script
func (h *SessionHandler) SetScript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := h.session.SetScript(r.Context(), req.Script); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// SetAttachment handles PUT /session/attachment - sets the image reference
func (h *SessionHandler) SetAttachment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if req.Ref == "" {
		WriteValidationError(w, "ref cannot be empty")
		return
	}

	if err := h.session.SetAttachment(r.Context(), req.Ref); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// ClearAttachment handles DELETE /session/attachment
func (h *SessionHandler) ClearAttachment(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearAttachment(r.Context()); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// AttachSource handles POST /session/source - uploads a CSV recipient source.
// The body is the raw CSV; a parse failure still returns 200 because the
// failure becomes part of the view state rather than an API error.
func (h *SessionHandler) AttachSource(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxSourceSize)
	sh, err := sheet.ReadCSV(body)
	h.session.AttachSource(sh, err)
	h.writeView(w)
}

// AssignColumn handles POST /session/columns - maps a column to a role
func (h *SessionHandler) AssignColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
		Index *int   `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if req.Index == nil {
		WriteValidationError(w, "index is required (use -1 to unmap)")
		return
	}

	validLabels := map[string]sheet.ColumnLabel{
		"first_name": sheet.ColumnFirstName,
		"last_name":  sheet.ColumnLastName,
		"cell":       sheet.ColumnCellPhone,
	}
	label, ok := validLabels[req.Label]
	if !ok {
		WriteValidationError(w, "invalid label: must be one of first_name, last_name, cell")
		return
	}

	if err := h.session.AssignColumn(label, *req.Index); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// Next handles POST /session/next - advances the flow
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Next(r.Context()); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// Back handles POST /session/back - moves one step backward
func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	handled, err := h.session.Back(r.Context())
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if !handled {
		WriteTransitionError(w, "cannot navigate back while a run is active")
		return
	}
	h.writeView(w)
}

// Pause handles POST /session/pause - stops after the in-flight send
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Pause(); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// Resume handles POST /session/resume - restarts over remaining pending rows
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Resume(); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// FreshStart handles POST /session/fresh-start - abandons leftovers
func (h *SessionHandler) FreshStart(w http.ResponseWriter, r *http.Request) {
	if err := h.session.FreshStart(r.Context()); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// Reset handles POST /session/reset - acknowledges a completed run
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(r.Context()); err != nil {
		HandleServiceError(w, err)
		return
	}
	h.writeView(w)
}

// StatusResponse is the flattened job status for GET /status
type StatusResponse struct {
	State   string                 `json:"state"`
	Contact string                 `json:"contact,omitempty"`
	Counts  models.RecipientCounts `json:"counts"`
}

// Status handles GET /status - returns the live job status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, statusResponse(h.broadcaster.Status()))
}

func statusResponse(status broadcast.Status) StatusResponse {
	resp := StatusResponse{
		State:  status.State.Name(),
		Counts: status.Counts,
	}
	if exec, ok := status.State.(broadcast.Executing); ok {
		resp.Contact = exec.Contact
	}
	return resp
}

// StatusStream handles GET /status/stream - pushes job status updates
// as server-sent events. The current status is sent immediately on
// connect, then every broadcaster emission until the client disconnects.
func (h *SessionHandler) StatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w)
		return
	}

	updates, unsubscribe := h.broadcaster.Subscribe(8)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(status broadcast.Status) {
		payload, err := json.Marshal(statusResponse(status))
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	writeEvent(h.broadcaster.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(status)
		}
	}
}

// RegisterRoutes attaches all session routes to the router
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/session", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/session/script", h.SetScript).Methods(http.MethodPut)
	r.HandleFunc("/session/attachment", h.SetAttachment).Methods(http.MethodPut)
	r.HandleFunc("/session/attachment", h.ClearAttachment).Methods(http.MethodDelete)
	r.HandleFunc("/session/source", h.AttachSource).Methods(http.MethodPost)
	r.HandleFunc("/session/columns", h.AssignColumn).Methods(http.MethodPost)
	r.HandleFunc("/session/next", h.Next).Methods(http.MethodPost)
	r.HandleFunc("/session/back", h.Back).Methods(http.MethodPost)
	r.HandleFunc("/session/pause", h.Pause).Methods(http.MethodPost)
	r.HandleFunc("/session/resume", h.Resume).Methods(http.MethodPost)
	r.HandleFunc("/session/fresh-start", h.FreshStart).Methods(http.MethodPost)
	r.HandleFunc("/session/reset", h.Reset).Methods(http.MethodPost)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/status/stream", h.StatusStream).Methods(http.MethodGet)
}
