package www

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kitchenedge/autoprint"
	"kitchenedge/engine"
	"kitchenedge/orders"
	"kitchenedge/orderstore"
	"kitchenedge/printing"
	"kitchenedge/session"
)

const viewTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeFailure maps domain errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownDisplay),
		errors.Is(err, session.ErrOrderNotFound),
		errors.Is(err, orderstore.ErrNotFound),
		errors.Is(err, autoprint.ErrPromptNotFound),
		errors.Is(err, ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrIllegalTransition),
		errors.Is(err, autoprint.ErrPromptResolved),
		errors.Is(err, engine.ErrDisplayRunning),
		errors.Is(err, session.ErrStopped):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.engine.Session(chi.URLParam(r, "display"))
	if err != nil {
		writeFailure(w, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "displays": len(h.engine.Displays())})
}

// --- Display binding ---

func (h *Handlers) apiGetBinding(w http.ResponseWriter, r *http.Request) {
	d, ok := h.bindings.display(r)
	writeJSON(w, map[string]any{"display": d, "bound": ok})
}

func (h *Handlers) apiSetBinding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Display string `json:"display"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Display = strings.TrimSpace(req.Display)
	if req.Display == "" {
		writeError(w, http.StatusBadRequest, "display is required")
		return
	}
	if err := h.bindings.bind(w, r, req.Display); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"display": req.Display, "bound": true})
}

func (h *Handlers) apiClearBinding(w http.ResponseWriter, r *http.Request) {
	if err := h.bindings.clear(w, r); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"bound": false})
}

// --- Displays ---

func (h *Handlers) apiListDisplays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"displays": h.engine.DisplayStatuses()})
}

func (h *Handlers) apiStartDisplay(w http.ResponseWriter, r *http.Request) {
	display := chi.URLParam(r, "display")
	if err := h.engine.StartDisplay(display); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "started", "display": display})
}

func (h *Handlers) apiStopDisplay(w http.ResponseWriter, r *http.Request) {
	display := chi.URLParam(r, "display")
	if err := h.engine.StopDisplay(display); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "stopped", "display": display})
}

func (h *Handlers) apiGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Settings().Get(r.Context(), chi.URLParam(r, "display"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, st)
}

// apiSaveSettings stores new settings and restarts the display if it is
// running, since sessions read settings only at start.
func (h *Handlers) apiSaveSettings(w http.ResponseWriter, r *http.Request) {
	display := chi.URLParam(r, "display")
	st, err := h.engine.Settings().Get(r.Context(), display)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := decodeBody(r, &st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := st.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.Settings().Save(r.Context(), display, st); err != nil {
		writeFailure(w, err)
		return
	}
	if _, err := h.engine.Session(display); err == nil {
		if err := h.engine.RestartDisplay(display); err != nil {
			writeFailure(w, err)
			return
		}
	}
	writeJSON(w, st)
}

// --- Session state ---

func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), viewTimeout)
	v, err := s.View(ctx)
	cancel()
	if err != nil {
		writeFailure(w, err)
		return
	}
	h.hub.ServeDisplay(w, r, s.ID(), &SSEEvent{Type: "snapshot", Data: v})
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), viewTimeout)
	defer cancel()
	v, err := s.View(ctx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, v)
}

// --- Operator actions ---

func (h *Handlers) apiTransition(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Status      string `json:"status"`
		PrepMinutes int    `json:"prep_minutes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	target, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	extra := orders.TransitionExtra{PrepMinutes: req.PrepMinutes}
	if err := extra.Validate(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := s.Transition(r.Context(), chi.URLParam(r, "orderID"), target, extra)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": string(next)})
}

func (h *Handlers) apiPrint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode          string `json:"mode"`
		MarkAsPrinted *bool  `json:"mark_as_printed"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	var mode printing.Mode
	if req.Mode != "" {
		m, err := printing.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	job, err := s.Print(r.Context(), chi.URLParam(r, "orderID"), mode, printing.PrintOptions{MarkAsPrinted: req.MarkAsPrinted})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, engine.NewPrintOutcomeEvent(s.ID(), job))
}

func (h *Handlers) apiAcceptPrompt(w http.ResponseWriter, r *http.Request) {
	h.resolvePrompt(w, r, (*session.Session).AcceptPrompt)
}

func (h *Handlers) apiDismissPrompt(w http.ResponseWriter, r *http.Request) {
	h.resolvePrompt(w, r, (*session.Session).DismissPrompt)
}

func (h *Handlers) resolvePrompt(w http.ResponseWriter, r *http.Request, fn func(*session.Session, context.Context, string) (autoprint.Prompt, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := fn(s, r.Context(), chi.URLParam(r, "promptID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handlers) apiAckPrintJob(w http.ResponseWriter, r *http.Request) {
	var ack Ack
	if err := decodeBody(r, &ack); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.bridge.Ack(chi.URLParam(r, "jobID"), ack); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
