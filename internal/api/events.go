package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/weddingcue-core/internal/audit"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// timerView is a timer with its description resolved for the caller's language.
type timerView struct {
	timeline.Timer
	Description string `json:"description,omitempty"`
}

// timelineResponse is the body of GET /events/{id}/timeline.
type timelineResponse struct {
	Event    *timeline.Event `json:"event"`
	Timers   []timerView     `json:"timers"`
	Language string          `json:"language"`
}

// currentResponse is the body of GET /events/{id}/current.
// Timer is null before the wedding starts and after it ends.
type currentResponse struct {
	EventID string     `json:"event_id"`
	Timer   *timerView `json:"timer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleListEvents returns every event the caller's token covers.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.Store().ListEvents(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	claims := claimsFromContext(r.Context())
	visible := make([]timeline.Event, 0, len(events))
	for _, evt := range events {
		if claims == nil || claims.CanAccessEvent(evt.ID) {
			visible = append(visible, evt)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": visible,
		"count":  len(visible),
	})
}

// handleGetTimeline returns an event with every timer and action.
//
// Query parameters:
//   - lang: preferred description language (en, fr, br); overrides Accept-Language
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}

	view, err := s.engine.Timeline(r.Context(), eventID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	lang := requestLanguage(r)
	timers := make([]timerView, 0, len(view.Timers))
	for i := range view.Timers {
		timers = append(timers, timerView{
			Timer:       view.Timers[i],
			Description: localizedDescription(&view.Timers[i], lang),
		})
	}
	writeJSON(w, http.StatusOK, timelineResponse{Event: view.Event, Timers: timers, Language: lang})
}

// handleGetCurrent returns the event's current timer, or null.
func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}

	current, err := s.engine.CurrentTimer(r.Context(), eventID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := currentResponse{EventID: eventID}
	if current != nil {
		resp.Timer = &timerView{Timer: *current, Description: localizedDescription(current, requestLanguage(r))}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStartWedding starts the first timer of the event.
func (s *Server) handleStartWedding(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}

	started, err := s.engine.StartWedding(r.Context(), eventID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionStartShow, entityEvent, eventID, eventID, map[string]any{
		"timer_id": started.ID,
	})
	writeJSON(w, http.StatusOK, started)
}

// handleSweepEvent runs the clock sweep for one event on demand.
func (s *Server) handleSweepEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}
	if _, err := s.engine.Store().GetEvent(r.Context(), eventID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	timerID, locked, err := s.sweeper.SweepEvent(r.Context(), eventID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if timerID != "" {
		s.auditLog(r, audit.ActionSweep, entityEvent, eventID, eventID, map[string]any{
			"timer_id": timerID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": eventID,
		"started":  timerID != "",
		"timer_id": timerID,
		"locked":   locked,
	})
}

// handleResetEvent returns every timer of a rehearsal to PENDING.
func (s *Server) handleResetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}

	if err := s.rehearsal.Reset(r.Context(), eventID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionReset, entityEvent, eventID, eventID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "reset": true})
}

// handleRebaseEvent moves a demo event's schedule onto today.
func (s *Server) handleRebaseEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if !s.authorizeEvent(w, r, eventID) {
		return
	}

	moved, err := s.rehearsal.RebaseToToday(r.Context(), eventID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionRebase, entityEvent, eventID, eventID, map[string]any{
		"timers_moved": moved,
	})
	writeJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "timers_moved": moved})
}

// handleCronCheckTimers sweeps every event active today. Called by an
// external scheduler when the in-process sweep loop is disabled.
func (s *Server) handleCronCheckTimers(w http.ResponseWriter, r *http.Request) {
	report, err := s.sweeper.SweepAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if ferr := report.Err(); ferr != nil {
		s.logger.Warn("cron sweep had failures", "failed", len(report.Failures), "error", ferr)
	}
	writeJSON(w, http.StatusOK, report)
}

// authorizeEvent rejects tokens limited to a different event.
// Returns false after writing the response.
func (s *Server) authorizeEvent(w http.ResponseWriter, r *http.Request, eventID string) bool {
	claims := claimsFromContext(r.Context())
	if claims != nil && !claims.CanAccessEvent(eventID) {
		writeForbidden(w, "token is not valid for this event")
		return false
	}
	return true
}

// decodeOptionalJSON decodes the request body into v. An empty body leaves
// v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
