package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/weddingcue-core/internal/audit"
	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// AdjustRequest is the body of POST /timers/{id}/adjust.
type AdjustRequest struct {
	// DurationMinutes is the new duration and is required. 0 makes the
	// timer punctual.
	DurationMinutes *int    `json:"duration_minutes"`
	Cascade         bool    `json:"cascade"`
	Reason          *string `json:"reason,omitempty"`
}

// JumpRequest is the optional body of POST /timers/{id}/jump.
type JumpRequest struct {
	// LeadSeconds is how soon the target's first cue should fall due.
	// Zero uses the configured default.
	LeadSeconds int `json:"lead_seconds"`
}

// completeResponse adds the chaining diagnosis to engine.CompleteResult.
type completeResponse struct {
	*engine.CompleteResult
	ChainError string `json:"chain_error,omitempty"`
}

// adjustResponse reports a cascade, including rows that could not be shifted.
type adjustResponse struct {
	*engine.CascadeReport
	Failed []string `json:"failed,omitempty"`
	Code   string   `json:"code,omitempty"`
}

// handleStartTimer starts any PENDING timer through the engine.
func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	started, err := s.engine.StartTimer(r.Context(), t.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionStart, entityTimer, t.ID, t.EventID, nil)
	writeJSON(w, http.StatusOK, started)
}

// handleStartCue starts a punctual or manual timer without touching the
// event's current timer.
func (s *Server) handleStartCue(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	started, err := s.engine.StartPunctualOrManual(r.Context(), t.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionStartCue, entityTimer, t.ID, t.EventID, nil)
	writeJSON(w, http.StatusOK, started)
}

// handleCompleteTimer completes a timer and advances the timeline.
// Completing an already completed timer succeeds with already_completed set.
func (s *Server) handleCompleteTimer(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	result, err := s.engine.CompleteTimer(r.Context(), t.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := completeResponse{CompleteResult: result}
	if result.ChainError != nil {
		resp.ChainError = result.ChainError.Error()
	}
	if !result.AlreadyCompleted {
		s.auditLog(r, audit.ActionComplete, entityTimer, t.ID, t.EventID, map[string]any{
			"next_timer_id":   result.NextTimerID,
			"next_started":    result.NextStarted,
			"event_completed": result.EventCompleted,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAdjustTimer edits a timer's duration, optionally cascading the
// change to later scheduled starts. A partial cascade still answers 200;
// the rows that failed are listed under "failed".
func (s *Server) handleAdjustTimer(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	var req AdjustRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.DurationMinutes == nil {
		writeBadRequest(w, "duration_minutes is required")
		return
	}

	report, err := s.engine.CascadeAdjust(r.Context(), engine.AdjustParams{
		TimerID:            t.ID,
		NewDurationMinutes: req.DurationMinutes,
		Cascade:            req.Cascade,
		Reason:             req.Reason,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := adjustResponse{CascadeReport: report}
	if perr := report.Err(); perr != nil {
		resp.Failed = report.FailedIDs()
		resp.Code = ErrCodePartialCascade
		s.logger.Warn("cascade partially applied", "timer_id", t.ID, "error", perr)
	}
	s.auditLog(r, audit.ActionAdjust, entityTimer, t.ID, t.EventID, map[string]any{
		"duration_minutes": req.DurationMinutes,
		"delta_minutes":    report.DeltaMinutes,
		"cascade":          req.Cascade,
		"shifted":          len(report.Shifted),
		"failed":           len(resp.Failed),
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleJumpToTimer fast-forwards a rehearsal to the given timer.
func (s *Server) handleJumpToTimer(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	var req JumpRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.LeadSeconds < 0 {
		writeBadRequest(w, "lead_seconds must not be negative")
		return
	}

	result, err := s.rehearsal.JumpToTimer(r.Context(), t.ID, time.Duration(req.LeadSeconds)*time.Second)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionJump, entityTimer, t.ID, t.EventID, map[string]any{
		"started_at":       result.StartedAt,
		"completed_before": result.CompletedBefore,
	})
	writeJSON(w, http.StatusOK, result)
}

// handleDueActions lists a timer's unexecuted cues, earliest first.
func (s *Server) handleDueActions(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTimer(w, r)
	if !ok {
		return
	}

	due, err := s.tracker.DueActions(r.Context(), t.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timer_id": t.ID,
		"actions":  due,
		"count":    len(due),
	})
}

// loadTimer resolves {id} to a timer the caller may act on.
// Returns false after writing the response.
func (s *Server) loadTimer(w http.ResponseWriter, r *http.Request) (*timeline.Timer, bool) {
	t, err := s.engine.Store().GetTimer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	if !s.authorizeEvent(w, r, t.EventID) {
		return nil, false
	}
	return t, true
}
