package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/weddingcue-core/internal/audit"
)

// handleActionExecuted records that a player client played a cue.
// Idempotent: a repeat report answers 200 with already_executed set.
func (s *Server) handleActionExecuted(w http.ResponseWriter, r *http.Request) {
	store := s.engine.Store()

	action, err := store.GetAction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	t, err := store.GetTimer(r.Context(), action.TimerID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !s.authorizeEvent(w, r, t.EventID) {
		return
	}

	result, err := s.tracker.RecordExecuted(r.Context(), action.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if !result.AlreadyExecuted {
		s.auditLog(r, audit.ActionExecuted, entityAction, action.ID, t.EventID, map[string]any{
			"timer_id":             action.TimerID,
			"all_actions_executed": result.AllActionsExecuted,
		})
	}
	writeJSON(w, http.StatusOK, result)
}
