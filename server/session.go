package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

// The public surface. Everything here is keyed by the opaque session token
// from the shareable link; no other authentication applies.

type sessionView struct {
	ID              string                  `json:"id"`
	EngagementName  string                  `json:"engagementName"`
	Description     string                  `json:"description"`
	StakeholderName string                  `json:"stakeholderName"`
	StakeholderRole string                  `json:"stakeholderRole"`
	Status          contractx.SessionStatus `json:"status"`
}

func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	session, err := s.cfg.Store.GetSessionByToken(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionView{
		ID:              session.ID,
		EngagementName:  session.EngagementName,
		Description:     session.EngagementDescription,
		StakeholderName: session.StakeholderName,
		StakeholderRole: session.StakeholderRole,
		Status:          session.Status,
	})
}

func (s *server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	batch, err := s.cfg.Engine.Start(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": batch})
}

func (s *server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req struct {
		Answers []contractx.QuizAnswer `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	batch, err := s.cfg.Engine.SubmitAnswers(r.Context(), token, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": batch})
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	// Trailing answers are optional: clients that already posted their last
	// batch submit an empty body.
	var req struct {
		Answers []contractx.QuizAnswer `json:"answers"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := s.cfg.Engine.Finalize(r.Context(), token, req.Answers); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  contractx.SessionCompleted,
	})
}
