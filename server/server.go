// Package server exposes the discovery service as a JSON HTTP API: a public
// token-authenticated session surface and a Bearer-authenticated admin
// surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	mondayx "github.com/brightline-consulting/discovery/pkg/monday"
)

// ConversationEngine is the slice of the engine the HTTP layer needs.
type ConversationEngine interface {
	Start(ctx context.Context, token string) (*contractx.QuizBatch, error)
	SubmitAnswers(ctx context.Context, token string, answers []contractx.QuizAnswer) (*contractx.QuizBatch, error)
	Finalize(ctx context.Context, token string, trailingAnswers []contractx.QuizAnswer) error
}

// SummaryService drives overview refresh and summary stall recovery.
type SummaryService interface {
	RetrySummary(ctx context.Context, sessionID string) (*contractx.DiscoverySummary, error)
	RefreshOverview(ctx context.Context, engagementID string) error
}

// DocumentService ingests uploads and triggers extraction.
type DocumentService interface {
	Upload(ctx context.Context, engagementID, filename, contentType string, data []byte) (*contractx.EngagementDocument, error)
	Extract(ctx context.Context, engagementID string) error
}

// BoardClient is the read-only project-board integration.
type BoardClient interface {
	SearchBoards(ctx context.Context, apiKey, term string) ([]mondayx.Board, error)
	BoardItems(ctx context.Context, apiKey, boardID string) ([]mondayx.ItemRef, error)
	ItemDetails(ctx context.Context, apiKey, itemID string) (*mondayx.Item, error)
}

type Config struct {
	AdminPassword string
	PublicBaseURL string
	// MondayAPIKey is the env fallback; an admin-saved key in the config
	// store takes precedence.
	MondayAPIKey string

	Store     contractx.Store
	Tokens    contractx.AdminTokens
	Settings  contractx.ConfigStore
	Gateway   contractx.Gateway
	Engine    ConversationEngine
	Summaries SummaryService
	Documents DocumentService
	Boards    BoardClient
}

type server struct {
	cfg Config
}

// New returns the HTTP handler for the full API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil || cfg.Tokens == nil || cfg.Engine == nil {
		return nil, errors.New("store, tokens and engine are required")
	}
	if strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil, errors.New("admin password is required")
	}

	s := &server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/session/{token}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/start", s.handleStartSession)
		r.Post("/answer", s.handleAnswer)
		r.Post("/submit", s.handleSubmit)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/engagements", s.handleListEngagements)
			r.Post("/engagements", s.handleCreateEngagement)
			r.Get("/engagements/{id}", s.handleGetEngagement)
			r.Delete("/engagements/{id}", s.handleDeleteEngagement)

			r.Post("/engagements/{id}/sessions", s.handleCreateSession)
			r.Post("/engagements/{id}/sessions/batch", s.handleCreateSessionBatch)
			r.Post("/engagements/{id}/suggest-steering", s.handleSuggestSteering)
			r.Post("/engagements/{id}/refresh-overview", s.handleRefreshOverview)
			r.Post("/sessions/{id}/retry-summary", s.handleRetrySummary)

			r.Post("/engagements/{id}/documents", s.handleUploadDocuments)
			r.Get("/engagements/{id}/documents", s.handleListDocuments)
			r.Post("/engagements/{id}/documents/extract", s.handleExtractDocuments)

			r.Get("/monday/search", s.handleMondaySearch)
			r.Get("/monday/boards/{boardId}/items", s.handleMondayBoardItems)
			r.Get("/monday/item/{id}", s.handleMondayItem)
			r.Get("/settings/monday", s.handleGetMondaySettings)
			r.Post("/settings/monday", s.handleSetMondaySettings)
		})
	})

	return r, nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

/* ------------------------------- auth ------------------------------------ */

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, r, contractx.ErrUnauthorized)
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		valid, err := s.cfg.Tokens.ValidateAdminToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !valid {
			writeError(w, r, contractx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/* ------------------------------ responses --------------------------------- */

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	} else {
		hlog.FromRequest(r).Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrInvalidInput),
		errors.Is(err, contractx.ErrAlreadyCompleted),
		errors.Is(err, contractx.ErrStateMissing),
		errors.Is(err, contractx.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, contractx.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, contractx.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, contractx.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return contractx.ErrInvalidInput
	}
	return nil
}
