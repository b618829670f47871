package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	mondayx "github.com/brightline-consulting/discovery/pkg/monday"
)

const mondayAPIKeyConfig = "monday_api_key"

/* ------------------------------- login ------------------------------------ */

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.AdminPassword)) != 1 {
		writeError(w, r, fmt.Errorf("%w: invalid password", contractx.ErrUnauthorized))
		return
	}

	token := uuid.NewString() + uuid.NewString()
	if err := s.cfg.Tokens.SaveAdminToken(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

/* ---------------------------- engagements --------------------------------- */

func (s *server) handleListEngagements(w http.ResponseWriter, r *http.Request) {
	engagements, err := s.cfg.Store.ListEngagements(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engagements": engagements})
}

func (s *server) handleCreateEngagement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		Context       string `json:"context"`
		MondayBoardID string `json:"mondayBoardId"`
		MondayItemID  string `json:"mondayItemId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, fmt.Errorf("%w: name is required", contractx.ErrInvalidInput))
		return
	}

	engagement, err := s.cfg.Store.CreateEngagement(r.Context(), &contractx.Engagement{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Context:       req.Context,
		MondayBoardID: req.MondayBoardID,
		MondayItemID:  req.MondayItemID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, engagement)
}

func (s *server) handleGetEngagement(w http.ResponseWriter, r *http.Request) {
	engagement, err := s.cfg.Store.GetEngagement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engagement)
}

func (s *server) handleDeleteEngagement(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.DeleteEngagement(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

/* ------------------------------ sessions ---------------------------------- */

type createSessionRequest struct {
	StakeholderName  string `json:"stakeholderName"`
	StakeholderEmail string `json:"stakeholderEmail"`
	StakeholderRole  string `json:"stakeholderRole"`
	SteeringPrompt   string `json:"steeringPrompt"`
}

type createdSession struct {
	*contractx.Session
	ShareableLink string `json:"shareableLink"`
}

func (s *server) createOneSession(r *http.Request, engagementID string, req createSessionRequest) (*createdSession, error) {
	if strings.TrimSpace(req.StakeholderName) == "" {
		return nil, fmt.Errorf("%w: stakeholderName is required", contractx.ErrInvalidInput)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session, err := s.cfg.Store.CreateSession(r.Context(), &contractx.Session{
		EngagementID:     engagementID,
		Token:            token,
		StakeholderName:  strings.TrimSpace(req.StakeholderName),
		StakeholderEmail: req.StakeholderEmail,
		StakeholderRole:  req.StakeholderRole,
		SteeringPrompt:   req.SteeringPrompt,
		Status:           contractx.SessionPending,
	})
	if err != nil {
		return nil, err
	}
	return &createdSession{Session: session, ShareableLink: s.shareableLink(session.Token)}, nil
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	engagementID := chi.URLParam(r, "id")
	if _, err := s.cfg.Store.GetEngagement(r.Context(), engagementID); err != nil {
		writeError(w, r, err)
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.createOneSession(r, engagementID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleCreateSessionBatch(w http.ResponseWriter, r *http.Request) {
	engagementID := chi.URLParam(r, "id")
	if _, err := s.cfg.Store.GetEngagement(r.Context(), engagementID); err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Stakeholders []createSessionRequest `json:"stakeholders"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Stakeholders) == 0 {
		writeError(w, r, fmt.Errorf("%w: stakeholders are required", contractx.ErrInvalidInput))
		return
	}

	sessions := make([]*createdSession, 0, len(req.Stakeholders))
	for _, stakeholder := range req.Stakeholders {
		created, err := s.createOneSession(r, engagementID, stakeholder)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sessions = append(sessions, created)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sessions": sessions})
}

// newSessionToken returns 32 random bytes hex-encoded, the sole credential on
// the public surface.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *server) shareableLink(token string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	return base + "/session.html?token=" + url.QueryEscape(token)
}

/* ----------------------------- summaries ---------------------------------- */

// handleSuggestSteering returns suggestions on a best-effort basis: gateway
// failures surface as an empty list, never as an error, so the admin form is
// never blocked on the model.
func (s *server) handleSuggestSteering(w http.ResponseWriter, r *http.Request) {
	engagement, err := s.cfg.Store.GetEngagement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		StakeholderName string `json:"stakeholderName"`
		StakeholderRole string `json:"stakeholderRole"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	suggestions, err := s.cfg.Gateway.SuggestSteering(r.Context(), engagement.Context, req.StakeholderName, req.StakeholderRole)
	if err != nil || suggestions == nil {
		suggestions = []contractx.SteeringSuggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *server) handleRefreshOverview(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Summaries.RefreshOverview(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"refreshing": true})
}

func (s *server) handleRetrySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cfg.Summaries.RetrySummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

/* ----------------------------- documents ---------------------------------- */

func (s *server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	engagementID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid multipart body", contractx.ErrInvalidInput))
		return
	}
	form := r.MultipartForm
	defer form.RemoveAll()

	files := form.File["files"]
	if len(files) == 0 {
		writeError(w, r, fmt.Errorf("%w: no files provided", contractx.ErrInvalidInput))
		return
	}

	docs := make([]*contractx.EngagementDocument, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: unreadable file %q", contractx.ErrInvalidInput, header.Filename))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: unreadable file %q", contractx.ErrInvalidInput, header.Filename))
			return
		}

		doc, err := s.cfg.Documents.Upload(r.Context(), engagementID, header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		docs = append(docs, doc)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"documents": docs})
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.cfg.Store.ListDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *server) handleExtractDocuments(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Documents.Extract(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"processing": true})
}

/* ------------------------------ monday ------------------------------------ */

// mondayKey resolves the API key: admin-saved value first, env fallback second.
func (s *server) mondayKey(r *http.Request) (string, error) {
	if s.cfg.Settings != nil {
		key, err := s.cfg.Settings.GetConfigValue(r.Context(), mondayAPIKeyConfig)
		if err == nil && key != "" {
			return key, nil
		}
	}
	if s.cfg.MondayAPIKey != "" {
		return s.cfg.MondayAPIKey, nil
	}
	return "", fmt.Errorf("%w: monday.com API key is not configured", contractx.ErrInvalidInput)
}

func (s *server) handleMondaySearch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Boards == nil {
		writeError(w, r, errors.New("monday integration is not configured"))
		return
	}
	term := r.URL.Query().Get("term")
	if strings.TrimSpace(term) == "" {
		writeError(w, r, fmt.Errorf("%w: query parameter term is required", contractx.ErrInvalidInput))
		return
	}

	key, err := s.mondayKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	boards, err := s.cfg.Boards.SearchBoards(r.Context(), key, term)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

func (s *server) handleMondayBoardItems(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Boards == nil {
		writeError(w, r, errors.New("monday integration is not configured"))
		return
	}
	key, err := s.mondayKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.cfg.Boards.BoardItems(r.Context(), key, chi.URLParam(r, "boardId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *server) handleMondayItem(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Boards == nil {
		writeError(w, r, errors.New("monday integration is not configured"))
		return
	}
	key, err := s.mondayKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.cfg.Boards.ItemDetails(r.Context(), key, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		writeError(w, r, fmt.Errorf("%w: item not found", contractx.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item":    item,
		"context": mondayx.ExtractContext(item),
	})
}

func (s *server) handleGetMondaySettings(w http.ResponseWriter, r *http.Request) {
	configured := s.cfg.MondayAPIKey != ""
	if s.cfg.Settings != nil {
		if key, err := s.cfg.Settings.GetConfigValue(r.Context(), mondayAPIKeyConfig); err == nil && key != "" {
			configured = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"configured": configured})
}

func (s *server) handleSetMondaySettings(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Settings == nil {
		writeError(w, r, errors.New("settings store is not configured"))
		return
	}

	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeError(w, r, fmt.Errorf("%w: apiKey is required", contractx.ErrInvalidInput))
		return
	}

	if err := s.cfg.Settings.SetConfigValue(r.Context(), mondayAPIKeyConfig, strings.TrimSpace(req.APIKey)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
