// Package store is the durable system of record, backed by Postgres via bun.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

type Config struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ contractx.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Store{db: db, now: time.Now}, nil
}

// NewWithDB wraps an existing bun.DB. Used by tests.
func NewWithDB(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const statusRankExpr = "CASE status WHEN 'pending' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'completed' THEN 2 ELSE -1 END"

/* ------------------------------- engagements ------------------------------ */

func (s *Store) CreateEngagement(ctx context.Context, e *contractx.Engagement) (*contractx.Engagement, error) {
	row := &engagementRow{
		ID:            uuid.NewString(),
		Name:          e.Name,
		Description:   e.Description,
		Context:       e.Context,
		MondayBoardID: e.MondayBoardID,
		MondayItemID:  e.MondayItemID,
		CreatedAt:     s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert engagement: %w", err)
	}
	return row.toContract(), nil
}

func (s *Store) ListEngagements(ctx context.Context) ([]*contractx.Engagement, error) {
	var rows []engagementRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("e.*").
		ColumnExpr("count(s.id) AS session_count").
		ColumnExpr("count(s.id) FILTER (WHERE s.status = 'completed') AS completed_count").
		Join("LEFT JOIN sessions AS s ON s.engagement_id = e.id").
		GroupExpr("e.id").
		OrderExpr("e.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}

	out := make([]*contractx.Engagement, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toContract())
	}
	return out, nil
}

func (s *Store) GetEngagement(ctx context.Context, id string) (*contractx.Engagement, error) {
	var row engagementRow
	err := s.db.NewSelect().Model(&row).Where("e.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: engagement %s", contractx.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	engagement := row.toContract()

	var sessions []sessionRow
	err = s.db.NewSelect().
		Model(&sessions).
		Where("s.engagement_id = ?", id).
		OrderExpr("s.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get engagement sessions: %w", err)
	}

	completedIDs := make([]string, 0, len(sessions))
	for i := range sessions {
		engagement.Sessions = append(engagement.Sessions, sessions[i].toContract())
		if sessions[i].Status == string(contractx.SessionCompleted) {
			completedIDs = append(completedIDs, sessions[i].ID)
		}
	}
	engagement.SessionCount = len(sessions)
	engagement.CompletedCount = len(completedIDs)

	if len(completedIDs) > 0 {
		var results []discoveryResultRow
		err = s.db.NewSelect().
			Model(&results).
			Where("dr.session_id IN (?)", bun.In(completedIDs)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("get engagement results: %w", err)
		}
		for i := range results {
			result, err := results[i].toContract()
			if err != nil {
				return nil, err
			}
			engagement.Results = append(engagement.Results, result)
		}
	}

	return engagement, nil
}

// DeleteEngagement removes an engagement and everything it owns.
func (s *Store) DeleteEngagement(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*engagementRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete engagement: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: engagement %s", contractx.ErrNotFound, id)
		}

		if _, err := tx.NewDelete().Model((*discoveryResultRow)(nil)).
			Where("session_id IN (SELECT id FROM sessions WHERE engagement_id = ?)", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete engagement results: %w", err)
		}
		if _, err := tx.NewDelete().Model((*sessionRow)(nil)).Where("engagement_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete engagement sessions: %w", err)
		}
		if _, err := tx.NewDelete().Model((*documentRow)(nil)).Where("engagement_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete engagement documents: %w", err)
		}
		return nil
	})
}

func (s *Store) UpdateEngagementOverview(ctx context.Context, id, overview string) error {
	res, err := s.db.NewUpdate().
		Model((*engagementRow)(nil)).
		Set("engagement_overview = ?", overview).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update engagement overview: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: engagement %s", contractx.ErrNotFound, id)
	}
	return nil
}

func (s *Store) UpdateEngagementFromDocuments(ctx context.Context, id, description, contextText string) error {
	res, err := s.db.NewUpdate().
		Model((*engagementRow)(nil)).
		Set("description = ?", description).
		Set("context = ?", contextText).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update engagement from documents: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: engagement %s", contractx.ErrNotFound, id)
	}
	return nil
}

/* --------------------------------- sessions ------------------------------- */

func (s *Store) CreateSession(ctx context.Context, in *contractx.Session) (*contractx.Session, error) {
	row := &sessionRow{
		ID:               uuid.NewString(),
		EngagementID:     in.EngagementID,
		Token:            in.Token,
		StakeholderName:  in.StakeholderName,
		StakeholderEmail: in.StakeholderEmail,
		StakeholderRole:  in.StakeholderRole,
		SteeringPrompt:   in.SteeringPrompt,
		Status:           string(contractx.SessionPending),
		CreatedAt:        s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return row.toContract(), nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*contractx.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("s.token = ?", token).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session token", contractx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return s.withEngagementFields(ctx, &row)
}

func (s *Store) GetSessionByID(ctx context.Context, id string) (*contractx.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", contractx.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.withEngagementFields(ctx, &row)
}

func (s *Store) withEngagementFields(ctx context.Context, row *sessionRow) (*contractx.Session, error) {
	session := row.toContract()

	var engagement engagementRow
	err := s.db.NewSelect().Model(&engagement).Where("e.id = ?", row.EngagementID).Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get owning engagement: %w", err)
	}
	session.EngagementName = engagement.Name
	session.EngagementDescription = engagement.Description
	session.EngagementContext = engagement.Context

	return session, nil
}

// AdvanceSessionStatus moves a session's status forward. Transitions that do
// not advance the status are silently ignored so no code path can regress it.
func (s *Store) AdvanceSessionStatus(ctx context.Context, sessionID string, status contractx.SessionStatus) error {
	if status.Rank() < 0 {
		return fmt.Errorf("%w: status %q", contractx.ErrInvalidInput, status)
	}

	q := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", sessionID).
		Where(statusRankExpr+" < ?", status.Rank())
	if status == contractx.SessionCompleted {
		q = q.Set("completed_at = ?", s.now().UTC())
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance session status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		exists, err := s.db.NewSelect().Model((*sessionRow)(nil)).Where("id = ?", sessionID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check session exists: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: session %s", contractx.ErrNotFound, sessionID)
		}
		// Already at or past the requested status.
	}
	return nil
}

/* ---------------------------- conversation state -------------------------- */

func (s *Store) SaveConversationState(ctx context.Context, sessionID string, state *contractx.ConversationState) error {
	var payload []byte
	if state != nil {
		var err error
		payload, err = json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal conversation state: %w", err)
		}
	}

	res, err := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("conversation_state = ?", payload).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: session %s", contractx.ErrNotFound, sessionID)
	}
	return nil
}

func (s *Store) LoadConversationState(ctx context.Context, sessionID string) (*contractx.ConversationState, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Column("conversation_state").
		Where("s.id = ?", sessionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", contractx.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation state: %w", err)
	}
	if len(row.ConversationState) == 0 {
		return nil, contractx.ErrStateMissing
	}

	var state contractx.ConversationState
	if err := json.Unmarshal(row.ConversationState, &state); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &state, nil
}

/* ---------------------------- discovery results --------------------------- */

// SaveAnswersAndComplete durably records the final transcript and answers,
// flips the session to completed and clears its stored conversation state, all
// in one transaction. It runs before any summary generation is attempted.
func (s *Store) SaveAnswersAndComplete(ctx context.Context, sessionID string, transcript []contractx.Message, answers []contractx.QuizAnswer) error {
	rawConversation, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	answersStructured, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := &discoveryResultRow{
			SessionID:       sessionID,
			RawConversation: rawConversation,
			Answers:         answersStructured,
			AISummary:       "",
			CreatedAt:       s.now().UTC(),
		}
		if _, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (session_id) DO UPDATE").
			Set("raw_conversation = EXCLUDED.raw_conversation").
			Set("answers_structured = EXCLUDED.answers_structured").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert discovery result: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*sessionRow)(nil)).
			Set("status = ?", string(contractx.SessionCompleted)).
			Set("completed_at = ?", s.now().UTC()).
			Set("conversation_state = NULL").
			Where("id = ?", sessionID).
			Where(statusRankExpr+" < ?", contractx.SessionCompleted.Rank()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete session: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			exists, err := tx.NewSelect().Model((*sessionRow)(nil)).Where("id = ?", sessionID).Exists(ctx)
			if err != nil {
				return fmt.Errorf("check session exists: %w", err)
			}
			if !exists {
				return fmt.Errorf("%w: session %s", contractx.ErrNotFound, sessionID)
			}
		}
		return nil
	})
}

func (s *Store) UpdateDiscoverySummary(ctx context.Context, sessionID string, summary *contractx.DiscoverySummary) error {
	keyThemes, err := json.Marshal(summary.KeyThemes)
	if err != nil {
		return fmt.Errorf("marshal key themes: %w", err)
	}

	res, err := s.db.NewUpdate().
		Model((*discoveryResultRow)(nil)).
		Set("ai_summary = ?", summary.Summary).
		Set("key_themes = ?", keyThemes).
		Set("priority_level = ?", string(summary.PriorityLevel)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update discovery summary: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: discovery result for session %s", contractx.ErrNotFound, sessionID)
	}
	return nil
}

func (s *Store) GetDiscoveryResult(ctx context.Context, sessionID string) (*contractx.DiscoveryResult, error) {
	var row discoveryResultRow
	err := s.db.NewSelect().Model(&row).Where("dr.session_id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: discovery result for session %s", contractx.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery result: %w", err)
	}
	return row.toContract()
}

func (s *Store) SummariesForEngagement(ctx context.Context, engagementID string) ([]contractx.StakeholderSummary, error) {
	var rows []struct {
		StakeholderName string `bun:"stakeholder_name"`
		StakeholderRole string `bun:"stakeholder_role"`
		AISummary       string `bun:"ai_summary"`
	}
	err := s.db.NewSelect().
		TableExpr("sessions AS s").
		ColumnExpr("s.stakeholder_name, s.stakeholder_role, dr.ai_summary").
		Join("JOIN discovery_results AS dr ON dr.session_id = s.id").
		Where("s.engagement_id = ?", engagementID).
		Where("dr.ai_summary IS NOT NULL AND dr.ai_summary != ''").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list engagement summaries: %w", err)
	}

	out := make([]contractx.StakeholderSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.StakeholderSummary{
			StakeholderName: r.StakeholderName,
			StakeholderRole: r.StakeholderRole,
			AISummary:       r.AISummary,
		})
	}
	return out, nil
}

/* -------------------------------- documents ------------------------------- */

func (s *Store) CreateDocument(ctx context.Context, d *contractx.EngagementDocument) (*contractx.EngagementDocument, error) {
	row := &documentRow{
		ID:               uuid.NewString(),
		EngagementID:     d.EngagementID,
		Filename:         d.Filename,
		ContentType:      d.ContentType,
		SizeBytes:        d.SizeBytes,
		BlobKey:          d.BlobKey,
		ProcessingStatus: string(contractx.DocumentPending),
		CreatedAt:        s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return row.toContract(), nil
}

func (s *Store) ListDocuments(ctx context.Context, engagementID string) ([]*contractx.EngagementDocument, error) {
	var rows []documentRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("d.engagement_id = ?", engagementID).
		OrderExpr("d.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	out := make([]*contractx.EngagementDocument, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toContract())
	}
	return out, nil
}

// ClaimDocumentsForProcessing flips every document of the engagement to
// processing with a single conditional UPDATE, so two concurrent extraction
// triggers cannot both win.
func (s *Store) ClaimDocumentsForProcessing(ctx context.Context, engagementID string) ([]*contractx.EngagementDocument, error) {
	res, err := s.db.NewUpdate().
		Model((*documentRow)(nil)).
		Set("processing_status = ?", string(contractx.DocumentProcessing)).
		Set("error_message = NULL").
		Where("engagement_id = ?", engagementID).
		Where("NOT EXISTS (SELECT 1 FROM engagement_documents WHERE engagement_id = ? AND processing_status = ?)",
			engagementID, string(contractx.DocumentProcessing)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim documents: %w", err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		total, err := s.db.NewSelect().
			Model((*documentRow)(nil)).
			Where("engagement_id = ?", engagementID).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		if total == 0 {
			return nil, fmt.Errorf("%w: no documents for engagement %s", contractx.ErrNotFound, engagementID)
		}
		return nil, fmt.Errorf("%w: document extraction", contractx.ErrConflict)
	}

	var rows []documentRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("d.engagement_id = ?", engagementID).
		OrderExpr("d.created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("load claimed documents: %w", err)
	}

	claimed := make([]*contractx.EngagementDocument, 0, len(rows))
	for i := range rows {
		claimed = append(claimed, rows[i].toContract())
	}
	return claimed, nil
}

// FinishDocuments sets the terminal status for every document of the
// engagement, uniformly.
func (s *Store) FinishDocuments(ctx context.Context, engagementID string, status contractx.DocumentStatus, errorMessage string) error {
	q := s.db.NewUpdate().
		Model((*documentRow)(nil)).
		Set("processing_status = ?", string(status)).
		Where("engagement_id = ?", engagementID)
	if errorMessage != "" {
		q = q.Set("error_message = ?", errorMessage)
	} else {
		q = q.Set("error_message = NULL")
	}

	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("finish documents: %w", err)
	}
	return nil
}
