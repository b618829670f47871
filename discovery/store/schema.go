package store

import (
	"context"
	"fmt"
)

// Schema management proper lives outside this service; this bootstrap only
// makes a fresh development database usable.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS engagements (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		context TEXT,
		engagement_overview TEXT,
		monday_board_id TEXT,
		monday_item_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		engagement_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		stakeholder_name TEXT NOT NULL,
		stakeholder_email TEXT,
		stakeholder_role TEXT,
		steering_prompt TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		conversation_state JSONB,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS discovery_results (
		session_id TEXT PRIMARY KEY,
		raw_conversation JSONB NOT NULL,
		answers_structured JSONB NOT NULL,
		ai_summary TEXT NOT NULL DEFAULT '',
		key_themes JSONB,
		priority_level TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS engagement_documents (
		id TEXT PRIMARY KEY,
		engagement_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		blob_key TEXT NOT NULL,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_engagement ON sessions (engagement_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_engagement ON engagement_documents (engagement_id)`,
}

// EnsureSchema creates missing tables. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
