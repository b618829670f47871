package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

type engagementRow struct {
	bun.BaseModel `bun:"table:engagements,alias:e"`

	ID                 string    `bun:"id,pk"`
	Name               string    `bun:"name,notnull"`
	Description        string    `bun:"description,nullzero"`
	Context            string    `bun:"context,nullzero"`
	EngagementOverview string    `bun:"engagement_overview,nullzero"`
	MondayBoardID      string    `bun:"monday_board_id,nullzero"`
	MondayItemID       string    `bun:"monday_item_id,nullzero"`
	CreatedAt          time.Time `bun:"created_at,notnull"`

	SessionCount   int `bun:"session_count,scanonly"`
	CompletedCount int `bun:"completed_count,scanonly"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string     `bun:"id,pk"`
	EngagementID      string     `bun:"engagement_id,notnull"`
	Token             string     `bun:"token,notnull"`
	StakeholderName   string     `bun:"stakeholder_name,notnull"`
	StakeholderEmail  string     `bun:"stakeholder_email,nullzero"`
	StakeholderRole   string     `bun:"stakeholder_role,nullzero"`
	SteeringPrompt    string     `bun:"steering_prompt,nullzero"`
	Status            string     `bun:"status,notnull"`
	ConversationState []byte     `bun:"conversation_state,nullzero,type:jsonb"`
	CompletedAt       *time.Time `bun:"completed_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,notnull"`
}

type discoveryResultRow struct {
	bun.BaseModel `bun:"table:discovery_results,alias:dr"`

	SessionID       string    `bun:"session_id,pk"`
	RawConversation []byte    `bun:"raw_conversation,notnull,type:jsonb"`
	Answers         []byte    `bun:"answers_structured,notnull,type:jsonb"`
	AISummary       string    `bun:"ai_summary,notnull,default:''"`
	KeyThemes       []byte    `bun:"key_themes,nullzero,type:jsonb"`
	PriorityLevel   string    `bun:"priority_level,nullzero"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:engagement_documents,alias:d"`

	ID               string    `bun:"id,pk"`
	EngagementID     string    `bun:"engagement_id,notnull"`
	Filename         string    `bun:"filename,notnull"`
	ContentType      string    `bun:"content_type,notnull"`
	SizeBytes        int64     `bun:"size_bytes,notnull"`
	BlobKey          string    `bun:"blob_key,notnull"`
	ProcessingStatus string    `bun:"processing_status,notnull"`
	ErrorMessage     string    `bun:"error_message,nullzero"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
}

/* ------------------------------- conversions ------------------------------ */

func (r *engagementRow) toContract() *contractx.Engagement {
	return &contractx.Engagement{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Context:            r.Context,
		EngagementOverview: r.EngagementOverview,
		MondayBoardID:      r.MondayBoardID,
		MondayItemID:       r.MondayItemID,
		CreatedAt:          r.CreatedAt,
		SessionCount:       r.SessionCount,
		CompletedCount:     r.CompletedCount,
	}
}

func (r *sessionRow) toContract() *contractx.Session {
	return &contractx.Session{
		ID:               r.ID,
		EngagementID:     r.EngagementID,
		Token:            r.Token,
		StakeholderName:  r.StakeholderName,
		StakeholderEmail: r.StakeholderEmail,
		StakeholderRole:  r.StakeholderRole,
		SteeringPrompt:   r.SteeringPrompt,
		Status:           contractx.SessionStatus(r.Status),
		CompletedAt:      r.CompletedAt,
		CreatedAt:        r.CreatedAt,
	}
}

func (r *discoveryResultRow) toContract() (*contractx.DiscoveryResult, error) {
	out := &contractx.DiscoveryResult{
		SessionID:     r.SessionID,
		AISummary:     r.AISummary,
		PriorityLevel: contractx.PriorityLevel(r.PriorityLevel),
		CreatedAt:     r.CreatedAt,
	}

	if len(r.RawConversation) > 0 {
		if err := json.Unmarshal(r.RawConversation, &out.RawConversation); err != nil {
			return nil, fmt.Errorf("unmarshal raw conversation: %w", err)
		}
	}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &out.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if len(r.KeyThemes) > 0 {
		if err := json.Unmarshal(r.KeyThemes, &out.KeyThemes); err != nil {
			return nil, fmt.Errorf("unmarshal key themes: %w", err)
		}
	}
	return out, nil
}

func (r *documentRow) toContract() *contractx.EngagementDocument {
	return &contractx.EngagementDocument{
		ID:               r.ID,
		EngagementID:     r.EngagementID,
		Filename:         r.Filename,
		ContentType:      r.ContentType,
		SizeBytes:        r.SizeBytes,
		BlobKey:          r.BlobKey,
		ProcessingStatus: contractx.DocumentStatus(r.ProcessingStatus),
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt,
	}
}
