package contract

import "context"

// Gateway translates engine-level requests into structured-output model calls.
// Every method either returns a validated object or fails; no operation returns
// a half-parsed payload.
type Gateway interface {
	NextBatch(ctx context.Context, state *ConversationState) (*QuizBatch, error)
	Summarize(ctx context.Context, state *ConversationState) (*DiscoverySummary, error)
	SuggestSteering(ctx context.Context, engagementContext, stakeholderName, stakeholderRole string) ([]SteeringSuggestion, error)
	SynthesizeOverview(ctx context.Context, engagementContext string, summaries []StakeholderSummary) (string, error)
	ExtractFromDocuments(ctx context.Context, files []DocumentFile) (*DocumentExtraction, error)
}

// StateCache is the low-latency mirror of in-flight conversation state. The
// durable store is always the fallback of record; a cache miss is never fatal.
type StateCache interface {
	LoadState(ctx context.Context, sessionID string) (*ConversationState, error)
	SaveState(ctx context.Context, state *ConversationState) error
	DeleteState(ctx context.Context, sessionID string) error
}

// AdminTokens stores opaque admin auth tokens with a TTL.
type AdminTokens interface {
	SaveAdminToken(ctx context.Context, token string) error
	ValidateAdminToken(ctx context.Context, token string) (bool, error)
}

// ConfigStore holds small admin-managed settings (e.g. the monday.com key).
type ConfigStore interface {
	GetConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error
}

// Store is the durable system of record.
type Store interface {
	CreateEngagement(ctx context.Context, e *Engagement) (*Engagement, error)
	ListEngagements(ctx context.Context) ([]*Engagement, error)
	GetEngagement(ctx context.Context, id string) (*Engagement, error)
	DeleteEngagement(ctx context.Context, id string) error
	UpdateEngagementOverview(ctx context.Context, id, overview string) error
	UpdateEngagementFromDocuments(ctx context.Context, id, description, contextText string) error

	CreateSession(ctx context.Context, s *Session) (*Session, error)
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	AdvanceSessionStatus(ctx context.Context, sessionID string, status SessionStatus) error

	SaveConversationState(ctx context.Context, sessionID string, state *ConversationState) error
	LoadConversationState(ctx context.Context, sessionID string) (*ConversationState, error)

	SaveAnswersAndComplete(ctx context.Context, sessionID string, transcript []Message, answers []QuizAnswer) error
	UpdateDiscoverySummary(ctx context.Context, sessionID string, summary *DiscoverySummary) error
	GetDiscoveryResult(ctx context.Context, sessionID string) (*DiscoveryResult, error)
	SummariesForEngagement(ctx context.Context, engagementID string) ([]StakeholderSummary, error)

	CreateDocument(ctx context.Context, d *EngagementDocument) (*EngagementDocument, error)
	ListDocuments(ctx context.Context, engagementID string) ([]*EngagementDocument, error)
	ClaimDocumentsForProcessing(ctx context.Context, engagementID string) ([]*EngagementDocument, error)
	FinishDocuments(ctx context.Context, engagementID string, status DocumentStatus, errorMessage string) error
}

// BlobStore holds raw uploaded document bytes, keyed by an opaque string.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Spawner dispatches fire-and-forget work. Injected so tests can run spawned
// tasks synchronously.
type Spawner interface {
	Spawn(name string, fn func(ctx context.Context))
}
