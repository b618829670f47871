package contract

import "time"

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Rank orders session statuses so transitions can be checked for regression.
func (s SessionStatus) Rank() int {
	switch s {
	case SessionPending:
		return 0
	case SessionInProgress:
		return 1
	case SessionCompleted:
		return 2
	default:
		return -1
	}
}

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

// Engagement is one consulting project owning sessions, results and documents.
type Engagement struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Context            string    `json:"context,omitempty"`
	EngagementOverview string    `json:"engagementOverview,omitempty"`
	MondayBoardID      string    `json:"mondayBoardId,omitempty"`
	MondayItemID       string    `json:"mondayItemId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`

	// List/read aggregates, not stored columns.
	SessionCount   int               `json:"sessionCount,omitempty"`
	CompletedCount int               `json:"completedCount,omitempty"`
	Sessions       []*Session        `json:"sessions,omitempty"`
	Results        []*DiscoveryResult `json:"results,omitempty"`
}

// Session is one stakeholder's interview instance, authenticated solely by its
// unguessable token.
type Session struct {
	ID               string        `json:"id"`
	EngagementID     string        `json:"engagementId"`
	Token            string        `json:"token"`
	StakeholderName  string        `json:"stakeholderName"`
	StakeholderEmail string        `json:"stakeholderEmail,omitempty"`
	StakeholderRole  string        `json:"stakeholderRole,omitempty"`
	SteeringPrompt   string        `json:"steeringPrompt,omitempty"`
	Status           SessionStatus `json:"status"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`

	// Denormalized from the owning engagement on token lookup.
	EngagementName        string `json:"engagementName,omitempty"`
	EngagementDescription string `json:"engagementDescription,omitempty"`
	EngagementContext     string `json:"engagementContext,omitempty"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ConversationState is the serializable working memory of one in-progress
// session. It round-trips losslessly through JSON and is persisted to both
// the cache and the durable store on every mutation.
type ConversationState struct {
	SessionID          string       `json:"sessionId"`
	EngagementContext  string       `json:"engagementContext"`
	StakeholderName    string       `json:"stakeholderName"`
	StakeholderRole    string       `json:"stakeholderRole,omitempty"`
	SteeringPrompt     string       `json:"steeringPrompt,omitempty"`
	Messages           []Message    `json:"messages"`
	AllAnswers         []QuizAnswer `json:"allAnswers"`
	CurrentBatchNumber int          `json:"currentBatchNumber"`
}

type QuestionType string

const (
	QuestionSingle QuestionType = "single"
	QuestionMulti  QuestionType = "multi"
)

type QuizOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type QuizQuestion struct {
	ID                  string       `json:"id"`
	Text                string       `json:"text"`
	Description         string       `json:"description,omitempty"`
	Type                QuestionType `json:"type"`
	Options             []QuizOption `json:"options"`
	AllowNoneOfTheAbove bool         `json:"allowNoneOfTheAbove"`
}

// QuizBatch is one round of generated questions. BatchNumber is owned by the
// engine; whatever the model reports is overwritten.
type QuizBatch struct {
	Questions    []QuizQuestion `json:"questions"`
	IsComplete   bool           `json:"isComplete"`
	ProgressHint string         `json:"progressHint,omitempty"`
	BatchNumber  int            `json:"batchNumber"`
}

// QuizAnswer is one stakeholder response. Question text and labels are
// denormalized so results stay readable after the generating batch is gone.
type QuizAnswer struct {
	QuestionID        string   `json:"questionId"`
	QuestionText      string   `json:"questionText"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	SelectedLabels    []string `json:"selectedLabels"`
	NoneOfTheAbove    bool     `json:"noneOfTheAbove,omitempty"`
	CustomText        string   `json:"customText,omitempty"`
}

type PriorityLevel string

const (
	PriorityLow      PriorityLevel = "low"
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityCritical PriorityLevel = "critical"
)

// DiscoverySummary is the structured output of a summarization call.
type DiscoverySummary struct {
	Summary       string        `json:"summary"`
	KeyThemes     []string      `json:"keyThemes"`
	PriorityLevel PriorityLevel `json:"priorityLevel"`
}

// DiscoveryResult is the durable output of a completed session. AISummary is
// empty at creation and filled asynchronously.
type DiscoveryResult struct {
	SessionID       string        `json:"sessionId"`
	RawConversation []Message     `json:"rawConversation"`
	Answers         []QuizAnswer  `json:"answers"`
	AISummary       string        `json:"aiSummary"`
	KeyThemes       []string      `json:"keyThemes,omitempty"`
	PriorityLevel   PriorityLevel `json:"priorityLevel,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// StakeholderSummary pairs a finished session's summary with its author, for
// cross-stakeholder synthesis.
type StakeholderSummary struct {
	StakeholderName string `json:"stakeholderName"`
	StakeholderRole string `json:"stakeholderRole,omitempty"`
	AISummary       string `json:"aiSummary"`
}

type SteeringSuggestion struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// EngagementDocument is an uploaded source file tracked through extraction.
type EngagementDocument struct {
	ID               string         `json:"id"`
	EngagementID     string         `json:"engagementId"`
	Filename         string         `json:"filename"`
	ContentType      string         `json:"contentType"`
	SizeBytes        int64          `json:"sizeBytes"`
	BlobKey          string         `json:"blobKey"`
	ProcessingStatus DocumentStatus `json:"processingStatus"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// DocumentFile carries one document's bytes into the gateway.
type DocumentFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentExtraction is the structured output of a document extraction call.
type DocumentExtraction struct {
	Description       string   `json:"description"`
	Context           string   `json:"context"`
	DocumentSummaries []string `json:"documentSummaries,omitempty"`
}
