// Package state owns the conversation working memory: its construction, answer
// ingestion rules and the fast cache that mirrors it.
package state

import (
	"fmt"
	"strings"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

// New seeds working memory for a session that has not produced a batch yet.
func New(session *contractx.Session) *contractx.ConversationState {
	return &contractx.ConversationState{
		SessionID:          session.ID,
		EngagementContext:  session.EngagementContext,
		StakeholderName:    session.StakeholderName,
		StakeholderRole:    session.StakeholderRole,
		SteeringPrompt:     session.SteeringPrompt,
		Messages:           []contractx.Message{},
		AllAnswers:         []contractx.QuizAnswer{},
		CurrentBatchNumber: 1,
	}
}

// Normalize applies the server-side precedence rule to one answer: when both
// "none of the above" and real selections arrive on the wire, none-of-the-above
// wins and the selections are cleared.
func Normalize(a contractx.QuizAnswer) contractx.QuizAnswer {
	if a.NoneOfTheAbove {
		a.SelectedOptionIDs = nil
		a.SelectedLabels = nil
	}
	return a
}

// AppendAnswers normalizes the answers, records them in the transcript as one
// user turn, appends them to the answer list and advances the batch counter.
func AppendAnswers(state *contractx.ConversationState, answers []contractx.QuizAnswer) {
	normalized := make([]contractx.QuizAnswer, 0, len(answers))
	for _, a := range answers {
		normalized = append(normalized, Normalize(a))
	}

	state.Messages = append(state.Messages, contractx.Message{
		Role:    contractx.RoleUser,
		Content: FormatAnswers(normalized),
	})
	state.AllAnswers = append(state.AllAnswers, normalized...)
	state.CurrentBatchNumber++
}

// FormatAnswers renders answers as the compact text the model sees in place of
// a structured replay.
func FormatAnswers(answers []contractx.QuizAnswer) string {
	lines := make([]string, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, formatAnswer(a))
	}
	return strings.Join(lines, "\n")
}

func formatAnswer(a contractx.QuizAnswer) string {
	if a.CustomText != "" {
		if len(a.SelectedLabels) > 0 {
			return fmt.Sprintf("%q: Selected %s; also wrote: %q", a.QuestionText, quoteJoin(a.SelectedLabels), a.CustomText)
		}
		return fmt.Sprintf("%q: Wrote custom answer: %q", a.QuestionText, a.CustomText)
	}
	if a.NoneOfTheAbove {
		return fmt.Sprintf("%q: Selected \"None of the above\"", a.QuestionText)
	}
	return fmt.Sprintf("%q: Selected %s", a.QuestionText, quoteJoin(a.SelectedLabels))
}

func quoteJoin(labels []string) string {
	quoted := make([]string, 0, len(labels))
	for _, l := range labels {
		quoted = append(quoted, fmt.Sprintf("%q", l))
	}
	return strings.Join(quoted, " and ")
}

// FromResult rebuilds the minimal working memory needed to regenerate a
// summary after the live state was deleted at finalize time.
func FromResult(session *contractx.Session, result *contractx.DiscoveryResult) *contractx.ConversationState {
	answeredBatches := 0
	for _, m := range result.RawConversation {
		if m.Role == contractx.RoleUser {
			answeredBatches++
		}
	}

	return &contractx.ConversationState{
		SessionID:          session.ID,
		EngagementContext:  session.EngagementContext,
		StakeholderName:    session.StakeholderName,
		StakeholderRole:    session.StakeholderRole,
		SteeringPrompt:     session.SteeringPrompt,
		Messages:           result.RawConversation,
		AllAnswers:         result.Answers,
		CurrentBatchNumber: answeredBatches + 1,
	}
}
