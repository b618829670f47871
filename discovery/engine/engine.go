// Package engine drives a stakeholder session from creation through
// completion, coordinating the durable store, the fast cache and the LLM
// gateway.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	statex "github.com/brightline-consulting/discovery/discovery/state"
)

// Finalizer receives completed sessions for background summary generation.
type Finalizer interface {
	SummarizeCompleted(ctx context.Context, sessionID string)
}

type Engine struct {
	store     contractx.Store
	cache     contractx.StateCache
	gateway   contractx.Gateway
	spawner   contractx.Spawner
	finalizer Finalizer
}

func New(
	store contractx.Store,
	cache contractx.StateCache,
	gateway contractx.Gateway,
	spawner contractx.Spawner,
	finalizer Finalizer,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cache == nil {
		return nil, errors.New("state cache is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if spawner == nil {
		return nil, errors.New("spawner is required")
	}
	if finalizer == nil {
		return nil, errors.New("finalizer is required")
	}

	return &Engine{
		store:     store,
		cache:     cache,
		gateway:   gateway,
		spawner:   spawner,
		finalizer: finalizer,
	}, nil
}

// Start resumes an in-flight session or begins a fresh one, returning the
// batch the stakeholder should answer next.
func (e *Engine) Start(ctx context.Context, token string) (*contractx.QuizBatch, error) {
	session, err := e.loadOpenSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if st := e.loadState(ctx, session.ID); st != nil {
		batch, err := e.gateway.NextBatch(ctx, st)
		if err != nil {
			return nil, err
		}

		if len(batch.Questions) == 0 && !batch.IsComplete {
			// The model could not make progress from this state; it is stale.
			// Discard both copies and start over instead of surfacing an
			// empty batch to the stakeholder.
			log.Warn().Str("session_id", session.ID).Msg("stale conversation state, restarting session")
			e.discardState(ctx, session.ID)
		} else {
			batch.BatchNumber = st.CurrentBatchNumber
			appendAssistantBatch(st, batch)
			if err := e.persistState(ctx, st); err != nil {
				return nil, err
			}
			return batch, nil
		}
	}

	st := statex.New(session)
	batch, err := e.gateway.NextBatch(ctx, st)
	if err != nil {
		return nil, err
	}
	batch.BatchNumber = st.CurrentBatchNumber
	appendAssistantBatch(st, batch)

	if err := e.store.AdvanceSessionStatus(ctx, session.ID, contractx.SessionInProgress); err != nil {
		return nil, err
	}
	if err := e.persistState(ctx, st); err != nil {
		return nil, err
	}
	return batch, nil
}

// SubmitAnswers records one batch of answers and returns the next batch.
func (e *Engine) SubmitAnswers(ctx context.Context, token string, answers []contractx.QuizAnswer) (*contractx.QuizBatch, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required", contractx.ErrInvalidInput)
	}

	session, err := e.loadOpenSession(ctx, token)
	if err != nil {
		return nil, err
	}

	st := e.loadState(ctx, session.ID)
	if st == nil {
		return nil, fmt.Errorf("%w: session must be restarted", contractx.ErrStateMissing)
	}

	statex.AppendAnswers(st, answers)

	batch, err := e.gateway.NextBatch(ctx, st)
	if err != nil {
		return nil, err
	}
	batch.BatchNumber = st.CurrentBatchNumber
	appendAssistantBatch(st, batch)

	if err := e.persistState(ctx, st); err != nil {
		return nil, err
	}
	return batch, nil
}

// Finalize durably completes the session, then dispatches summary generation
// as a detached task. Completion must never be blocked on, or lost to, the
// model call.
func (e *Engine) Finalize(ctx context.Context, token string, trailingAnswers []contractx.QuizAnswer) error {
	session, err := e.loadOpenSession(ctx, token)
	if err != nil {
		return err
	}

	st := e.loadState(ctx, session.ID)
	if st == nil {
		return fmt.Errorf("%w: session must be restarted", contractx.ErrStateMissing)
	}

	if len(trailingAnswers) > 0 {
		statex.AppendAnswers(st, trailingAnswers)
	}

	if err := e.store.SaveAnswersAndComplete(ctx, session.ID, st.Messages, st.AllAnswers); err != nil {
		return err
	}
	if err := e.cache.DeleteState(ctx, session.ID); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to delete cached state after finalize")
	}

	sessionID := session.ID
	e.spawner.Spawn("summarize-session", func(ctx context.Context) {
		e.finalizer.SummarizeCompleted(ctx, sessionID)
	})
	return nil
}

func (e *Engine) loadOpenSession(ctx context.Context, token string) (*contractx.Session, error) {
	session, err := e.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status == contractx.SessionCompleted {
		return nil, contractx.ErrAlreadyCompleted
	}
	return session, nil
}

// loadState checks the cache first, then falls back to the store. The cache
// is a latency optimization only; the store copy is authoritative, so cache
// failures degrade to a store read rather than an error.
func (e *Engine) loadState(ctx context.Context, sessionID string) *contractx.ConversationState {
	st, err := e.cache.LoadState(ctx, sessionID)
	if err == nil && st != nil {
		return st
	}
	if err != nil && !errors.Is(err, statex.ErrCacheMiss) {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("cache read failed, falling back to store")
	}

	st, err = e.store.LoadConversationState(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, contractx.ErrStateMissing) && !errors.Is(err, contractx.ErrNotFound) {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("store state read failed")
		}
		return nil
	}
	return st
}

// persistState writes the state to both stores. The store write is the one
// that matters; a cache failure only costs the next read some latency.
func (e *Engine) persistState(ctx context.Context, st *contractx.ConversationState) error {
	if err := e.store.SaveConversationState(ctx, st.SessionID, st); err != nil {
		return err
	}
	if err := e.cache.SaveState(ctx, st); err != nil {
		log.Warn().Err(err).Str("session_id", st.SessionID).Msg("cache write failed")
	}
	return nil
}

func (e *Engine) discardState(ctx context.Context, sessionID string) {
	if err := e.cache.DeleteState(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to delete stale cached state")
	}
	if err := e.store.SaveConversationState(ctx, sessionID, nil); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear stale stored state")
	}
}

// appendAssistantBatch records the generated batch in the transcript. The
// transcript is an audit trail; generation itself only consumes the answer
// list.
func appendAssistantBatch(st *contractx.ConversationState, batch *contractx.QuizBatch) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return
	}
	st.Messages = append(st.Messages, contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: string(payload),
	})
}
