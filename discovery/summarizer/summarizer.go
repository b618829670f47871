// Package summarizer owns asynchronous summary generation: per-session
// discovery summaries, cross-stakeholder engagement overviews, and the
// client-driven retry path that makes delivery eventually-certain.
package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	statex "github.com/brightline-consulting/discovery/discovery/state"
)

const minSummariesForOverview = 2

type Summarizer struct {
	store   contractx.Store
	gateway contractx.Gateway
	spawner contractx.Spawner
}

func New(store contractx.Store, gateway contractx.Gateway, spawner contractx.Spawner) (*Summarizer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if spawner == nil {
		return nil, errors.New("spawner is required")
	}
	return &Summarizer{store: store, gateway: gateway, spawner: spawner}, nil
}

// SummarizeCompleted generates and stores the summary for a just-finalized
// session. Runs on a detached task; failures are logged and left for the
// retry endpoint to heal.
func (s *Summarizer) SummarizeCompleted(ctx context.Context, sessionID string) {
	if _, err := s.regenerate(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("background summary generation failed")
	}
}

// RetrySummary synchronously regenerates a summary from durably-stored
// answers. The live conversation state is gone by now, so a minimal one is
// rebuilt from the discovery result.
func (s *Summarizer) RetrySummary(ctx context.Context, sessionID string) (*contractx.DiscoverySummary, error) {
	return s.regenerate(ctx, sessionID)
}

func (s *Summarizer) regenerate(ctx context.Context, sessionID string) (*contractx.DiscoverySummary, error) {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result, err := s.store.GetDiscoveryResult(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	st := statex.FromResult(session, result)
	summary, err := s.gateway.Summarize(ctx, st)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateDiscoverySummary(ctx, sessionID, summary); err != nil {
		return nil, err
	}

	s.synthesizeIfReady(ctx, session.EngagementID)
	return summary, nil
}

// RefreshOverview re-synthesizes the engagement overview on demand. The
// heavy call runs detached; the trigger request returns immediately.
func (s *Summarizer) RefreshOverview(ctx context.Context, engagementID string) error {
	engagement, err := s.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return err
	}

	summaries, err := s.store.SummariesForEngagement(ctx, engagementID)
	if err != nil {
		return err
	}
	if len(summaries) < minSummariesForOverview {
		return fmt.Errorf("%w: have %d, need %d", contractx.ErrInsufficientData, len(summaries), minSummariesForOverview)
	}

	engagementContext := engagement.Context
	s.spawner.Spawn("refresh-overview", func(ctx context.Context) {
		s.synthesize(ctx, engagementID, engagementContext, summaries)
	})
	return nil
}

// synthesizeIfReady writes an overview once at least two sessions carry
// non-empty summaries. Called after each summary write.
func (s *Summarizer) synthesizeIfReady(ctx context.Context, engagementID string) {
	summaries, err := s.store.SummariesForEngagement(ctx, engagementID)
	if err != nil {
		log.Error().Err(err).Str("engagement_id", engagementID).Msg("failed to list summaries for overview")
		return
	}
	if len(summaries) < minSummariesForOverview {
		return
	}

	engagement, err := s.store.GetEngagement(ctx, engagementID)
	if err != nil {
		log.Error().Err(err).Str("engagement_id", engagementID).Msg("failed to load engagement for overview")
		return
	}

	s.synthesize(ctx, engagementID, engagement.Context, summaries)
}

func (s *Summarizer) synthesize(ctx context.Context, engagementID, engagementContext string, summaries []contractx.StakeholderSummary) {
	overview, err := s.gateway.SynthesizeOverview(ctx, engagementContext, summaries)
	if err != nil {
		log.Error().Err(err).Str("engagement_id", engagementID).Msg("overview synthesis failed")
		return
	}
	if err := s.store.UpdateEngagementOverview(ctx, engagementID, overview); err != nil {
		log.Error().Err(err).Str("engagement_id", engagementID).Msg("failed to store engagement overview")
	}
}
