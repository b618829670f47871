package summarizer

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
)

type fakeStore struct {
	contractx.Store

	session    *contractx.Session
	result     *contractx.DiscoveryResult
	engagement *contractx.Engagement
	summaries  []contractx.StakeholderSummary

	savedSummary  *contractx.DiscoverySummary
	savedOverview string
	overviewErr   error
}

func (s *fakeStore) GetSessionByID(ctx context.Context, id string) (*contractx.Session, error) {
	if s.session == nil || s.session.ID != id {
		return nil, contractx.ErrNotFound
	}
	return s.session, nil
}

func (s *fakeStore) GetDiscoveryResult(ctx context.Context, sessionID string) (*contractx.DiscoveryResult, error) {
	if s.result == nil {
		return nil, contractx.ErrNotFound
	}
	return s.result, nil
}

func (s *fakeStore) UpdateDiscoverySummary(ctx context.Context, sessionID string, summary *contractx.DiscoverySummary) error {
	s.savedSummary = summary
	s.summaries = append(s.summaries, contractx.StakeholderSummary{
		StakeholderName: s.session.StakeholderName,
		AISummary:       summary.Summary,
	})
	return nil
}

func (s *fakeStore) SummariesForEngagement(ctx context.Context, engagementID string) ([]contractx.StakeholderSummary, error) {
	return s.summaries, nil
}

func (s *fakeStore) GetEngagement(ctx context.Context, id string) (*contractx.Engagement, error) {
	if s.engagement == nil || s.engagement.ID != id {
		return nil, contractx.ErrNotFound
	}
	return s.engagement, nil
}

func (s *fakeStore) UpdateEngagementOverview(ctx context.Context, id, overview string) error {
	if s.overviewErr != nil {
		return s.overviewErr
	}
	s.savedOverview = overview
	return nil
}

type fakeGateway struct {
	contractx.Gateway

	summary      *contractx.DiscoverySummary
	summaryErr   error
	overview     string
	overviewErr  error
	summarized   []*contractx.ConversationState
	synthesized  int
	gotSummaries []contractx.StakeholderSummary
}

func (g *fakeGateway) Summarize(ctx context.Context, st *contractx.ConversationState) (*contractx.DiscoverySummary, error) {
	g.summarized = append(g.summarized, st)
	if g.summaryErr != nil {
		return nil, g.summaryErr
	}
	return g.summary, nil
}

func (g *fakeGateway) SynthesizeOverview(ctx context.Context, engagementContext string, summaries []contractx.StakeholderSummary) (string, error) {
	g.synthesized++
	g.gotSummaries = summaries
	if g.overviewErr != nil {
		return "", g.overviewErr
	}
	return g.overview, nil
}

type syncSpawner struct {
	names []string
}

func (s *syncSpawner) Spawn(name string, fn func(ctx context.Context)) {
	s.names = append(s.names, name)
	fn(context.Background())
}

func fixtureStore() *fakeStore {
	return &fakeStore{
		session: &contractx.Session{
			ID:              "s-1",
			EngagementID:    "e-1",
			StakeholderName: "Dana",
			Status:          contractx.SessionCompleted,
		},
		result: &contractx.DiscoveryResult{
			SessionID: "s-1",
			RawConversation: []contractx.Message{
				{Role: contractx.RoleAssistant, Content: "{}"},
				{Role: contractx.RoleUser, Content: "answers"},
			},
			Answers: []contractx.QuizAnswer{{QuestionID: "q1"}},
		},
		engagement: &contractx.Engagement{ID: "e-1", Context: "Acme rollout"},
	}
}

func TestRetrySummaryRebuildsStateFromResult(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	gw := &fakeGateway{summary: &contractx.DiscoverySummary{Summary: "Needs tooling", PriorityLevel: contractx.PriorityHigh}}
	s, err := New(store, gw, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	summary, err := s.RetrySummary(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("RetrySummary() error = %v", err)
	}
	if summary.Summary != "Needs tooling" {
		t.Fatalf("summary = %+v", summary)
	}
	if store.savedSummary == nil {
		t.Fatal("summary must be persisted")
	}
	if len(gw.summarized) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(gw.summarized))
	}
	if got := gw.summarized[0]; got.CurrentBatchNumber != 2 || len(got.AllAnswers) != 1 {
		t.Fatalf("rebuilt state = %+v", got)
	}
}

func TestRetrySummaryUnknownSession(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeStore{}, &fakeGateway{}, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = s.RetrySummary(context.Background(), "missing")
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("RetrySummary() error = %v, want ErrNotFound", err)
	}
}

func TestRetrySummaryGatewayFailure(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	gw := &fakeGateway{summaryErr: contractx.ErrGateway}
	s, err := New(store, gw, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.RetrySummary(context.Background(), "s-1"); !errors.Is(err, contractx.ErrGateway) {
		t.Fatalf("RetrySummary() error = %v, want ErrGateway", err)
	}
	if store.savedSummary != nil {
		t.Fatal("nothing must be persisted on gateway failure")
	}
}

func TestSummarizeCompletedTriggersOverviewAtThreshold(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	// One prior stakeholder summary exists; this session's summary is the second.
	store.summaries = []contractx.StakeholderSummary{{StakeholderName: "Sam", AISummary: "Focus on budget"}}
	gw := &fakeGateway{
		summary:  &contractx.DiscoverySummary{Summary: "Needs tooling", PriorityLevel: contractx.PriorityMedium},
		overview: "Both stakeholders want change",
	}
	s, err := New(store, gw, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.SummarizeCompleted(context.Background(), "s-1")

	if gw.synthesized != 1 {
		t.Fatalf("synthesize calls = %d, want 1", gw.synthesized)
	}
	if store.savedOverview != "Both stakeholders want change" {
		t.Fatalf("overview = %q", store.savedOverview)
	}
	if len(gw.gotSummaries) != 2 {
		t.Fatalf("overview input summaries = %d, want 2", len(gw.gotSummaries))
	}
}

func TestSummarizeCompletedBelowThresholdSkipsOverview(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	gw := &fakeGateway{summary: &contractx.DiscoverySummary{Summary: "Needs tooling"}}
	s, err := New(store, gw, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s.SummarizeCompleted(context.Background(), "s-1")

	if gw.synthesized != 0 {
		t.Fatalf("synthesize calls = %d, want 0 with a single summary", gw.synthesized)
	}
	if store.savedSummary == nil {
		t.Fatal("the per-session summary must still be written")
	}
}

func TestRefreshOverviewRequiresTwoSummaries(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	store.summaries = []contractx.StakeholderSummary{{StakeholderName: "Sam", AISummary: "x"}}
	s, err := New(store, &fakeGateway{}, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = s.RefreshOverview(context.Background(), "e-1")
	if !errors.Is(err, contractx.ErrInsufficientData) {
		t.Fatalf("RefreshOverview() error = %v, want ErrInsufficientData", err)
	}
}

func TestRefreshOverviewDispatchesSynthesis(t *testing.T) {
	t.Parallel()

	store := fixtureStore()
	store.summaries = []contractx.StakeholderSummary{
		{StakeholderName: "Sam", AISummary: "x"},
		{StakeholderName: "Dana", AISummary: "y"},
	}
	gw := &fakeGateway{overview: "fresh overview"}
	spawner := &syncSpawner{}
	s, err := New(store, gw, spawner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.RefreshOverview(context.Background(), "e-1"); err != nil {
		t.Fatalf("RefreshOverview() error = %v", err)
	}
	if len(spawner.names) != 1 || spawner.names[0] != "refresh-overview" {
		t.Fatalf("spawned = %v", spawner.names)
	}
	if store.savedOverview != "fresh overview" {
		t.Fatalf("overview = %q", store.savedOverview)
	}
}

func TestRefreshOverviewUnknownEngagement(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeStore{}, &fakeGateway{}, &syncSpawner{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.RefreshOverview(context.Background(), "missing"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("RefreshOverview() error = %v, want ErrNotFound", err)
	}
}
