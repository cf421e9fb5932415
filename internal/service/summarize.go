package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"
	"echelon/internal/repository"

	"go.uber.org/zap"
)

// Summarizer turns a matching source line into the line a team reports
// upward
type Summarizer interface {
	Summarize(team domain.Team, content string) string
}

// SummarizerFunc adapts a function to Summarizer
type SummarizerFunc func(team domain.Team, content string) string

// Summarize calls f
func (f SummarizerFunc) Summarize(team domain.Team, content string) string {
	return f(team, content)
}

// PassThrough reports source content unchanged
var PassThrough Summarizer = SummarizerFunc(func(_ domain.Team, content string) string {
	return content
})

// SummaryService rebuilds the bullet point hierarchy from raw data
type SummaryService struct {
	repo       repository.Store
	eventBus   *EventBus
	summarizer Summarizer
	recorder   Recorder
	logger     *zap.Logger
}

// SummaryOption configures a SummaryService
type SummaryOption func(*SummaryService)

// WithSummarizer replaces the pass-through summarizer
func WithSummarizer(s Summarizer) SummaryOption {
	return func(svc *SummaryService) {
		if s != nil {
			svc.summarizer = s
		}
	}
}

// WithSummaryLogger sets the logger
func WithSummaryLogger(logger *zap.Logger) SummaryOption {
	return func(svc *SummaryService) {
		svc.logger = logger
	}
}

// WithSummaryRecorder sets the metrics recorder
func WithSummaryRecorder(r Recorder) SummaryOption {
	return func(svc *SummaryService) {
		svc.recorder = r
	}
}

// NewSummaryService creates a summary service
func NewSummaryService(repo repository.Store, eventBus *EventBus, opts ...SummaryOption) *SummaryService {
	s := &SummaryService{
		repo:       repo,
		eventBus:   eventBus,
		summarizer: PassThrough,
		recorder:   nopRecorder{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Regenerate discards every bullet point and rebuilds the hierarchy for a
// CCIR keyword. Teams are processed leaves first; each team reports every
// matching line of its subordinates and every matching observation of its
// own. An empty keyword matches everything.
func (s *SummaryService) Regenerate(ctx context.Context, keyword string) (domain.RegenerateResult, error) {
	start := time.Now()
	keyword = strings.TrimSpace(keyword)

	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return domain.RegenerateResult{}, err
	}
	raw, err := s.repo.ListRawData(ctx)
	if err != nil {
		return domain.RegenerateResult{}, err
	}

	plan, err := planSummaries(teams, raw, keyword, s.summarizer)
	if err != nil {
		return domain.RegenerateResult{}, fmt.Errorf("plan summaries: %w", err)
	}

	ids, err := s.repo.ReplaceSummaries(ctx, plan)
	if err != nil {
		return domain.RegenerateResult{}, fmt.Errorf("replace summaries: %w", err)
	}

	took := time.Since(start)
	s.recorder.RegenerationCompleted(len(ids), took)
	s.logger.Info("summaries regenerated",
		zap.String("ccir", keyword),
		zap.Int("created", len(ids)),
		zap.Duration("took", took),
	)
	s.eventBus.Publish(domain.Event{Type: domain.EventSummariesRegenerated, Keyword: keyword})

	return domain.RegenerateResult{
		Keyword: keyword,
		Created: len(ids),
		Message: fmt.Sprintf("Regenerated %d bullet points for CCIR %q", len(ids), keyword),
	}, nil
}

// planSummaries computes a regeneration plan without touching the store
func planSummaries(teams []domain.Team, raw []domain.RawData, keyword string, summarizer Summarizer) (domain.SummaryPlan, error) {
	idx := hierarchy.NewTeamIndex(teams)
	order, err := idx.BottomUp()
	if err != nil {
		return nil, err
	}

	rawByTeam := make(map[int64][]domain.RawData)
	for _, r := range raw {
		rawByTeam[r.TeamID] = append(rawByTeam[r.TeamID], r)
	}

	plan := make(domain.SummaryPlan, 0)
	produced := make(map[int64][]int, len(order))

	for _, team := range order {
		for _, sub := range idx.Subordinates(team.ID) {
			for _, i := range produced[sub.ID] {
				if !domain.MatchesKeyword(plan[i].Content, keyword) {
					continue
				}
				produced[team.ID] = append(produced[team.ID], len(plan))
				plan = append(plan, domain.PlannedSummary{
					TeamID:       team.ID,
					EchelonLevel: team.EchelonLevel,
					Content:      summarizer.Summarize(team, plan[i].Content),
					Sources:      []int{i},
				})
			}
		}

		for _, r := range rawByTeam[team.ID] {
			if !domain.MatchesKeyword(r.Content, keyword) {
				continue
			}
			produced[team.ID] = append(produced[team.ID], len(plan))
			plan = append(plan, domain.PlannedSummary{
				TeamID:       team.ID,
				EchelonLevel: team.EchelonLevel,
				Content:      summarizer.Summarize(team, r.Content),
				RawData:      []int64{r.ID},
			})
		}
	}

	return plan, nil
}
