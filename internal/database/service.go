package database

import (
	"fmt"
	"log/slog"

	"github.com/casematch/casematch/internal/insights"
	"github.com/casematch/casematch/internal/matching"
	"github.com/casematch/casematch/internal/monitoring"
	"github.com/casematch/casematch/internal/types"
)

// MatchService drives the full matching pipeline for the HTTP layer:
// normalize, build, aggregate, persist. The matching core itself never
// touches storage; this service is the external collaborator that does.
type MatchService struct {
	repo     *Repository
	analyzer *insights.Analyzer
	store    *insights.Store
	logger   *slog.Logger
	metrics  *monitoring.Metrics
}

// NewMatchService creates a match service. metrics may be nil in tests.
func NewMatchService(repo *Repository, store *insights.Store, logger *slog.Logger, metrics *monitoring.Metrics) *MatchService {
	return &MatchService{
		repo:     repo,
		analyzer: insights.NewAnalyzer(10),
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// RunReport bundles the matching result with what the normalizer did to the
// input rows.
type RunReport struct {
	Result    *types.MatchResult      `json:"result"`
	Normalize matching.NormalizeStats `json:"normalize"`
}

// RunMatch executes one full matching run over raw rows and persists the
// report. A nil config uses defaults; partial configs are filled in.
func (s *MatchService) RunMatch(rows []types.RawRow, cfg *types.MatchConfig) (*RunReport, error) {
	effective := matching.DefaultConfig()
	if cfg != nil {
		effective = matching.FillConfigDefaults(*cfg)
	}

	participants, stats := matching.Normalize(rows, effective, s.logger)
	result, err := matching.Match(participants, effective, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveRun(result); err != nil {
		// The computation succeeded; persistence failing should surface but
		// not lose the report.
		return nil, fmt.Errorf("run %s computed but not persisted: %w", result.RunID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordMatchRun(len(result.Teams), len(result.Unmatched))
	}
	s.logger.Info("matching run persisted",
		"run_id", result.RunID,
		"participants", stats.Accepted,
		"teams", len(result.Teams),
		"unmatched", len(result.Unmatched),
		"iterations", result.Iterations,
		"termination", result.Summary.Termination,
	)

	return &RunReport{Result: result, Normalize: stats}, nil
}

// GetRun loads a persisted run report.
func (s *MatchService) GetRun(id string) (*types.MatchResult, error) {
	return s.repo.GetRun(id)
}

// ListRuns lists recent run summaries.
func (s *MatchService) ListRuns(limit int) ([]RunSummary, error) {
	return s.repo.ListRuns(limit)
}

// ApproveTeam marks a stored team as organizer-approved.
func (s *MatchService) ApproveTeam(teamID string, approved bool) error {
	return s.repo.SetTeamApproved(teamID, approved)
}

// InsightsResponse is the payload of the insights endpoint.
type InsightsResponse struct {
	Report         insights.Report         `json:"report"`
	Recommendation insights.Recommendation `json:"recommendation"`
}

// Insights analyzes approved historical teams at or above minScore and
// derives a threshold recommendation for the next run, persisting it per
// event so later uploads can reuse it.
func (s *MatchService) Insights(event string, minScore float64, pendingPoolSize int) (*InsightsResponse, error) {
	teams, err := s.repo.ListApprovedTeams(minScore, 0)
	if err != nil {
		return nil, err
	}

	report := s.analyzer.Analyze(teams, minScore)
	rec := s.analyzer.RecommendThresholds(teams, pendingPoolSize)

	if err := s.store.Save(event, &rec); err != nil {
		// Best effort: the response is still valid without the stored copy.
		s.logger.Warn("failed to persist threshold recommendation", "event", event, "error", err)
	}

	return &InsightsResponse{Report: report, Recommendation: rec}, nil
}
