package matching

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/casematch/casematch/internal/types"
)

// Aggregate assembles the final run report from the builder's raw outcome and
// enforces the conservation invariant: every input participant appears in
// exactly one of teams[*].Members or Unmatched. A mismatch indicates a
// bookkeeping bug in the builder and is returned loudly, never papered over.
func Aggregate(inputCount int, out buildOutcome, startedAt time.Time) (*types.MatchResult, error) {
	placed := 0
	seen := make(map[string]bool, inputCount)
	for _, team := range out.teams {
		for _, m := range team.Members {
			if seen[m.Email] {
				return nil, fmt.Errorf("%w: participant %s assigned twice", ErrConservation, m.Email)
			}
			seen[m.Email] = true
			placed++
		}
	}
	for _, p := range out.unmatched {
		if seen[p.Email] {
			return nil, fmt.Errorf("%w: participant %s both teamed and unmatched", ErrConservation, p.Email)
		}
		seen[p.Email] = true
	}
	if placed+len(out.unmatched) != inputCount {
		return nil, fmt.Errorf("%w: %d teamed + %d unmatched != %d input",
			ErrConservation, placed, len(out.unmatched), inputCount)
	}

	return &types.MatchResult{
		RunID:          uuid.New().String(),
		Teams:          out.teams,
		Unmatched:      out.unmatched,
		Iterations:     out.iterations,
		IterationStats: out.stats,
		Summary:        summarize(out, inputCount),
		StartedAt:      startedAt,
	}, nil
}

// summarize computes the descriptive statistics of a finished run.
func summarize(out buildOutcome, inputCount int) types.Summary {
	s := types.Summary{
		SizeDistribution: make(map[int]int),
		Termination:      out.reason,
	}
	var scoreSum float64
	for _, team := range out.teams {
		scoreSum += team.CompatibilityScore
		s.SizeDistribution[team.Size()]++
	}
	if len(out.teams) > 0 {
		s.AverageTeamScore = scoreSum / float64(len(out.teams))
	}
	if inputCount > 0 {
		s.UnmatchedRate = float64(len(out.unmatched)) / float64(inputCount)
	}
	return s
}

// Match runs the full pipeline over already-normalized participants: build
// teams, then aggregate the report. It is the single function-call boundary
// consumed by the HTTP layer and by offline callers.
func Match(participants []types.Participant, cfg types.MatchConfig, logger *slog.Logger) (*types.MatchResult, error) {
	builder, err := NewBuilder(cfg, logger)
	if err != nil {
		return nil, err
	}
	started := time.Now().UTC()
	out := builder.Run(participants)
	return Aggregate(len(participants), out, started)
}
