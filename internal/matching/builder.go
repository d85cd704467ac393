package matching

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/casematch/casematch/internal/types"
)

// Builder partitions a participant pool into teams across bounded iterations,
// relaxing strictness as iterations progress. One Builder drives one run; it
// carries no state shared between runs, so concurrent runs on independent
// pools need no locking.
type Builder struct {
	cfg    types.MatchConfig
	scorer *Scorer
	logger *slog.Logger
}

// NewBuilder creates a builder for one run. A nil logger disables diagnostics
// entirely; otherwise cfg.LogLevel selects how much is emitted. Logging never
// influences the computed partition.
func NewBuilder(cfg types.MatchConfig, logger *slog.Logger) (*Builder, error) {
	cfg = FillConfigDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil || cfg.LogLevel == types.LogSilent {
		logger = nil
	}
	return &Builder{
		cfg:    cfg,
		scorer: NewScorer(cfg.Weights),
		logger: logger,
	}, nil
}

// Config returns the effective configuration after defaulting.
func (b *Builder) Config() types.MatchConfig { return b.cfg }

// buildOutcome is the raw output of the iteration loop, consumed by the
// aggregator.
type buildOutcome struct {
	teams      []types.Team
	unmatched  []types.Participant
	iterations int
	stats      []types.IterationStat
	reason     types.TerminationReason
}

// Run executes the iteration loop over the given participants. The input
// slice is not mutated; the pool is an internal copy.
func (b *Builder) Run(participants []types.Participant) buildOutcome {
	if len(participants) == 0 {
		return buildOutcome{
			teams:     []types.Team{},
			unmatched: []types.Participant{},
			reason:    types.ReasonEmptyInput,
		}
	}

	// Pool ordered by original input position: the documented tie-break and
	// seeding order. Never rely on incidental slice ordering.
	pool := append([]types.Participant(nil), participants...)
	sort.Slice(pool, func(i, j int) bool { return pool[i].SourceIndex < pool[j].SourceIndex })

	out := buildOutcome{teams: []types.Team{}}
	for iter := 1; iter <= b.cfg.MaxIterations; iter++ {
		if len(pool) < b.cfg.MinParticipantsPerIteration {
			out.reason = types.ReasonPoolExhausted
			break
		}

		threshold := ThresholdAt(b.cfg.Strictness, iter)
		poolBefore := len(pool)

		var formed []types.Team
		formed, pool = b.runIteration(iter, threshold, pool)
		out.teams = append(out.teams, formed...)
		out.iterations = iter
		out.stats = append(out.stats, types.IterationStat{
			Iteration:   iter,
			Threshold:   threshold,
			TeamsFormed: len(formed),
			PoolBefore:  poolBefore,
			PoolAfter:   len(pool),
		})
		b.logIteration(iter, threshold, len(formed), len(pool))

		if len(formed) == 0 && len(pool) == poolBefore && AtFloor(b.cfg.Strictness, iter) {
			// Threshold cannot relax further and nothing moved: no amount of
			// additional iterations would change the partition.
			out.reason = types.ReasonStagnated
			break
		}
	}

	if out.reason == "" {
		if len(pool) < b.cfg.MinParticipantsPerIteration {
			out.reason = types.ReasonPoolExhausted
		} else {
			out.reason = types.ReasonIterationCap
		}
	}
	out.unmatched = pool
	return out
}

// runIteration greedily seeds teams from the pool at a fixed threshold and
// returns the finalized teams plus the remaining pool.
func (b *Builder) runIteration(iter int, threshold float64, pool []types.Participant) ([]types.Team, []types.Participant) {
	// Undersized-but-viable teams only finalize once no stricter pass can
	// still improve them: at the iteration cap or once the threshold floor is
	// reached. Until then their members dissolve back into the pool.
	lastChance := iter == b.cfg.MaxIterations || AtFloor(b.cfg.Strictness, iter)
	sizeMatch := SizeMatchRequired(b.cfg.Strictness, iter)

	var formed []types.Team
	tried := make(map[int]bool, len(pool))

	for {
		if len(pool) < b.cfg.MinParticipantsPerIteration {
			break
		}
		seed, ok := b.nextSeed(pool, tried)
		if !ok {
			break
		}
		tried[seed.SourceIndex] = true

		members := b.assemble(seed, pool, threshold, sizeMatch)
		target := seed.PreferredTeamSize
		if len(members) >= minViableTeamSize && (len(members) == target || lastChance) {
			team := types.Team{
				ID:                 teamID(members),
				Members:            members,
				CompatibilityScore: b.scorer.TeamScore(members),
				TargetSize:         target,
				FormedInIteration:  iter,
			}
			formed = append(formed, team)
			pool = removeMembers(pool, members)
			b.logTeam(iter, team)
		}
		// A failed attempt dissolves: members stay in the pool and remain
		// candidates for later seeds; only the seed is not retried this
		// iteration.
	}
	return formed, pool
}

// nextSeed returns the longest-waiting pool member not yet tried as a seed
// this iteration.
func (b *Builder) nextSeed(pool []types.Participant, tried map[int]bool) (types.Participant, bool) {
	for _, p := range pool {
		if !tried[p.SourceIndex] {
			return p, true
		}
	}
	return types.Participant{}, false
}

// assemble grows a candidate team from a seed, admitting the best-scoring
// remaining participant each step until the target size is reached or no
// candidate clears the threshold. Each admission is re-scored against the
// whole team, not just the last member.
func (b *Builder) assemble(seed types.Participant, pool []types.Participant, threshold float64, sizeMatch bool) []types.Participant {
	members := []types.Participant{seed}
	target := seed.PreferredTeamSize
	inTeam := map[int]bool{seed.SourceIndex: true}

	for len(members) < target {
		best := -1
		bestScore := 0.0
		for i, cand := range pool {
			if inTeam[cand.SourceIndex] {
				continue
			}
			if sizeMatch && cand.PreferredTeamSize != target {
				continue
			}
			score := b.scorer.TeamFitScore(cand, members)
			if score < threshold {
				continue
			}
			// Strictly-greater keeps the tie-break explicit: on equal scores
			// the earlier SourceIndex, reached first in pool order, wins.
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		admitted := pool[best]
		members = append(members, admitted)
		inTeam[admitted.SourceIndex] = true
		b.logAdmission(admitted, bestScore, len(members), target)
	}
	return members
}

// teamID derives a stable identifier from the member emails so that repeat
// runs over the same input produce byte-identical reports.
func teamID(members []types.Participant) string {
	emails := make([]string, len(members))
	for i, m := range members {
		emails[i] = m.Email
	}
	sort.Strings(emails)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(emails, "|"))).String()
}

// removeMembers filters finalized team members out of the pool, preserving
// order.
func removeMembers(pool, members []types.Participant) []types.Participant {
	taken := make(map[int]bool, len(members))
	for _, m := range members {
		taken[m.SourceIndex] = true
	}
	out := pool[:0]
	for _, p := range pool {
		if !taken[p.SourceIndex] {
			out = append(out, p)
		}
	}
	return out
}

func (b *Builder) logIteration(iter int, threshold float64, formed, remaining int) {
	if b.logger == nil || b.cfg.LogLevel == types.LogSilent {
		return
	}
	b.logger.Info("matching iteration finished",
		"iteration", iter,
		"threshold", threshold,
		"teams_formed", formed,
		"pool_remaining", remaining,
	)
}

func (b *Builder) logTeam(iter int, team types.Team) {
	if b.logger == nil || b.cfg.LogLevel != types.LogDetailed {
		return
	}
	b.logger.Debug("team finalized",
		"iteration", iter,
		"team_id", team.ID,
		"size", team.Size(),
		"target_size", team.TargetSize,
		"score", team.CompatibilityScore,
	)
}

func (b *Builder) logAdmission(p types.Participant, score float64, size, target int) {
	if b.logger == nil || b.cfg.LogLevel != types.LogDetailed {
		return
	}
	b.logger.Debug("candidate admitted",
		"participant", p.ID,
		"score", score,
		"team_size", size,
		"target_size", target,
	)
}
