// Package insights provides read-only analytics over historical formed teams:
// descriptive statistics for organizers and strictness-threshold suggestions
// for future matching runs. It never mutates the history it reads.
package insights

import (
	"fmt"
	"sort"

	"github.com/casematch/casematch/internal/types"
)

// StrengthPairing counts how often two core strengths ended up on the same
// team.
type StrengthPairing struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// Report is the descriptive output of one analysis pass.
type Report struct {
	TeamCount        int               `json:"team_count"`
	MinScore         float64           `json:"min_score"`
	ScoreMedian      float64           `json:"score_median"`
	ScoreSpread      float64           `json:"score_spread"`
	AverageTeamSize  float64           `json:"average_team_size"`
	RoleDistribution map[string]int    `json:"role_distribution"`
	TopPairings      []StrengthPairing `json:"top_pairings"`
}

// Recommendation suggests a strictness schedule for the next run, derived
// from how previously approved teams actually scored.
type Recommendation struct {
	Initial   float64 `json:"initial"`
	Floor     float64 `json:"floor"`
	TeamCount int     `json:"team_count"`
	Basis     string  `json:"basis"`
}

// Analyzer computes insights over already-approved historical teams. The
// team values it receives are treated as immutable.
type Analyzer struct {
	topN int
}

// NewAnalyzer creates an analyzer reporting the topN most common strength
// pairings.
func NewAnalyzer(topN int) *Analyzer {
	if topN <= 0 {
		topN = 10
	}
	return &Analyzer{topN: topN}
}

// Analyze computes descriptive statistics over the teams whose compatibility
// score is at or above minScore.
func (a *Analyzer) Analyze(teams []types.Team, minScore float64) Report {
	report := Report{
		MinScore:         minScore,
		RoleDistribution: make(map[string]int),
		TopPairings:      []StrengthPairing{},
	}

	var scores []float64
	var memberTotal int
	pairings := make(map[[2]string]int)

	for _, team := range teams {
		if team.CompatibilityScore < minScore {
			continue
		}
		report.TeamCount++
		scores = append(scores, team.CompatibilityScore)
		memberTotal += len(team.Members)

		for _, m := range team.Members {
			if len(m.PreferredRoles) > 0 {
				report.RoleDistribution[m.PreferredRoles[0]]++
			}
		}
		countPairings(team.Members, pairings)
	}

	if report.TeamCount > 0 {
		report.ScoreMedian = median(scores)
		report.ScoreSpread = robustSpread(scores)
		report.AverageTeamSize = float64(memberTotal) / float64(report.TeamCount)
		report.TopPairings = topPairings(pairings, a.topN)
	}
	return report
}

// RecommendThresholds derives a strictness suggestion from historical team
// scores: start a bit above the median of what approved teams achieved and
// floor a spread below it. A larger pending pool can afford a stricter start
// because more candidate combinations exist.
func (a *Analyzer) RecommendThresholds(history []types.Team, pendingPoolSize int) Recommendation {
	var scores []float64
	for _, team := range history {
		scores = append(scores, team.CompatibilityScore)
	}
	if len(scores) == 0 {
		return Recommendation{
			Initial: 75,
			Floor:   40,
			Basis:   "defaults: no historical teams available",
		}
	}

	med := median(scores)
	spread := robustSpread(scores)

	initial := med + spread/2
	if pendingPoolSize >= 4*int(a.averageSize(history)) {
		initial += 5
	}
	initial = clamp(initial, 50, 90)
	floor := clamp(med-spread, 30, initial-10)

	return Recommendation{
		Initial:   initial,
		Floor:     floor,
		TeamCount: len(scores),
		Basis: fmt.Sprintf("median %.1f, spread %.1f over %d teams, pending pool %d",
			med, spread, len(scores), pendingPoolSize),
	}
}

func (a *Analyzer) averageSize(teams []types.Team) float64 {
	if len(teams) == 0 {
		return 0
	}
	total := 0
	for _, t := range teams {
		total += len(t.Members)
	}
	return float64(total) / float64(len(teams))
}

// countPairings tallies unordered strength pairs across distinct members of
// one team.
func countPairings(members []types.Participant, acc map[[2]string]int) {
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			for _, sa := range members[i].CoreStrengths {
				for _, sb := range members[j].CoreStrengths {
					if sa == sb {
						continue
					}
					key := [2]string{sa, sb}
					if sb < sa {
						key = [2]string{sb, sa}
					}
					acc[key]++
				}
			}
		}
	}
}

// topPairings returns the n most frequent pairings with a deterministic
// order: count descending, then lexicographic.
func topPairings(acc map[[2]string]int, n int) []StrengthPairing {
	out := make([]StrengthPairing, 0, len(acc))
	for key, count := range acc {
		out = append(out, StrengthPairing{A: key[0], B: key[1], Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
