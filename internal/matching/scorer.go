package matching

import "github.com/casematch/casematch/internal/types"

// neutralScore is the score assigned on a dimension where one or both sides
// supplied no data. Missing preferences are never an error and never a zero.
const neutralScore = 50.0

// Scorer computes compatibility scores on a 0..100 scale. It is a pure value
// type: constructed per run from explicit weights, deterministic, and safe to
// share between goroutines.
type Scorer struct {
	weights types.Weights
}

// NewScorer creates a scorer with the given sub-score weights.
func NewScorer(w types.Weights) *Scorer {
	return &Scorer{weights: w}
}

// PairScore computes the compatibility of two participants.
func (s *Scorer) PairScore(a, b types.Participant) float64 {
	return s.weighted(
		skillComplementarity(a.CoreStrengths, b.CoreStrengths),
		roleSatisfiability(a.PreferredRoles, b.PreferredRoles),
		caseOverlap(a.CasePreferences, b.CasePreferences),
		availabilityFit(a.Availability, b.Availability),
		experienceBalance(a.Experience, b.Experience),
	)
}

// TeamFitScore computes how well a candidate fits an existing team: the
// average of the candidate's pairwise scores against every current member,
// except that role satisfiability is evaluated once against the roles the
// whole team has already claimed. Average is used rather than minimum because
// minimum is overly punishing at team size 2.
func (s *Scorer) TeamFitScore(candidate types.Participant, members []types.Participant) float64 {
	if len(members) == 0 {
		return neutralScore
	}

	var skill, caseP, avail, exp float64
	for _, m := range members {
		skill += skillComplementarity(candidate.CoreStrengths, m.CoreStrengths)
		caseP += caseOverlap(candidate.CasePreferences, m.CasePreferences)
		avail += availabilityFit(candidate.Availability, m.Availability)
		exp += experienceBalance(candidate.Experience, m.Experience)
	}
	n := float64(len(members))

	return s.weighted(
		skill/n,
		roleOpenness(candidate.PreferredRoles, claimedRoles(members)),
		caseP/n,
		avail/n,
		exp/n,
	)
}

// TeamScore computes the aggregate score of a formed team: the average of all
// pairwise member scores. A single-member team has no pairs and scores
// neutral, but the builder never finalizes one.
func (s *Scorer) TeamScore(members []types.Participant) float64 {
	if len(members) < 2 {
		return neutralScore
	}
	var sum float64
	var pairs int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += s.PairScore(members[i], members[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// weighted combines sub-scores into the final clamped 0..100 score.
func (s *Scorer) weighted(skill, role, caseP, avail, exp float64) float64 {
	w := s.weights
	total := w.SkillComplementarity + w.RoleSatisfiability + w.CasePreference + w.Availability + w.ExperienceBalance
	if total <= 0 {
		return neutralScore
	}
	score := (w.SkillComplementarity*skill +
		w.RoleSatisfiability*role +
		w.CasePreference*caseP +
		w.Availability*avail +
		w.ExperienceBalance*exp) / total
	return clamp(score, 0, 100)
}

// skillComplementarity rewards distinct, non-overlapping strengths: teams
// benefit from diverse skills. Score is the fraction of the union that is not
// shared, scaled to 0..100.
func skillComplementarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return neutralScore
	}
	shared := intersectionSize(a, b)
	union := len(a) + len(b) - shared
	return 100 * float64(union-shared) / float64(union)
}

// roleSatisfiability checks whether two participants can both get a preferred
// role. Wanting the same first-choice role is the worst case; disjoint
// preferences the best.
func roleSatisfiability(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return neutralScore
	}
	if a[0] != b[0] {
		return 100
	}
	// Same first choice: satisfiable only if one side has a fallback.
	if len(a) > 1 || len(b) > 1 {
		return 60
	}
	return 0
}

// roleOpenness scores a candidate against the roles a team has already
// claimed, weighted by preference position: an open first choice is worth
// more than an open third choice.
func roleOpenness(prefs []string, claimed map[string]bool) float64 {
	if len(prefs) == 0 {
		return neutralScore
	}
	var earned, possible float64
	for i, role := range prefs {
		weight := 1.0 / float64(i+1)
		possible += weight
		if !claimed[role] {
			earned += weight
		}
	}
	return 100 * earned / possible
}

// caseOverlap rewards shared case-type interest: teams benefit from aligned
// interests. Jaccard similarity scaled to 0..100.
func caseOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return neutralScore
	}
	shared := intersectionSize(a, b)
	union := len(a) + len(b) - shared
	return 100 * float64(shared) / float64(union)
}

// availabilityFit rewards similar availability tiers to avoid scheduling
// mismatch.
func availabilityFit(a, b types.AvailabilityTier) float64 {
	if a == types.AvailabilityUnknown || b == types.AvailabilityUnknown {
		return neutralScore
	}
	switch diff := absInt(int(a) - int(b)); diff {
	case 0:
		return 100
	case 1:
		return 60
	default:
		return 20
	}
}

// experienceBalance rewards mixing experience tiers up to a point: adjacent
// tiers score highest, uniform teams score lower, and the novice/advanced
// extremes lower still.
func experienceBalance(a, b types.ExperienceTier) float64 {
	if a == types.ExperienceUnknown || b == types.ExperienceUnknown {
		return neutralScore
	}
	switch diff := absInt(int(a) - int(b)); diff {
	case 1:
		return 100
	case 0:
		return 70
	default:
		return 40
	}
}

// claimedRoles returns the first-choice roles already taken by team members.
func claimedRoles(members []types.Participant) map[string]bool {
	claimed := make(map[string]bool, len(members))
	for _, m := range members {
		if len(m.PreferredRoles) > 0 {
			claimed[m.PreferredRoles[0]] = true
		}
	}
	return claimed
}

// intersectionSize counts shared elements of two sorted string sets.
func intersectionSize(a, b []string) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
