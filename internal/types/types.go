package types

import "time"

// RawRow represents one unvalidated input row from a CSV upload or an API
// request body. Multi-value fields are delimiter-separated strings exactly as
// they arrive; the normalizer owns splitting and validation.
type RawRow struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	CoreStrengths     string `json:"core_strengths"`
	PreferredRoles    string `json:"preferred_roles"`
	WorkingStyles     string `json:"working_styles"`
	Availability      string `json:"availability"`
	Experience        string `json:"experience"`
	PreferredTeamSize string `json:"preferred_team_size"`
	CasePreferences   string `json:"case_preferences"`
}

// AvailabilityTier buckets weekly hours a participant can commit.
type AvailabilityTier int

const (
	AvailabilityUnknown AvailabilityTier = iota
	AvailabilityLow
	AvailabilityMedium
	AvailabilityHigh
)

// String returns the wire representation of the tier.
func (t AvailabilityTier) String() string {
	switch t {
	case AvailabilityLow:
		return "low"
	case AvailabilityMedium:
		return "medium"
	case AvailabilityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ExperienceTier buckets prior case-competition experience.
type ExperienceTier int

const (
	ExperienceUnknown ExperienceTier = iota
	ExperienceNovice
	ExperienceIntermediate
	ExperienceAdvanced
)

// String returns the wire representation of the tier.
func (t ExperienceTier) String() string {
	switch t {
	case ExperienceNovice:
		return "novice"
	case ExperienceIntermediate:
		return "intermediate"
	case ExperienceAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Participant is one normalized applicant record. Immutable for the duration
// of a matching run; set-valued fields are sorted and de-duplicated by the
// normalizer so that scoring is order-independent.
type Participant struct {
	ID                string           `json:"id"`
	Email             string           `json:"email"`
	Name              string           `json:"name"`
	CoreStrengths     []string         `json:"core_strengths"`
	PreferredRoles    []string         `json:"preferred_roles"` // preference order preserved, first = most preferred
	WorkingStyles     []string         `json:"working_styles"`
	Availability      AvailabilityTier `json:"availability"`
	Experience        ExperienceTier   `json:"experience"`
	PreferredTeamSize int              `json:"preferred_team_size"`
	CasePreferences   []string         `json:"case_preferences"`

	// SourceIndex is the position of the row in the original input. It is the
	// tie-break comparator for the builder: earliest submission wins.
	SourceIndex int `json:"source_index"`
}

// Team is a group of participants assembled by the builder.
type Team struct {
	ID                 string        `json:"id"`
	Members            []Participant `json:"members"`
	CompatibilityScore float64       `json:"compatibility_score"`
	TargetSize         int           `json:"target_size"`
	FormedInIteration  int           `json:"formed_in_iteration"`
}

// Size returns the current member count.
func (t *Team) Size() int { return len(t.Members) }

// LogLevel controls diagnostic verbosity of a matching run. It never alters
// the computed result.
type LogLevel string

const (
	LogSilent   LogLevel = "silent"
	LogSummary  LogLevel = "summary"
	LogDetailed LogLevel = "detailed"
)

// StrictnessSchedule describes how the admission threshold relaxes across
// iterations: exponential decay from Initial toward Floor with time constant
// Tau. While the threshold is at or above SizeMatchCutoff, candidates must
// also match the team's target size exactly.
type StrictnessSchedule struct {
	Initial         float64 `json:"initial"`
	Floor           float64 `json:"floor"`
	Tau             float64 `json:"tau"`
	SizeMatchCutoff float64 `json:"size_match_cutoff"`
}

// Weights holds the scorer's sub-score weights. They are tunable
// configuration, not package globals, so concurrent runs stay independent.
type Weights struct {
	SkillComplementarity float64 `json:"skill_complementarity"`
	RoleSatisfiability   float64 `json:"role_satisfiability"`
	CasePreference       float64 `json:"case_preference"`
	Availability         float64 `json:"availability"`
	ExperienceBalance    float64 `json:"experience_balance"`
}

// MatchConfig is the full configuration of one matching run.
type MatchConfig struct {
	MaxIterations               int                `json:"max_iterations"`
	MinParticipantsPerIteration int                `json:"min_participants_per_iteration"`
	MaxTeamSize                 int                `json:"max_team_size"`
	DefaultTeamSize             int                `json:"default_team_size"`
	LogLevel                    LogLevel           `json:"log_level"`
	Weights                     Weights            `json:"weights"`
	Strictness                  StrictnessSchedule `json:"strictness"`
}

// TerminationReason states why a matching run stopped iterating.
type TerminationReason string

const (
	// ReasonPoolExhausted means fewer participants remained than the
	// configured per-iteration minimum.
	ReasonPoolExhausted TerminationReason = "pool_exhausted"
	// ReasonIterationCap means the iteration counter hit MaxIterations.
	ReasonIterationCap TerminationReason = "iteration_cap_reached"
	// ReasonStagnated means no team formed, the pool was unchanged, and the
	// threshold had already reached its floor, so no relaxation remained.
	ReasonStagnated TerminationReason = "stagnated"
	// ReasonEmptyInput means the run received no participants at all.
	ReasonEmptyInput TerminationReason = "empty_input"
)

// IterationStat records what one builder iteration accomplished.
type IterationStat struct {
	Iteration   int     `json:"iteration"`
	Threshold   float64 `json:"threshold"`
	TeamsFormed int     `json:"teams_formed"`
	PoolBefore  int     `json:"pool_before"`
	PoolAfter   int     `json:"pool_after"`
}

// Summary carries the aggregate statistics of a finished run.
type Summary struct {
	AverageTeamScore float64           `json:"average_team_score"`
	SizeDistribution map[int]int       `json:"size_distribution"`
	UnmatchedRate    float64           `json:"unmatched_rate"`
	Termination      TerminationReason `json:"termination"`
}

// MatchResult is the final report of a matching run. Every input participant
// appears in exactly one of Teams[*].Members or Unmatched.
type MatchResult struct {
	RunID          string          `json:"run_id"`
	Teams          []Team          `json:"teams"`
	Unmatched      []Participant   `json:"unmatched"`
	Iterations     int             `json:"iterations"`
	IterationStats []IterationStat `json:"iteration_stats"`
	Summary        Summary         `json:"summary"`
	StartedAt      time.Time       `json:"started_at"`
}

// MatchRequest is the body of the POST /api/match endpoint.
type MatchRequest struct {
	Participants []RawRow     `json:"participants" binding:"required"`
	Config       *MatchConfig `json:"config,omitempty"`
}
