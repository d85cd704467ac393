package matching

import (
	"errors"
	"fmt"

	"github.com/casematch/casematch/internal/types"
)

// Domain errors surfaced before a run starts iterating. Anything past
// validation is a reportable outcome, not an error.
var (
	ErrInvalidConfig = errors.New("invalid matching configuration")
	ErrConservation  = errors.New("participant conservation violated")
)

const minViableTeamSize = 2

// DefaultWeights returns the tuned sub-score weights. They sum to 1 so the
// weighted total stays on the 0..100 scale of the sub-scores.
func DefaultWeights() types.Weights {
	return types.Weights{
		SkillComplementarity: 0.30,
		RoleSatisfiability:   0.25,
		CasePreference:       0.20,
		Availability:         0.15,
		ExperienceBalance:    0.10,
	}
}

// DefaultStrictness returns the default admission-threshold schedule:
// start at 75, decay exponentially toward a floor of 40 with tau of 8
// iterations, and require exact size-preference matches while the threshold
// is still at or above 60.
func DefaultStrictness() types.StrictnessSchedule {
	return types.StrictnessSchedule{
		Initial:         75,
		Floor:           40,
		Tau:             8,
		SizeMatchCutoff: 60,
	}
}

// DefaultConfig returns a fully populated MatchConfig.
func DefaultConfig() types.MatchConfig {
	return types.MatchConfig{
		MaxIterations:               30,
		MinParticipantsPerIteration: 2,
		MaxTeamSize:                 6,
		DefaultTeamSize:             4,
		LogLevel:                    types.LogSummary,
		Weights:                     DefaultWeights(),
		Strictness:                  DefaultStrictness(),
	}
}

// FillConfigDefaults replaces zero values in cfg with defaults so callers can
// submit partial configuration.
func FillConfigDefaults(cfg types.MatchConfig) types.MatchConfig {
	def := DefaultConfig()
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MinParticipantsPerIteration == 0 {
		cfg.MinParticipantsPerIteration = def.MinParticipantsPerIteration
	}
	if cfg.MaxTeamSize == 0 {
		cfg.MaxTeamSize = def.MaxTeamSize
	}
	if cfg.DefaultTeamSize == 0 {
		cfg.DefaultTeamSize = def.DefaultTeamSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Weights == (types.Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Strictness == (types.StrictnessSchedule{}) {
		cfg.Strictness = def.Strictness
	}
	return cfg
}

// ValidateConfig rejects configurations that cannot drive a run. It is the
// fail-fast boundary: once it passes, the builder always terminates with a
// result.
func ValidateConfig(cfg types.MatchConfig) error {
	if cfg.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidConfig, cfg.MaxIterations)
	}
	if cfg.MinParticipantsPerIteration < minViableTeamSize {
		return fmt.Errorf("%w: min_participants_per_iteration must be >= %d, got %d",
			ErrInvalidConfig, minViableTeamSize, cfg.MinParticipantsPerIteration)
	}
	if cfg.MaxTeamSize < minViableTeamSize {
		return fmt.Errorf("%w: max_team_size must be >= %d, got %d", ErrInvalidConfig, minViableTeamSize, cfg.MaxTeamSize)
	}
	if cfg.DefaultTeamSize < minViableTeamSize || cfg.DefaultTeamSize > cfg.MaxTeamSize {
		return fmt.Errorf("%w: default_team_size must be in [%d, %d], got %d",
			ErrInvalidConfig, minViableTeamSize, cfg.MaxTeamSize, cfg.DefaultTeamSize)
	}
	switch cfg.LogLevel {
	case types.LogSilent, types.LogSummary, types.LogDetailed:
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, cfg.LogLevel)
	}
	w := cfg.Weights
	for _, v := range []float64{w.SkillComplementarity, w.RoleSatisfiability, w.CasePreference, w.Availability, w.ExperienceBalance} {
		if v < 0 {
			return fmt.Errorf("%w: scorer weights must be non-negative", ErrInvalidConfig)
		}
	}
	if w.SkillComplementarity+w.RoleSatisfiability+w.CasePreference+w.Availability+w.ExperienceBalance <= 0 {
		return fmt.Errorf("%w: scorer weights must not all be zero", ErrInvalidConfig)
	}
	s := cfg.Strictness
	if s.Floor < 0 || s.Initial > 100 || s.Floor > s.Initial {
		return fmt.Errorf("%w: strictness must satisfy 0 <= floor <= initial <= 100", ErrInvalidConfig)
	}
	if s.Tau <= 0 {
		return fmt.Errorf("%w: strictness tau must be positive", ErrInvalidConfig)
	}
	return nil
}
