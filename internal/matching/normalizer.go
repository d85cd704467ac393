package matching

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/casematch/casematch/internal/types"
)

// NormalizeStats reports what the normalizer did with a batch of rows.
type NormalizeStats struct {
	Total      int `json:"total"`
	Accepted   int `json:"accepted"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
}

// Normalize converts raw rows into validated participants. Rows missing an
// email or name are dropped rather than failing the batch. Duplicate emails
// keep the first occurrence, so an earlier legitimate signup is never masked
// by a later resubmission.
func Normalize(rows []types.RawRow, cfg types.MatchConfig, logger *slog.Logger) ([]types.Participant, NormalizeStats) {
	stats := NormalizeStats{Total: len(rows)}
	participants := make([]types.Participant, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		email := strings.ToLower(strings.TrimSpace(row.Email))
		name := strings.TrimSpace(row.Name)
		if email == "" || name == "" {
			stats.Dropped++
			continue
		}
		if seen[email] {
			stats.Duplicates++
			continue
		}
		seen[email] = true

		p := types.Participant{
			ID:                fmt.Sprintf("p-%03d", i),
			Email:             email,
			Name:              name,
			CoreStrengths:     splitSet(row.CoreStrengths),
			PreferredRoles:    splitOrdered(row.PreferredRoles),
			WorkingStyles:     splitSet(row.WorkingStyles),
			Availability:      ParseAvailability(row.Availability),
			Experience:        ParseExperience(row.Experience),
			PreferredTeamSize: parseTeamSize(row.PreferredTeamSize, cfg),
			CasePreferences:   splitSet(row.CasePreferences),
			SourceIndex:       i,
		}
		participants = append(participants, p)
	}

	stats.Accepted = len(participants)
	if logger != nil && (stats.Dropped > 0 || stats.Duplicates > 0) {
		logger.Info("normalized participant rows",
			"total", stats.Total,
			"accepted", stats.Accepted,
			"dropped", stats.Dropped,
			"duplicates", stats.Duplicates,
		)
	}
	return participants, stats
}

// splitSet splits a delimited multi-value field into a sorted, de-duplicated,
// lower-cased set. Sorting keeps scoring independent of input ordering.
func splitSet(field string) []string {
	vals := splitOrdered(field)
	sort.Strings(vals)
	return vals
}

// splitOrdered splits a delimited multi-value field preserving order, used
// for role preferences where first = most preferred.
func splitOrdered(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	raw := strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, v := range raw {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ParseAvailability maps free-form availability answers onto a tier. Numeric
// answers are read as hours per week.
func ParseAvailability(s string) types.AvailabilityTier {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return types.AvailabilityUnknown
	}
	if hours, err := strconv.Atoi(strings.TrimSuffix(strings.Fields(s)[0], "h")); err == nil {
		switch {
		case hours < 5:
			return types.AvailabilityLow
		case hours < 15:
			return types.AvailabilityMedium
		default:
			return types.AvailabilityHigh
		}
	}
	switch {
	case strings.Contains(s, "high") || strings.Contains(s, "full"):
		return types.AvailabilityHigh
	case strings.Contains(s, "med"):
		return types.AvailabilityMedium
	case strings.Contains(s, "low") || strings.Contains(s, "min"):
		return types.AvailabilityLow
	default:
		return types.AvailabilityUnknown
	}
}

// ParseExperience maps free-form experience answers onto a tier.
func ParseExperience(s string) types.ExperienceTier {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return types.ExperienceUnknown
	case strings.Contains(s, "adv") || strings.Contains(s, "expert") || strings.Contains(s, "senior"):
		return types.ExperienceAdvanced
	case strings.Contains(s, "inter") || strings.Contains(s, "some"):
		return types.ExperienceIntermediate
	case strings.Contains(s, "nov") || strings.Contains(s, "begin") || strings.Contains(s, "first") || strings.Contains(s, "none"):
		return types.ExperienceNovice
	default:
		return types.ExperienceUnknown
	}
}

// parseTeamSize parses a preferred team size and clamps it to the viable
// range. Unparsable answers fall back to the configured default.
func parseTeamSize(s string, cfg types.MatchConfig) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return cfg.DefaultTeamSize
	}
	if n < minViableTeamSize {
		return minViableTeamSize
	}
	if n > cfg.MaxTeamSize {
		return cfg.MaxTeamSize
	}
	return n
}
