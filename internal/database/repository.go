package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/casematch/casematch/internal/types"
)

// RunSummary is the listing view of a persisted matching run.
type RunSummary struct {
	ID             string                  `json:"id"`
	Iterations     int                     `json:"iterations"`
	Termination    types.TerminationReason `json:"termination"`
	TeamsCount     int                     `json:"teams_count"`
	UnmatchedCount int                     `json:"unmatched_count"`
	AvgScore       float64                 `json:"avg_score"`
	UnmatchedRate  float64                 `json:"unmatched_rate"`
	CreatedAt      time.Time               `json:"created_at"`
}

// Repository handles persistence of matching runs and their teams.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveRun persists a full run report plus one row per formed team, in a
// single transaction.
func (r *Repository) SaveRun(result *types.MatchResult) error {
	report, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO matching_runs (id, iterations, termination, teams_count, unmatched_count, avg_score, unmatched_rate, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, result.Iterations, string(result.Summary.Termination), len(result.Teams),
		len(result.Unmatched), result.Summary.AverageTeamScore, result.Summary.UnmatchedRate, string(report), now)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, team := range result.Teams {
		members, err := json.Marshal(team.Members)
		if err != nil {
			return fmt.Errorf("failed to encode team members: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO teams (id, run_id, score, target_size, member_count, formed_iteration, members, approved, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, team.ID, result.RunID, team.CompatibilityScore, team.TargetSize, len(team.Members),
			team.FormedInIteration, string(members), false, now)
		if err != nil {
			return fmt.Errorf("failed to insert team: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun loads a persisted run report by id. Returns sql.ErrNoRows wrapped
// when the run does not exist.
func (r *Repository) GetRun(id string) (*types.MatchResult, error) {
	var report string
	err := r.db.QueryRow(`SELECT report FROM matching_runs WHERE id = ?`, id).Scan(&report)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var result types.MatchResult
	if err := json.Unmarshal([]byte(report), &result); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &result, nil
}

// ListRuns returns the most recent run summaries.
func (r *Repository) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, iterations, termination, teams_count, unmatched_count, avg_score, unmatched_rate, created_at
		FROM matching_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Iterations, &s.Termination, &s.TeamsCount,
			&s.UnmatchedCount, &s.AvgScore, &s.UnmatchedRate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListTeams returns stored teams scoring at or above minScore, newest first.
func (r *Repository) ListTeams(minScore float64, limit int) ([]types.Team, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(`
		SELECT id, score, target_size, formed_iteration, members
		FROM teams WHERE score >= ? ORDER BY created_at DESC, score DESC LIMIT ?
	`, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var out []types.Team
	for rows.Next() {
		var team types.Team
		var members string
		if err := rows.Scan(&team.ID, &team.CompatibilityScore, &team.TargetSize,
			&team.FormedInIteration, &members); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &team.Members); err != nil {
			return nil, fmt.Errorf("failed to decode team members: %w", err)
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

// SetTeamApproved flags a stored team as organizer-approved; approved teams
// feed the insights analyzer. A team id names a partition, so approval
// covers that partition in every run where it occurred.
func (r *Repository) SetTeamApproved(teamID string, approved bool) error {
	res, err := r.db.Exec(`UPDATE teams SET approved = ? WHERE id = ?`, approved, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("team %s: %w", teamID, sql.ErrNoRows)
	}
	return nil
}

// ListApprovedTeams returns organizer-approved teams at or above minScore.
func (r *Repository) ListApprovedTeams(minScore float64, limit int) ([]types.Team, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(`
		SELECT id, score, target_size, formed_iteration, members
		FROM teams WHERE approved AND score >= ? ORDER BY created_at DESC, score DESC LIMIT ?
	`, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved teams: %w", err)
	}
	defer rows.Close()

	var out []types.Team
	for rows.Next() {
		var team types.Team
		var members string
		if err := rows.Scan(&team.ID, &team.CompatibilityScore, &team.TargetSize,
			&team.FormedInIteration, &members); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &team.Members); err != nil {
			return nil, fmt.Errorf("failed to decode team members: %w", err)
		}
		out = append(out, team)
	}
	return out, rows.Err()
}
