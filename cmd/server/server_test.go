package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casematch/casematch/internal/database"
	"github.com/casematch/casematch/internal/insights"
	"github.com/casematch/casematch/internal/monitoring"
	"github.com/casematch/casematch/internal/ratelimit"
	"github.com/casematch/casematch/internal/types"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	db, err := database.NewDB(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	store := insights.NewStore(dir)
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger(slog.LevelError)
	svc := database.NewMatchService(repo, store, appLogger.Logger, appMetrics)

	redisClient, err := ratelimit.NewRedisClient("", "", 0)
	require.NoError(t, err)
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   1000,
		BurstMultiplier: 2,
	}, appMetrics)

	return setupRouter(svc, db, appMetrics, appLogger, limiter)
}

// scenarioRows is a four-participant pool with a known outcome: alice and ben
// pair immediately at score 77.5, cara and dan want a team of four that never
// fills and only finalize once no stricter pass remains.
func scenarioRows() []types.RawRow {
	return []types.RawRow{
		{Name: "Alice", Email: "alice@example.com", CoreStrengths: "modeling", PreferredRoles: "team lead", PreferredTeamSize: "2", CasePreferences: "finance"},
		{Name: "Ben", Email: "ben@example.com", CoreStrengths: "presentation", PreferredRoles: "analyst", PreferredTeamSize: "2", CasePreferences: "finance;marketing"},
		{Name: "Cara", Email: "cara@example.com", CoreStrengths: "research", PreferredRoles: "researcher", PreferredTeamSize: "4", CasePreferences: "tech"},
		{Name: "Dan", Email: "dan@example.com", CoreStrengths: "design", PreferredRoles: "designer", PreferredTeamSize: "4", CasePreferences: "tech;health"},
	}
}

func postMatch(t *testing.T, r *gin.Engine, req types.MatchRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	httpReq, _ := http.NewRequest("POST", "/api/match", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, httpReq)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{
			name:           "GET /health returns OK status",
			method:         "GET",
			path:           "/health",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST /health not routed",
			method:         "POST",
			path:           "/health",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown path not routed",
			method:         "GET",
			path:           "/nope",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.method, tt.path, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"status":"ok"`)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestMatchEndpoint_FormsTeams(t *testing.T) {
	r := newTestRouter(t)

	w := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, 4, report.Normalize.Total)
	assert.Equal(t, 4, report.Normalize.Accepted)

	result := report.Result
	require.NotNil(t, result)
	require.Len(t, result.Teams, 2)
	assert.Empty(t, result.Unmatched)
	assert.Equal(t, types.ReasonPoolExhausted, result.Summary.Termination)

	// Alice and Ben clear the opening threshold of 75 in the first pass.
	first := result.Teams[0]
	assert.Equal(t, 1, first.FormedInIteration)
	assert.Equal(t, 2, first.TargetSize)
	assert.InDelta(t, 77.5, first.CompatibilityScore, 0.001)

	// Cara and Dan's undersized pair dissolves every pass until the final
	// iteration, then finalizes rather than leaving them unmatched.
	second := result.Teams[1]
	assert.Equal(t, result.Iterations, second.FormedInIteration)
	assert.Equal(t, 4, second.TargetSize)
	assert.Len(t, second.Members, 2)
	assert.InDelta(t, 77.5, second.CompatibilityScore, 0.001)

	// Every input participant lands in exactly one team.
	var members int
	for _, team := range result.Teams {
		members += len(team.Members)
	}
	assert.Equal(t, 4, members)
}

func TestMatchEndpoint_Deterministic(t *testing.T) {
	r := newTestRouter(t)

	w1 := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	w2 := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)

	var first, second database.RunReport
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &first))
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))

	// Run IDs differ per invocation but the partition, scores, and the
	// email-derived team IDs are byte-identical.
	require.Len(t, second.Result.Teams, len(first.Result.Teams))
	for i := range first.Result.Teams {
		assert.Equal(t, first.Result.Teams[i].ID, second.Result.Teams[i].ID)
		assert.Equal(t, first.Result.Teams[i].Members, second.Result.Teams[i].Members)
		assert.Equal(t, first.Result.Teams[i].CompatibilityScore, second.Result.Teams[i].CompatibilityScore)
	}
	assert.Equal(t, first.Result.Unmatched, second.Result.Unmatched)
}

func TestMatchEndpoint_Validation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "malformed JSON rejected",
			body:           `{"participants": [`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing participants rejected",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative max_iterations rejected",
			body:           `{"participants": [{"name": "Alice", "email": "alice@example.com"}], "config": {"max_iterations": -1}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative scorer weight rejected",
			body:           `{"participants": [{"name": "Alice", "email": "alice@example.com"}], "config": {"weights": {"skill_complementarity": -0.5}}}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/match", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestMatchEndpoint_EmptyParticipants(t *testing.T) {
	r := newTestRouter(t)

	// An empty pool is valid input: the run completes immediately with a
	// zero report rather than a validation error.
	w := postMatch(t, r, types.MatchRequest{Participants: []types.RawRow{}})
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, 0, report.Normalize.Total)
	require.NotNil(t, report.Result)
	assert.Empty(t, report.Result.Teams)
	assert.Empty(t, report.Result.Unmatched)
	assert.Equal(t, 0, report.Result.Iterations)
	assert.Equal(t, types.ReasonEmptyInput, report.Result.Summary.Termination)
}

func uploadCSV(t *testing.T, r *gin.Engine, path, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	return w
}

func TestUploadEndpoint(t *testing.T) {
	r := newTestRouter(t)

	csv := strings.Join([]string{
		"Full Name,Email Address,Core Strengths,Preferred Roles,Preferred Team Size,Case Preferences",
		"Alice,alice@example.com,modeling,team lead,2,finance",
		"Ben,ben@example.com,presentation,analyst,2,finance;marketing",
		",noname@example.com,research,researcher,2,tech",
		"Alice Again,alice@example.com,design,designer,2,health",
	}, "\n")

	w := uploadCSV(t, r, "/api/match/upload", "signups.csv", csv)
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, 4, report.Normalize.Total)
	assert.Equal(t, 2, report.Normalize.Accepted)
	assert.Equal(t, 1, report.Normalize.Dropped)
	assert.Equal(t, 1, report.Normalize.Duplicates)

	require.Len(t, report.Result.Teams, 1)
	assert.InDelta(t, 77.5, report.Result.Teams[0].CompatibilityScore, 0.001)
}

func TestUploadEndpoint_Errors(t *testing.T) {
	r := newTestRouter(t)

	t.Run("missing file part", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/match/upload", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing email header", func(t *testing.T) {
		w := uploadCSV(t, r, "/api/match/upload", "bad.csv", "Full Name,Core Strengths\nAlice,modeling\n")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		w := uploadCSV(t, r, "/api/match/upload", "empty.csv", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunsEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	runID := report.Result.RunID

	t.Run("list includes the persisted run", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/runs", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Runs  []database.RunSummary `json:"runs"`
			Count int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, 1, body.Count)
		assert.Equal(t, runID, body.Runs[0].ID)
		assert.Equal(t, 2, body.Runs[0].TeamsCount)
		assert.Equal(t, 0, body.Runs[0].UnmatchedCount)
	})

	t.Run("get returns the stored report", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", fmt.Sprintf("/api/runs/%s", runID), nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var stored types.MatchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
		assert.Equal(t, runID, stored.RunID)
		assert.Len(t, stored.Teams, 2)
	})

	t.Run("unknown run is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/runs/does-not-exist", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestApproveTeamEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	teamID := report.Result.Teams[0].ID

	t.Run("empty body approves", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/teams/%s/approve", teamID), nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"approved":true`)
	})

	t.Run("explicit revoke", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/teams/%s/approve", teamID), strings.NewReader(`{"approved": false}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"approved":false`)
	})

	t.Run("unknown team is 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/teams/does-not-exist/approve", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestInsightsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	t.Run("no history falls back to default thresholds", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/insights", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var response database.InsightsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 0, response.Report.TeamCount)
		assert.InDelta(t, 75, response.Recommendation.Initial, 0.001)
		assert.InDelta(t, 40, response.Recommendation.Floor, 0.001)
	})

	w := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, w.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	for _, team := range report.Result.Teams {
		aw := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", fmt.Sprintf("/api/teams/%s/approve", team.ID), nil)
		r.ServeHTTP(aw, req)
		require.Equal(t, http.StatusOK, aw.Code)
	}

	t.Run("approved teams feed the report", func(t *testing.T) {
		// min_score below both team scores keeps the whole history in view.
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/insights?min_score=50", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var response database.InsightsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Report.TeamCount)
		assert.InDelta(t, 77.5, response.Report.ScoreMedian, 0.001)
		assert.Equal(t, 2, response.Recommendation.TeamCount)
	})
}

func TestInsightsEndpoint_ApprovalInvalidatesCache(t *testing.T) {
	r := newTestRouter(t)

	// Prime the response cache with the empty-history payload.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/insights", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	mw := postMatch(t, r, types.MatchRequest{Participants: scenarioRows()})
	require.Equal(t, http.StatusOK, mw.Code)

	var report database.RunReport
	require.NoError(t, json.Unmarshal(mw.Body.Bytes(), &report))
	for _, team := range report.Result.Teams {
		aw := httptest.NewRecorder()
		areq, _ := http.NewRequest("POST", fmt.Sprintf("/api/teams/%s/approve", team.ID), nil)
		r.ServeHTTP(aw, areq)
		require.Equal(t, http.StatusOK, aw.Code)
	}

	// The identical URL must now serve the post-approval history instead of
	// the cached empty report.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/insights", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response database.InsightsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Report.TeamCount)
	assert.InDelta(t, 77.5, response.Report.ScoreMedian, 0.001)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	// Generate some traffic first.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "total_requests")
	assert.Contains(t, stats, "match_runs")
}
