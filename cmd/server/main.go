package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/casematch/casematch/internal/cache"
	"github.com/casematch/casematch/internal/database"
	apperrors "github.com/casematch/casematch/internal/errors"
	"github.com/casematch/casematch/internal/ingest"
	"github.com/casematch/casematch/internal/insights"
	"github.com/casematch/casematch/internal/matching"
	"github.com/casematch/casematch/internal/monitoring"
	"github.com/casematch/casematch/internal/ratelimit"
	"github.com/casematch/casematch/internal/security"
	"github.com/casematch/casematch/internal/types"
)

var serverStart = time.Now()

func main() {
	port := getEnvOrDefault("PORT", "8080")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))

	appLogger := monitoring.NewLogger(parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")))
	slog.SetDefault(appLogger.Logger)

	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	store := insights.NewStore(dataDir)
	appMetrics := monitoring.NewMetrics()
	svc := database.NewMatchService(repo, store, appLogger.Logger, appMetrics)

	// A missing or unreachable redis is not fatal; the limiter degrades to
	// in-memory token buckets.
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, redisDB)
	if err != nil {
		slog.Warn("redis unavailable", "error", err)
	}
	defer redisClient.Close()
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	r := setupRouter(svc, db, appMetrics, appLogger, limiter)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

// setupRouter wires middleware and routes. It is shared with the server tests
// so handlers are exercised through the full middleware chain.
func setupRouter(svc *database.MatchService, db *database.DB, appMetrics *monitoring.Metrics, appLogger *monitoring.Logger, limiter *ratelimit.RateLimiter) *gin.Engine {
	r := gin.New()

	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.Middleware(appMetrics, appLogger))
	r.Use(apperrors.ErrorHandler())
	r.Use(security.HeadersMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000")}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(corsConfig))

	insightsCache := cache.NewCache(10 * time.Minute)

	r.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(serverStart).String(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	api.POST("/match", limiter.IPRateLimitMiddleware(), func(c *gin.Context) {
		var req types.MatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := apperrors.NewValidationError("invalid request body", err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		report, err := svc.RunMatch(req.Participants, req.Config)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.Is(err, matching.ErrInvalidConfig) {
				appErr = apperrors.NewValidationError(err.Error(), err)
			} else {
				appErr = apperrors.ToAppError(err)
			}
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, report)
	})

	api.POST("/match/upload", limiter.IPRateLimitMiddleware(), func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			appErr := apperrors.NewValidationError("missing file upload", err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			appErr := apperrors.NewInternalError("failed to open upload", err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		defer f.Close()

		rows, err := ingest.ParseCSV(f)
		if err != nil {
			appErr := apperrors.NewValidationError(err.Error(), err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		cfg := configFromQuery(c)
		report, err := svc.RunMatch(rows, cfg)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.Is(err, matching.ErrInvalidConfig) {
				appErr = apperrors.NewValidationError(err.Error(), err)
			} else {
				appErr = apperrors.ToAppError(err)
			}
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		appLogger.UploadLogger(fileHeader.Filename, len(rows), report.Normalize.Accepted, report.Normalize.Dropped)
		c.JSON(http.StatusOK, report)
	})

	api.GET("/runs", func(c *gin.Context) {
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
				limit = l
			}
		}

		runs, err := svc.ListRuns(limit)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
	})

	api.GET("/runs/:id", func(c *gin.Context) {
		result, err := svc.GetRun(c.Param("id"))
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, result)
	})

	api.POST("/teams/:id/approve", func(c *gin.Context) {
		// The body is optional; an empty POST approves.
		var body struct {
			Approved *bool `json:"approved"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				appErr := apperrors.NewValidationError("invalid request body", err)
				apperrors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}
		}

		approved := true
		if body.Approved != nil {
			approved = *body.Approved
		}

		teamID := c.Param("id")
		if err := svc.ApproveTeam(teamID, approved); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// Approval changes the insights history; cached responses are stale.
		insightsCache.Clear()

		c.JSON(http.StatusOK, gin.H{"team_id": teamID, "approved": approved})
	})

	api.GET("/insights", insightsCache.Middleware(appMetrics), func(c *gin.Context) {
		minScore := 60.0
		if scoreStr := c.Query("min_score"); scoreStr != "" {
			if s, err := strconv.ParseFloat(scoreStr, 64); err == nil && s >= 0 && s <= 100 {
				minScore = s
			}
		}

		pending := 0
		if pendingStr := c.Query("pending"); pendingStr != "" {
			if p, err := strconv.Atoi(pendingStr); err == nil && p >= 0 {
				pending = p
			}
		}

		event := c.DefaultQuery("event", "default")

		response, err := svc.Insights(event, minScore, pending)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, response)
	})

	return r
}

// configFromQuery builds a partial match config from upload query overrides.
// Returns nil when nothing was overridden so defaults apply wholesale.
func configFromQuery(c *gin.Context) *types.MatchConfig {
	var cfg types.MatchConfig
	overridden := false

	if v := c.Query("max_iterations"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
			overridden = true
		}
	}
	if v := c.Query("min_participants"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinParticipantsPerIteration = n
			overridden = true
		}
	}
	if v := c.Query("log_level"); v != "" {
		switch v {
		case "silent":
			cfg.LogLevel = types.LogSilent
			overridden = true
		case "summary":
			cfg.LogLevel = types.LogSummary
			overridden = true
		case "detailed":
			cfg.LogLevel = types.LogDetailed
			overridden = true
		}
	}

	if !overridden {
		return nil
	}
	return &cfg
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
