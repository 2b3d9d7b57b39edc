package api

import (
    "encoding/json"
    "errors"
    "strconv"
    "time"

    models "CredPulse/internal/domain/models"
    domrepo "CredPulse/internal/domain/repository"
    domsvc "CredPulse/internal/domain/service"
    icache "CredPulse/internal/service/cache"
    "CredPulse/internal/service/metrics"
    "CredPulse/internal/service/ratelimit"
    "CredPulse/internal/usecase"
    xhttp "CredPulse/pkg/http"
    xlogger "CredPulse/pkg/logger"

    "github.com/labstack/echo/v4"
)

const (
	latestScoreCacheTTL = 30 * time.Second
	dashboardCacheTTL   = time.Minute
)

// ScoresEchoHandler serves the read API: entities, scores, explanations,
// model metrics, and the dashboard aggregation.
type ScoresEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.ScoresQuery
	scorer domsvc.Scorer
	cache  icache.BytesCache
	rl     *ratelimit.Limiter

	latestTTL    time.Duration
	dashboardTTL time.Duration
}

func NewScoresEchoHandler(logger *xlogger.Logger, query *usecase.ScoresQuery, scorer domsvc.Scorer) *ScoresEchoHandler {
	metrics.Register()
	return &ScoresEchoHandler{
		logger:       logger,
		query:        query,
		scorer:       scorer,
		rl:           ratelimit.New(),
		latestTTL:    latestScoreCacheTTL,
		dashboardTTL: dashboardCacheTTL,
	}
}

// SetCache enables response caching for the latest-score and dashboard
// endpoints.
func (h *ScoresEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCacheTTLs overrides the response cache lifetimes.
func (h *ScoresEchoHandler) SetCacheTTLs(latest, dashboard time.Duration) {
	if latest > 0 {
		h.latestTTL = latest
	}
	if dashboard > 0 {
		h.dashboardTTL = dashboard
	}
}

func (h *ScoresEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api/v1")
	g.GET("/entities", h.Entities)
	g.GET("/entities/:id/score", h.LatestScore)
	g.GET("/entities/:id/scores", h.History)
	g.GET("/entities/:id/explanation", h.Explanation)
	g.GET("/models/metrics", h.ModelMetrics)
	g.GET("/dashboard", h.Dashboard)
}

type healthResponse struct {
	Status       string    `json:"status"`
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
}

func (h *ScoresEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, healthResponse{
		Status:       "healthy",
		ModelVersion: h.scorer.ActiveVersion(),
		Timestamp:    time.Now().UTC(),
	})
}

func (h *ScoresEchoHandler) Entities(c echo.Context) error {
	start := time.Now()
	endpoint := "entities"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":entities", 10, 5) {
		h.logger.Warn("scores.entities rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	res, err := h.query.Entities(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.entities error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoresEchoHandler) LatestScore(c echo.Context) error {
	start := time.Now()
	endpoint := "latest_score"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.EntityScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":score", 10, 5) {
		h.logger.Warn("scores.latest rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	cacheKey := "api:score:" + strconv.FormatInt(req.EntityID, 10)
	if b, ok := h.cached(endpoint, cacheKey); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}
	res, err := h.query.LatestScore(c.Request().Context(), req.EntityID)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no score for entity %d", req.EntityID))
		}
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.latest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(endpoint, cacheKey, res, h.latestTTL)
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoresEchoHandler) History(c echo.Context) error {
	start := time.Now()
	endpoint := "history"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ScoreHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":history", 5, 2) {
		h.logger.Warn("scores.history rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	res, err := h.query.History(c.Request().Context(), req.EntityID, req.Days)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoresEchoHandler) Explanation(c echo.Context) error {
	start := time.Now()
	endpoint := "explanation"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.EntityScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":explanation", 5, 2) {
		h.logger.Warn("scores.explanation rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	res, err := h.query.Explanation(c.Request().Context(), req.EntityID)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no score for entity %d", req.EntityID))
		}
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.explanation error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoresEchoHandler) ModelMetrics(c echo.Context) error {
	start := time.Now()
	endpoint := "model_metrics"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ModelMetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":metrics", 5, 2) {
		h.logger.Warn("scores.metrics rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	res, err := h.query.ModelMetrics(c.Request().Context(), req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.metrics error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ScoresEchoHandler) Dashboard(c echo.Context) error {
	start := time.Now()
	endpoint := "dashboard"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":dashboard", 3, 1) {
		h.logger.Warn("scores.dashboard rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	cacheKey := "api:dashboard"
	if b, ok := h.cached(endpoint, cacheKey); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}
	res, err := h.query.Dashboard(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("scores.dashboard error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(endpoint, cacheKey, res, h.dashboardTTL)
	return xhttp.SuccessResponse(c, res)
}

// cached returns the stored response payload for key, if present.
func (h *ScoresEchoHandler) cached(endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("scores cache_get_error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return nil, false
	}
	if ok {
		h.logger.Debug("scores cache_hit", xlogger.String("key", key))
	}
	return b, ok
}

// store caches the marshaled response payload so a hit replays the exact
// bytes a fresh render would produce.
func (h *ScoresEchoHandler) store(endpoint, key string, v interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("scores marshal_error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn("scores cache_set_error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
}
