package restapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ist_tvl/internal/app/port"
	"ist_tvl/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const reportCacheKey = "tvl"

// APITVLResponse определяет структуру ответа для эндпоинта TVL.
type APITVLResponse struct {
	Data          *entity.TVLReport `json:"data,omitempty"`
	Cached        bool              `json:"cached"`
	Error         string            `json:"error,omitempty"`
	StatusMessage string            `json:"status_message"`
}

// TVLHandler обрабатывает HTTP запросы, связанные с TVL.
type TVLHandler struct {
	service    port.TVLService
	results    *cache.Cache
	runs       singleflight.Group
	runTimeout time.Duration
	logger     port.Logger
}

// NewTVLHandler creates a handler that serves the last report for ttl before running the pipeline again.
func NewTVLHandler(svc port.TVLService, ttl, runTimeout time.Duration, logger port.Logger) *TVLHandler {
	return &TVLHandler{
		service:    svc,
		results:    cache.New(ttl, 2*ttl),
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// report returns the cached report or runs the pipeline once for all concurrent callers.
func (h *TVLHandler) report(ctx context.Context, refresh bool) (*entity.TVLReport, bool, error) {
	if !refresh {
		if v, ok := h.results.Get(reportCacheKey); ok {
			return v.(*entity.TVLReport), true, nil
		}
	}
	v, err, _ := h.runs.Do(reportCacheKey, func() (any, error) {
		// Detached from the request context; concurrent callers share this run.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.runTimeout)
		defer cancel()
		report, err := h.service.Run(runCtx)
		if err != nil {
			return nil, err
		}
		h.results.SetDefault(reportCacheKey, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*entity.TVLReport), false, nil
}

func refreshRequested(c *gin.Context) bool {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	return refresh
}

// GetTVLHandler обрабатывает запрос на получение полного отчета TVL.
func (h *TVLHandler) GetTVLHandler(c *gin.Context) {
	report, cached, err := h.report(c.Request.Context(), refreshRequested(c))
	if err != nil {
		h.logger.Error("TVL run failed", "error", err)
		c.JSON(http.StatusBadGateway, APITVLResponse{
			Error:         err.Error(),
			StatusMessage: "Failed to compute TVL.",
		})
		return
	}

	response := APITVLResponse{Data: report, Cached: cached}
	if len(report.Warnings) > 0 {
		response.StatusMessage = "TVL computed. Some branches reported warnings."
	} else {
		response.StatusMessage = "TVL computed successfully."
	}
	c.JSON(http.StatusOK, response)
}

// GetBalancesHandler returns only the balance map, e.g. {"agoric": 1234.5}.
func (h *TVLHandler) GetBalancesHandler(c *gin.Context) {
	report, _, err := h.report(c.Request.Context(), refreshRequested(c))
	if err != nil {
		h.logger.Error("TVL run failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report.Balances)
}

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
