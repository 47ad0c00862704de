package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeTVLService struct {
	runs   atomic.Int64
	err    error
	report entity.TVLReport
}

func (s *fakeTVLService) Run(context.Context) (*entity.TVLReport, error) {
	s.runs.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	r := s.report
	r.RunID = uuid.New()
	return &r, nil
}

func newTestRouter(svc *fakeTVLService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTVLHandler(svc, time.Minute, time.Second, logger.Nop())
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ist_tvl_test_total", Help: "test"}))
	return SetupRouter(h, RouterOptions{Gatherer: reg})
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetTVLHandler_CachesReport(t *testing.T) {
	svc := &fakeTVLService{report: entity.TVLReport{
		Balances: entity.AggregateBalance{"agoric": 5.00005},
		Total:    5.00005,
	}}
	r := newTestRouter(svc)

	w := get(t, r, "/api/v1/tvl")
	require.Equal(t, http.StatusOK, w.Code)
	var first APITVLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.NotNil(t, first.Data)
	assert.False(t, first.Cached)
	assert.Equal(t, 5.00005, first.Data.Total)

	w = get(t, r, "/api/v1/tvl")
	var second APITVLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data.RunID, second.Data.RunID)
	assert.Equal(t, int64(1), svc.runs.Load())

	w = get(t, r, "/api/v1/tvl?refresh=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), svc.runs.Load())
}

func TestGetBalancesHandler(t *testing.T) {
	svc := &fakeTVLService{report: entity.TVLReport{Balances: entity.AggregateBalance{"agoric": 12.5}}}
	w := get(t, newTestRouter(svc), "/api/v1/tvl/balances")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"agoric":12.5}`, w.Body.String())
}

func TestGetTVLHandler_RunFailure(t *testing.T) {
	svc := &fakeTVLService{err: errors.New("all TVL categories failed")}
	r := newTestRouter(svc)

	w := get(t, r, "/api/v1/tvl")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp APITVLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Data)
	assert.Contains(t, resp.Error, "categories failed")

	// Failures are not cached.
	_ = get(t, r, "/api/v1/tvl")
	assert.Equal(t, int64(2), svc.runs.Load())
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeTVLService{})

	w := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ist_tvl_test_total")
}
