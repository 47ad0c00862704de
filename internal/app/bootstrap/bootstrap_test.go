package bootstrap

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ist_tvl/internal/config"
	"ist_tvl/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeNode answers abci_query for the reserve path only.
func fakeNode(t *testing.T) *httptest.Server {
	t.Helper()
	reserve := `{"blockHeight":"1","values":["{\"body\":\"#{\\\"allocations\\\":{\\\"Fee\\\":{\\\"brand\\\":\\\"$0.Alleged: IST brand\\\",\\\"value\\\":\\\"+2500000\\\"}}}\",\"slots\":[]}"]}`
	node := `{"value":` + quote(reserve) + `}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		value := ""
		if strings.Contains(string(body), "/custom/vstorage/data/published.reserve.metrics") {
			value = base64.StdEncoding.EncodeToString([]byte(node))
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"response":{"code":0,"value":"` + value + `"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func TestNewPipeline_EndToEndOverHTTP(t *testing.T) {
	srv := fakeNode(t)
	cfg := config.Default()
	cfg.VStorage.RPCURL = srv.URL
	cfg.VStorage.MinCallDelayMillis = 0
	cfg.Pipeline.Categories = []string{"reserve"}

	p, err := NewPipeline(context.Background(), cfg, zap.NewNop(), logger.Nop())
	require.NoError(t, err)
	defer p.Close()

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, report.Total, 1e-12)
	assert.Equal(t, 2.5, report.Balances["agoric"])
}

func TestNewTransport(t *testing.T) {
	for _, kind := range []string{config.TransportHTTP, config.TransportRPC} {
		tr, closeFn, err := NewTransport(context.Background(), config.VStorageConfig{RPCURL: "http://127.0.0.1:26657", Transport: kind, RequestTimeoutMillis: 100}, zap.NewNop())
		require.NoError(t, err, kind)
		assert.NotNil(t, tr)
		closeFn()
	}
	_, _, err := NewTransport(context.Background(), config.VStorageConfig{Transport: "grpc"}, zap.NewNop())
	assert.Error(t, err)
}

func TestWithFeedFiles_OverridesMappingWithoutMutatingConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feeds.json"),
		[]byte(`[{"symbol":"stATOM","feedId":"custom-statom"},{"symbol":"usdc","feedId":"usd-coin"}]`), 0o600))

	cfg := config.Default()
	cfg.CoinGecko.MappingDir = dir

	out, err := withFeedFiles(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "custom-statom", out.CoinGecko.SymbolMapping["statom"])
	assert.Equal(t, "usd-coin", out.CoinGecko.SymbolMapping["usdc"])
	assert.Equal(t, "stride-staked-tia", out.CoinGecko.SymbolMapping["sttia"])
	assert.Equal(t, "stride-staked-atom", cfg.CoinGecko.SymbolMapping["statom"])
}

func TestNewPipeline_MissingFeedDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.CoinGecko.MappingDir = filepath.Join(t.TempDir(), "absent")
	_, err := NewPipeline(context.Background(), cfg, zap.NewNop(), logger.Nop())
	assert.Error(t, err)
}
