package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"ist_tvl/internal/domain/entity"
	"ist_tvl/internal/pkg/logger"

	"github.com/stretchr/testify/require"
)

var testLogger = logger.Nop()

// fakeStorage serves nodes from memory. Unknown queries answer ErrNotFound.
type fakeStorage struct {
	mu      sync.Mutex
	nodes   map[string]entity.StorageNode
	errs    map[string]error
	queries map[string]int
	total   atomic.Int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		nodes:   map[string]entity.StorageNode{},
		errs:    map[string]error{},
		queries: map[string]int{},
	}
}

func (f *fakeStorage) setData(path entity.StoragePath, value string) *fakeStorage {
	f.nodes[entity.DataQuery(path).CacheKey()] = entity.StorageNode{Value: value}
	return f
}

func (f *fakeStorage) setChildren(path entity.StoragePath, children ...string) *fakeStorage {
	if children == nil {
		children = []string{}
	}
	f.nodes[entity.ChildrenQuery(path).CacheKey()] = entity.StorageNode{Children: children}
	return f
}

func (f *fakeStorage) fail(q entity.StorageQuery, err error) *fakeStorage {
	f.errs[q.CacheKey()] = err
	return f
}

func (f *fakeStorage) Query(ctx context.Context, q entity.StorageQuery) (entity.StorageNode, error) {
	if err := ctx.Err(); err != nil {
		return entity.StorageNode{}, err
	}
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	key := q.CacheKey()
	f.queries[key]++
	if err, ok := f.errs[key]; ok {
		return entity.StorageNode{}, err
	}
	node, ok := f.nodes[key]
	if !ok {
		return entity.StorageNode{}, fmt.Errorf("%s: %w", q.Path, entity.ErrNotFound)
	}
	return node, nil
}

func (f *fakeStorage) Stats() entity.StorageStats {
	return entity.StorageStats{Calls: f.total.Load()}
}

func (f *fakeStorage) count(q entity.StorageQuery) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[q.CacheKey()]
}

// cell marshals bodies into a vstorage stream cell the way the chain publishes them.
func cell(t *testing.T, bodies ...string) string {
	t.Helper()
	values := make([]string, len(bodies))
	for i, body := range bodies {
		env, err := json.Marshal(map[string]any{"body": "#" + body, "slots": []string{}})
		require.NoError(t, err)
		values[i] = string(env)
	}
	out, err := json.Marshal(map[string]any{"blockHeight": "42", "values": values})
	require.NoError(t, err)
	return string(out)
}

// fakeOracle returns fixed prices and counts calls.
type fakeOracle struct {
	prices map[string]float64
	err    error
	calls  atomic.Int64
	gate   chan struct{}
}

func (o *fakeOracle) GetUSDPrices(ctx context.Context, feedIDs []string) (map[string]float64, error) {
	o.calls.Add(1)
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if o.err != nil {
		return nil, o.err
	}
	out := map[string]float64{}
	for _, id := range feedIDs {
		if p, ok := o.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

// recordingLogger keeps every record; safe for concurrent use.
type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) at(level string) []logRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logRecord
	for _, r := range l.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}
