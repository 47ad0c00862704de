// Package feedloader reads extra symbol to price-feed mappings from a
// directory of JSON files.
package feedloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ist_tvl/internal/app/port"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedEntry is one mapping row in a feed file.
type FeedEntry struct {
	Symbol string `json:"symbol"`
	FeedID string `json:"feedId"`
}

// FeedFileLoader loads every *.json file of a directory.
type FeedFileLoader struct {
	dir    string
	logger port.Logger
}

// NewFeedLoader creates a loader for dir.
func NewFeedLoader(dir string, logger port.Logger) *FeedFileLoader {
	return &FeedFileLoader{dir: dir, logger: logger}
}

// Load returns the merged mapping keyed by lowercased symbol. Files are read
// in name order and later files override earlier ones. Unreadable or malformed
// files are skipped with a warning; an unreadable directory is an error.
func (l *FeedFileLoader) Load() (map[string]string, error) {
	files, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed directory %s: %w", l.dir, err)
	}

	mapping := make(map[string]string)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}
		path := filepath.Join(l.dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("Failed to read feed file, skipping file.", "path", path, "error", err)
			continue
		}
		var entries []FeedEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			l.logger.Warn("Failed to unmarshal feed file, skipping file.", "path", path, "error", err)
			continue
		}

		loaded := 0
		for _, e := range entries {
			symbol := strings.ToLower(strings.TrimSpace(e.Symbol))
			feed := strings.TrimSpace(e.FeedID)
			if symbol == "" || feed == "" {
				l.logger.Warn("Feed entry with empty symbol or feed id, skipping entry.", "path", path, "symbol", e.Symbol)
				continue
			}
			mapping[symbol] = feed
			loaded++
		}
		l.logger.Info("Loaded price feed mappings from file", "file", file.Name(), "count", loaded)
	}
	return mapping, nil
}
