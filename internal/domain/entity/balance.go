package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is one component of the TVL figure.
type Category string

const (
	// CategoryReserve is the reserve's IST fee allocation.
	CategoryReserve Category = "reserve"
	// CategoryPSM is the summed PSM pool balances.
	CategoryPSM Category = "psm"
	// CategoryVault is the USD value of collateral locked in vaults.
	CategoryVault Category = "vault"
	// CategorySupply is the total IST bank supply.
	CategorySupply Category = "supply"
)

// AllCategories lists every known category in evaluation order.
var AllCategories = []Category{CategoryReserve, CategoryPSM, CategoryVault, CategorySupply}

// ParseCategory validates a configured category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown TVL category %q", s)
}

// AggregateBalance maps an asset identifier to its summed amount.
// The pipeline produces a single entry: coin id -> total.
type AggregateBalance map[string]float64

// Add accumulates amount under id.
func (b AggregateBalance) Add(id string, amount float64) {
	b[id] += amount
}

// CollateralSubtotal is the vault contribution of one collateral type.
type CollateralSubtotal struct {
	Collateral   CollateralType `json:"collateral"`
	FeedID       string         `json:"feedId"`
	RawLocked    string         `json:"rawLocked"`
	DecimalScale string         `json:"decimalScale"`
	PriceUSD     float64        `json:"priceUsd"`
	PriceFound   bool           `json:"priceFound"`
	Value        float64        `json:"value"`
	VaultCount   int            `json:"vaultCount"`
}

// RunStats counts outbound work done by one pipeline run.
type RunStats struct {
	StorageCalls    int64 `json:"storageCalls"`
	StorageHits     int64 `json:"storageCacheHits"`
	StorageNotFound int64 `json:"storageNotFound"`
	OracleCalls     int64 `json:"oracleCalls"`
	VaultsRead      int   `json:"vaultsRead"`
	PSMInstruments  int   `json:"psmInstruments"`
}

// TVLReport is the full result of one pipeline run.
type TVLReport struct {
	RunID      uuid.UUID            `json:"runId"`
	Balances   AggregateBalance     `json:"balances"`
	Total      float64              `json:"total"`
	Categories []Category           `json:"categories"`
	Subtotals  map[Category]float64 `json:"subtotals"`
	Collateral []CollateralSubtotal `json:"collateral,omitempty"`
	Warnings   []Warning            `json:"warnings,omitempty"`
	Stats      RunStats             `json:"stats"`
	StartedAt  time.Time            `json:"startedAt"`
	Duration   time.Duration        `json:"duration"`
}
