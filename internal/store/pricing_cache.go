package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/pricing"
)

// CacheTableName labels pricing tables loaded from the cache
const CacheTableName = "cache"

// PricingCacheTTL is how long a cached table stays valid
const PricingCacheTTL = 7 * 24 * time.Hour

// PricingCacheStatus describes the cached table without loading it
type PricingCacheStatus struct {
	Present bool
	Version string
	SavedAt time.Time
	Models  int
	Valid   bool
}

// SavePricing replaces the cached table with the given rates
func (db *DB) SavePricing(version string, rates map[string]model.ModelPricing, at time.Time) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to encode pricing cache: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO pricing_cache (id, version, saved_at, data) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			saved_at = excluded.saved_at,
			data = excluded.data
	`, version, at.UTC(), string(data))
	return err
}

func (db *DB) readPricing() (version string, savedAt time.Time, data string, ok bool, err error) {
	err = db.QueryRow(`SELECT version, saved_at, data FROM pricing_cache WHERE id = 1`).Scan(&version, &savedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, "", false, nil
	}
	if err != nil {
		return "", time.Time{}, "", false, err
	}
	return version, savedAt, data, true, nil
}

func cacheValid(version string, savedAt, now time.Time) bool {
	return version == pricing.TableVersion && now.Sub(savedAt) < PricingCacheTTL
}

// LoadPricing returns the cached table, or nil when nothing is cached, the
// entry is older than PricingCacheTTL or it was written for another table
// version
func (db *DB) LoadPricing(now time.Time) (*pricing.Table, error) {
	version, savedAt, data, ok, err := db.readPricing()
	if err != nil || !ok {
		return nil, err
	}
	if !cacheValid(version, savedAt, now) {
		return nil, nil
	}

	rates := make(map[string]model.ModelPricing)
	if err := json.Unmarshal([]byte(data), &rates); err != nil {
		return nil, fmt.Errorf("failed to decode pricing cache: %w", err)
	}
	return pricing.NewTable(CacheTableName, rates, nil), nil
}

// PricingStatus reports on the cached table
func (db *DB) PricingStatus(now time.Time) (PricingCacheStatus, error) {
	version, savedAt, data, ok, err := db.readPricing()
	if err != nil || !ok {
		return PricingCacheStatus{}, err
	}
	rates := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(data), &rates); err != nil {
		return PricingCacheStatus{}, fmt.Errorf("failed to decode pricing cache: %w", err)
	}
	return PricingCacheStatus{
		Present: true,
		Version: version,
		SavedAt: savedAt,
		Models:  len(rates),
		Valid:   cacheValid(version, savedAt, now),
	}, nil
}

// ClearPricing drops the cached table
func (db *DB) ClearPricing() error {
	_, err := db.Exec(`DELETE FROM pricing_cache`)
	return err
}
