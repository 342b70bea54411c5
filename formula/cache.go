package formula

import "time"

// FormulaCache caches the active formula list so a payroll computation
// pass does not hit the database per evaluation. Implementations must be
// safe for concurrent use.
type FormulaCache interface {
	// Get returns cached formulas, nil on miss or expiry.
	Get() []*Formula

	// Set stores formulas in the cache.
	Set(formulas []*Formula)

	// Invalidate clears the cache, forcing a refresh on next Get.
	Invalidate()

	// IsValid reports whether the cache holds usable data.
	IsValid() bool
}

// CacheConfig controls cache expiry.
type CacheConfig struct {
	// TTL of cached entries; 0 means manual invalidation only.
	TTL time.Duration
}

// DefaultCacheConfig invalidates on mutation only. Formulas change when an
// administrator edits them, not on a schedule.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
