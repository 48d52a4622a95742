// Package cache implements the TTL result cache that fronts the expensive
// analytics aggregations. Two backends implement the same interface: an
// in-process map for single-instance deployments and Redis for shared
// deployments.
//
// The cache is an explicitly constructed, injectable dependency - there is
// no package-level instance. Tests inject a zero-TTL or pre-populated cache.
//
// There is deliberately no single-flight deduplication: concurrent misses
// for the same key may each run the full computation. That is wasted work,
// not incorrect results, and last write wins.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
)

// DefaultTTL is the lifetime of a cached aggregation result.
const DefaultTTL = 30 * time.Minute

var (
	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheSerialization is returned when a value cannot be
	// serialized or deserialized.
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

// ResultCache is the TTL key-value store fronting the analytics entry
// points. Get reports a miss for absent or expired entries; expired entries
// are evicted lazily by the read that discovers them, there is no
// background sweep. Implementations are safe for concurrent use.
type ResultCache interface {
	// Get loads the value at key into dest. Returns false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value at key with the cache's TTL.
	Set(ctx context.Context, key string, value any) error

	// Has reports whether key holds an unexpired entry.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// ClearByPrefix removes every entry whose key starts with prefix.
	// Roster and import subsystems invalidate this way after writes.
	ClearByPrefix(ctx context.Context, prefix string) error
}

// ═══════════════════════════════════════════════════════════════════════════
// Key builders
// ═══════════════════════════════════════════════════════════════════════════

// Key prefixes per aggregation. Separate prefixes keep filter combinations
// from colliding and let invalidation target one aggregation family.
const (
	// Namespace prefixes every key of this subsystem.
	Namespace = "growth:"

	PrefixPeriods      = Namespace + "periods:"
	PrefixDistribution = Namespace + "distribution:"
	PrefixScatter      = Namespace + "scatter:"
	PrefixHeatmap      = Namespace + "heatmap:"
)

// keySep joins key components. Components are controlled vocabulary (term
// labels, grades, course identifiers), none of which contain '|'.
const keySep = "|"

// PeriodsKey keys the term-discovery result.
func PeriodsKey() string {
	return PrefixPeriods + "all"
}

// filterSuffix encodes the shared filter components of a request key.
func filterSuffix(from, to string, minGrade, maxGrade assessment.Grade, course assessment.Course) string {
	courseKey := "all"
	if course != "" {
		courseKey = course.String()
	}
	return strings.Join([]string{
		from,
		to,
		fmt.Sprintf("g%d-%d", minGrade, maxGrade),
		courseKey,
	}, keySep)
}

// DistributionKey keys a growth-distribution result by its full filter.
func DistributionKey(from, to string, minGrade, maxGrade assessment.Grade, course assessment.Course) string {
	return PrefixDistribution + filterSuffix(from, to, minGrade, maxGrade, course)
}

// ScatterKey keys a scatter/regression result by its full filter.
func ScatterKey(from, to string, minGrade, maxGrade assessment.Grade, course assessment.Course) string {
	return PrefixScatter + filterSuffix(from, to, minGrade, maxGrade, course)
}

// HeatmapKey keys an ability-heatmap result by term and filter.
func HeatmapKey(term string, minGrade, maxGrade assessment.Grade, course assessment.Course) string {
	courseKey := "all"
	if course != "" {
		courseKey = course.String()
	}
	return PrefixHeatmap + strings.Join([]string{
		term,
		fmt.Sprintf("g%d-%d", minGrade, maxGrade),
		courseKey,
	}, keySep)
}
