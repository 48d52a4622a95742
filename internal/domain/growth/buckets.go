package growth

import (
	"fmt"
	"math"
	"sort"

	"github.com/schoolpulse/growth-analytics-hub/internal/domain/assessment"
)

// ═══════════════════════════════════════════════════════════════════════════
// Growth distribution buckets
// ═══════════════════════════════════════════════════════════════════════════

// DistributionBucket is one fixed range of the growth histogram. Bounds are
// half-open [Lower, Upper) except the unbounded tails; they are kept out of
// the JSON payload (±Inf does not serialize), consumers render RangeLabel.
type DistributionBucket struct {
	// RangeLabel is the display label, e.g. "0 to 5".
	RangeLabel string `json:"range"`

	// Lower is the inclusive lower bound (-Inf for the first bucket).
	Lower float64 `json:"-"`

	// Upper is the exclusive upper bound (+Inf for the last bucket).
	Upper float64 `json:"-"`

	// Count is the number of observations in the bucket.
	Count int `json:"count"`

	// Percentage is the share of the total, rounded to one decimal.
	// Per-bucket rounding means the percentages can drift slightly from a
	// perfect 100.0 total; that artifact is documented and tested for.
	Percentage float64 `json:"percentage"`
}

// Contains reports whether v falls in the bucket.
func (b DistributionBucket) Contains(v float64) bool {
	return v >= b.Lower && v < b.Upper
}

// growthBucketTemplate returns the six fixed, ordered growth buckets. The
// last bucket's lower bound is 15 inclusive so every value lands in exactly
// one bucket.
func growthBucketTemplate() []DistributionBucket {
	return []DistributionBucket{
		{RangeLabel: "< -5", Lower: math.Inf(-1), Upper: -5},
		{RangeLabel: "-5 to 0", Lower: -5, Upper: 0},
		{RangeLabel: "0 to 5", Lower: 0, Upper: 5},
		{RangeLabel: "5 to 10", Lower: 5, Upper: 10},
		{RangeLabel: "10 to 15", Lower: 10, Upper: 15},
		{RangeLabel: "> 15", Lower: 15, Upper: math.Inf(1)},
	}
}

// GrowthBucketWidth is the width of the bounded growth buckets, used to
// scale the normal overlay to histogram area.
const GrowthBucketWidth = 5.0

// BucketGrowth assigns every observation's average growth to exactly one of
// the six fixed buckets and computes one-decimal percentages of the total.
func BucketGrowth(observations []Observation) []DistributionBucket {
	buckets := growthBucketTemplate()
	total := len(observations)

	for _, obs := range observations {
		for i := range buckets {
			if buckets[i].Contains(obs.AverageGrowth) {
				buckets[i].Count++
				break
			}
		}
	}

	if total > 0 {
		for i := range buckets {
			pct := float64(buckets[i].Count) / float64(total) * 100
			buckets[i].Percentage = math.Round(pct*10) / 10
		}
	}

	return buckets
}

// ═══════════════════════════════════════════════════════════════════════════
// Ability heatmap
// ═══════════════════════════════════════════════════════════════════════════

// HeatmapRow is one grade's ability histogram.
type HeatmapRow struct {
	Grade  assessment.Grade `json:"grade"`
	Counts []int            `json:"counts"`
}

// AbilityHeatmap is a 2-D histogram over (grade, ability-score range).
type AbilityHeatmap struct {
	// BucketWidth is the width of each score bucket.
	BucketWidth float64 `json:"bucket_width"`

	// MinBound and MaxBound bound the covered score range.
	MinBound float64 `json:"min_bound"`
	MaxBound float64 `json:"max_bound"`

	// BucketLabels lists the range labels in bucket order.
	BucketLabels []string `json:"bucket_labels"`

	// Rows hold per-grade counts, ordered by grade.
	Rows []HeatmapRow `json:"rows"`

	// TotalCount is the number of scores placed in the grid.
	TotalCount int `json:"total_count"`
}

// BucketAbility builds a per-grade histogram of ability scores between
// minBound and maxBound at the given bucket width. Every bucket is
// closed-open except the top bucket, which is closed on both ends: scores
// clustering at the ceiling must not be silently dropped. Scores outside
// the configured bounds are excluded.
func BucketAbility(scores map[assessment.Grade][]float64, bucketWidth, minBound, maxBound float64) AbilityHeatmap {
	heatmap := AbilityHeatmap{
		BucketWidth: bucketWidth,
		MinBound:    minBound,
		MaxBound:    maxBound,
	}
	if bucketWidth <= 0 || maxBound <= minBound {
		return heatmap
	}

	numBuckets := int(math.Ceil((maxBound - minBound) / bucketWidth))
	heatmap.BucketLabels = make([]string, numBuckets)
	for i := 0; i < numBuckets; i++ {
		lower := minBound + float64(i)*bucketWidth
		upper := math.Min(lower+bucketWidth, maxBound)
		heatmap.BucketLabels[i] = fmt.Sprintf("%g-%g", lower, upper)
	}

	grades := make([]assessment.Grade, 0, len(scores))
	for grade := range scores {
		grades = append(grades, grade)
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i] < grades[j] })

	for _, grade := range grades {
		row := HeatmapRow{Grade: grade, Counts: make([]int, numBuckets)}
		for _, score := range scores[grade] {
			idx, ok := abilityBucketIndex(score, bucketWidth, minBound, maxBound, numBuckets)
			if !ok {
				continue
			}
			row.Counts[idx]++
			heatmap.TotalCount++
		}
		heatmap.Rows = append(heatmap.Rows, row)
	}

	return heatmap
}

// abilityBucketIndex places a score in its bucket. The top bucket includes
// maxBound; everything else is closed-open.
func abilityBucketIndex(score, bucketWidth, minBound, maxBound float64, numBuckets int) (int, bool) {
	if score < minBound || score > maxBound {
		return 0, false
	}
	idx := int((score - minBound) / bucketWidth)
	if idx >= numBuckets {
		idx = numBuckets - 1
	}
	return idx, true
}
