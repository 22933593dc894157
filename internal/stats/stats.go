// Package stats implements the score statistics used across analytics,
// exports and background reports. All functions are pure; callers load the
// score rows and interpret the results.
package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics for a set of scores.
type Summary struct {
	Count     int
	Mean      float64
	Median    float64
	Min       float64
	Max       float64
	StdDev    float64
	Quantiles map[string]float64
}

// Bands holds pass/good/excellent counts and rates for a set of scores.
// Thresholds are percentages of the exam's total score: pass at 60%, good
// between 80% and 90%, excellent at 90% and above.
type Bands struct {
	PassCount      int
	PassRate       float64
	GoodCount      int
	GoodRate       float64
	ExcellentCount int
	ExcellentRate  float64
}

// Bucket is one segment of a score distribution.
type Bucket struct {
	Label string
	Count int
}

// LevelBands is the four-band split used by the level distribution analysis.
type LevelBands struct {
	Excellent int
	Good      int
	Pass      int
	Fail      int
}

// ScoreEntry is one student's score for a single subject.
type ScoreEntry struct {
	StudentID string
	Score     float64
}

// TotalResult is one student's summed result within a cohort ranking.
type TotalResult struct {
	StudentID string
	Total     float64
	Count     int
	Rank      int
}

// CompetitionRanks assigns competition ("min") ranks to the given values:
// ties share a rank and the next distinct value's rank is the count of
// strictly greater values plus one. The result is index-aligned with values.
func CompetitionRanks(values []float64) []int {
	ranks := make([]int, len(values))
	for i, v := range values {
		greater := 0
		for _, other := range values {
			if other > v {
				greater++
			}
		}
		ranks[i] = greater + 1
	}
	return ranks
}

// Describe computes descriptive statistics with 25/50/75/90 quantiles.
// The standard deviation is the sample deviation; a single value yields 0.
func Describe(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{Quantiles: map[string]float64{}}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	if n > 1 {
		for _, v := range sorted {
			d := v - mean
			variance += d * d
		}
		variance /= float64(n - 1)
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: Quantile(sorted, 0.5),
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: math.Sqrt(variance),
		Quantiles: map[string]float64{
			"25": Quantile(sorted, 0.25),
			"50": Quantile(sorted, 0.5),
			"75": Quantile(sorted, 0.75),
			"90": Quantile(sorted, 0.9),
		},
	}
}

// Quantile returns the q-th quantile of an ascending-sorted slice using
// linear interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= n {
		return sorted[n-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// RateBands counts pass/good/excellent scores relative to the exam's total
// score. A zero or negative total score yields zero counts and rates.
func RateBands(values []float64, totalScore float64) Bands {
	b := Bands{}
	if totalScore <= 0 || len(values) == 0 {
		return b
	}

	for _, v := range values {
		pct := v / totalScore * 100
		if pct >= 60 {
			b.PassCount++
		}
		if pct >= 80 && pct < 90 {
			b.GoodCount++
		}
		if pct >= 90 {
			b.ExcellentCount++
		}
	}

	n := float64(len(values))
	b.PassRate = float64(b.PassCount) / n * 100
	b.GoodRate = float64(b.GoodCount) / n * 100
	b.ExcellentRate = float64(b.ExcellentCount) / n * 100
	return b
}

// DistributionLabels are the bucket labels, in order, as percentages of the
// exam's total score.
var DistributionLabels = []string{"<60", "60-69", "70-79", "80-89", "90-100"}

// Distribution splits scores into five buckets by percentage of the exam's
// total score. Every scored value lands in exactly one bucket.
func Distribution(values []float64, totalScore float64) []Bucket {
	buckets := make([]Bucket, len(DistributionLabels))
	for i, label := range DistributionLabels {
		buckets[i] = Bucket{Label: label}
	}
	if totalScore <= 0 {
		return buckets
	}

	for _, v := range values {
		pct := v / totalScore * 100
		switch {
		case pct < 60:
			buckets[0].Count++
		case pct < 70:
			buckets[1].Count++
		case pct < 80:
			buckets[2].Count++
		case pct < 90:
			buckets[3].Count++
		default:
			buckets[4].Count++
		}
	}
	return buckets
}

// TotalRanking sums each student's available subject scores (missing
// subjects are excluded, not counted as zero) and assigns competition ranks
// by total. The result is sorted by rank, then student ID for stable output.
func TotalRanking(entries []ScoreEntry) []TotalResult {
	totals := make(map[string]*TotalResult)
	order := make([]string, 0)
	for _, e := range entries {
		t, ok := totals[e.StudentID]
		if !ok {
			t = &TotalResult{StudentID: e.StudentID}
			totals[e.StudentID] = t
			order = append(order, e.StudentID)
		}
		t.Total += e.Score
		t.Count++
	}

	results := make([]TotalResult, 0, len(order))
	values := make([]float64, 0, len(order))
	for _, id := range order {
		results = append(results, *totals[id])
		values = append(values, totals[id].Total)
	}

	ranks := CompetitionRanks(values)
	for i := range results {
		results[i].Rank = ranks[i]
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].StudentID < results[j].StudentID
	})
	return results
}

// Percentile converts a competition rank into a percentile: rank 1 of 100 is
// the 99th percentile. A non-positive cohort size yields 0.
func Percentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 - float64(rank)*100/float64(total)
}

// LevelDistribution splits normalized per-student averages (percent of
// maximum) into four bands: excellent at 80 and above, good 70-79, pass
// 60-69, fail below 60.
func LevelDistribution(normalizedAverages []float64) LevelBands {
	var b LevelBands
	for _, avg := range normalizedAverages {
		switch {
		case avg >= 80:
			b.Excellent++
		case avg >= 70:
			b.Good++
		case avg >= 60:
			b.Pass++
		default:
			b.Fail++
		}
	}
	return b
}

// ProgressIndex weighs the band-count change rates between two snapshots:
// 0.4 excellent, 0.3 good, 0.2 pass, 0.1 fail. A shrinking fail band counts
// as improvement, so its change rate enters with inverted sign.
func ProgressIndex(current, previous LevelBands) float64 {
	excellent := bandChangeRate(current.Excellent, previous.Excellent)
	good := bandChangeRate(current.Good, previous.Good)
	pass := bandChangeRate(current.Pass, previous.Pass)
	fail := -bandChangeRate(current.Fail, previous.Fail)
	return 0.4*excellent + 0.3*good + 0.2*pass + 0.1*fail
}

// bandChangeRate is the percentage change of a band count. With no previous
// members the rate is 100 for any growth and 0 otherwise.
func bandChangeRate(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
