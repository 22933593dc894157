package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompetitionRanksWithTies(t *testing.T) {
	ranks := CompetitionRanks([]float64{90, 90, 80, 70})
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
}

func TestCompetitionRanksSingleValue(t *testing.T) {
	assert.Equal(t, []int{1}, CompetitionRanks([]float64{55}))
}

func TestCompetitionRanksEmpty(t *testing.T) {
	assert.Empty(t, CompetitionRanks(nil))
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{90, 85, 80, 75})

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 82.5, s.Mean, 1e-9)
	assert.InDelta(t, 82.5, s.Median, 1e-9)
	assert.InDelta(t, 75, s.Min, 1e-9)
	assert.InDelta(t, 90, s.Max, 1e-9)
	assert.InDelta(t, 6.454972243679028, s.StdDev, 1e-9)
	assert.InDelta(t, 78.75, s.Quantiles["25"], 1e-9)
	assert.InDelta(t, 86.25, s.Quantiles["75"], 1e-9)
	assert.InDelta(t, 88.5, s.Quantiles["90"], 1e-9)
}

func TestDescribeSingleValue(t *testing.T) {
	s := Describe([]float64{70})

	assert.Equal(t, 1, s.Count)
	assert.InDelta(t, 70, s.Mean, 1e-9)
	assert.InDelta(t, 70, s.Median, 1e-9)
	assert.Zero(t, s.StdDev)
}

func TestDescribeEmpty(t *testing.T) {
	s := Describe(nil)
	assert.Zero(t, s.Count)
	assert.Empty(t, s.Quantiles)
}

func TestRateBands(t *testing.T) {
	// 95 excellent, 85 good, 65 pass only, 50 fail.
	b := RateBands([]float64{95, 85, 65, 50}, 100)

	assert.Equal(t, 3, b.PassCount)
	assert.InDelta(t, 75, b.PassRate, 1e-9)
	assert.Equal(t, 1, b.GoodCount)
	assert.InDelta(t, 25, b.GoodRate, 1e-9)
	assert.Equal(t, 1, b.ExcellentCount)
	assert.InDelta(t, 25, b.ExcellentRate, 1e-9)
}

func TestRateBandsNormalizedByTotalScore(t *testing.T) {
	// 120/150 = 80% counts as good, not excellent; 135/150 = 90% excellent.
	b := RateBands([]float64{120, 135, 80}, 150)

	assert.Equal(t, 2, b.PassCount)
	assert.Equal(t, 1, b.GoodCount)
	assert.Equal(t, 1, b.ExcellentCount)
}

func TestRateBandsZeroTotalScore(t *testing.T) {
	b := RateBands([]float64{50}, 0)
	assert.Zero(t, b.PassCount)
	assert.Zero(t, b.PassRate)
}

func TestDistributionPartitionsPopulation(t *testing.T) {
	values := []float64{30, 59.9, 60, 69.9, 70, 79.9, 80, 89.9, 90, 100}
	buckets := Distribution(values, 100)

	require.Len(t, buckets, 5)
	counts := 0
	for _, b := range buckets {
		counts += b.Count
	}
	assert.Equal(t, len(values), counts)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 2, buckets[1].Count)
	assert.Equal(t, 2, buckets[2].Count)
	assert.Equal(t, 2, buckets[3].Count)
	assert.Equal(t, 2, buckets[4].Count)
}

func TestDistributionNormalizedByTotalScore(t *testing.T) {
	// 90/150 = 60% lands in the second bucket, not the last.
	buckets := Distribution([]float64{90}, 150)
	assert.Equal(t, 1, buckets[1].Count)
	assert.Zero(t, buckets[4].Count)
}

func TestTotalRankingExcludesMissingSubjects(t *testing.T) {
	entries := []ScoreEntry{
		{StudentID: "a", Score: 90},
		{StudentID: "a", Score: 80},
		{StudentID: "b", Score: 95},
		{StudentID: "c", Score: 90},
		{StudentID: "c", Score: 80},
	}

	results := TotalRanking(entries)
	require.Len(t, results, 3)

	byID := map[string]TotalResult{}
	for _, r := range results {
		byID[r.StudentID] = r
	}

	// a and c tie on 170 with two subjects each; b has one subject and 95.
	assert.Equal(t, 1, byID["a"].Rank)
	assert.Equal(t, 1, byID["c"].Rank)
	assert.Equal(t, 3, byID["b"].Rank)
	assert.Equal(t, 2, byID["a"].Count)
	assert.Equal(t, 1, byID["b"].Count)
	assert.InDelta(t, 95, byID["b"].Total, 1e-9)
}

func TestTotalRankingSingleStudent(t *testing.T) {
	results := TotalRanking([]ScoreEntry{{StudentID: "only", Score: 42}})
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Rank)
}

func TestPercentile(t *testing.T) {
	assert.InDelta(t, 99, Percentile(1, 100), 1e-9)
	assert.InDelta(t, 50, Percentile(5, 10), 1e-9)
	assert.InDelta(t, 0, Percentile(1, 1), 1e-9)
	assert.Zero(t, Percentile(1, 0))
}

func TestLevelDistribution(t *testing.T) {
	b := LevelDistribution([]float64{95, 80, 79.9, 70, 65, 60, 59.9, 10})

	assert.Equal(t, 2, b.Excellent)
	assert.Equal(t, 2, b.Good)
	assert.Equal(t, 2, b.Pass)
	assert.Equal(t, 2, b.Fail)
}

func TestProgressIndexWeights(t *testing.T) {
	current := LevelBands{Excellent: 12, Good: 10, Pass: 10, Fail: 5}
	previous := LevelBands{Excellent: 10, Good: 10, Pass: 10, Fail: 10}

	// excellent +20%, good 0, pass 0, fail -50% inverted to +50%.
	idx := ProgressIndex(current, previous)
	assert.InDelta(t, 0.4*20+0.1*50, idx, 1e-9)
}

func TestProgressIndexEmptyPreviousBand(t *testing.T) {
	current := LevelBands{Excellent: 3}
	previous := LevelBands{}

	// Growth from an empty band counts as a 100% change.
	assert.InDelta(t, 0.4*100, ProgressIndex(current, previous), 1e-9)

	// No growth and no previous members yields zero.
	assert.Zero(t, ProgressIndex(LevelBands{}, LevelBands{}))
}

func TestQuantileBounds(t *testing.T) {
	sorted := []float64{1, 2, 3}
	assert.InDelta(t, 1, Quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 3, Quantile(sorted, 1), 1e-9)
	assert.InDelta(t, 2, Quantile(sorted, 0.5), 1e-9)
	assert.Zero(t, Quantile(nil, 0.5))
}
