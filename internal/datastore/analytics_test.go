// analytics_test.go: Tests for aggregate statistics and trend queries
package datastore

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPrediction(t *testing.T, ds *DataStore, ts time.Time, calories float64, labels ...string) {
	t.Helper()

	items := make([]DetectedItem, 0, len(labels))
	for _, label := range labels {
		items = append(items, makeItem(label, 0.8, floatPtr(calories/float64(max(len(labels), 1)))))
	}

	p := &Prediction{
		SessionID:        "seed",
		Timestamp:        ts,
		TotalCalories:    calories,
		TotalFats:        calories / 10,
		TotalProtein:     calories / 20,
		TotalItems:       len(labels),
		ProcessingTimeMs: 10,
	}
	require.NoError(t, ds.Save(p, items))
}

func TestGetStatisticsEmptyStore(t *testing.T) {
	ds := setupTestDB(t)

	stats, err := ds.GetStatistics(7)
	require.NoError(t, err)
	require.NotNil(t, stats)

	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.TotalCalories)
	assert.Zero(t, stats.AvgCalories)
	assert.Zero(t, stats.AvgProcessingTimeMs)
	assert.NotNil(t, stats.TopFoods)
	assert.Empty(t, stats.TopFoods)
	assert.NotNil(t, stats.DailyBreakdown)
	assert.Empty(t, stats.DailyBreakdown)
}

func TestGetStatisticsWindowing(t *testing.T) {
	ds := setupTestDB(t)

	now := time.Now()
	seedPrediction(t, ds, now.Add(-1*time.Hour), 300, "pizza")
	seedPrediction(t, ds, now.Add(-2*time.Hour), 200, "pizza", "salad")
	seedPrediction(t, ds, now.Add(-3*time.Hour), 100, "apple")
	// Outside the 7 day window
	seedPrediction(t, ds, now.AddDate(0, 0, -10), 900, "donut")

	stats, err := ds.GetStatistics(7)
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.Count)
	assert.InDelta(t, 600, stats.TotalCalories, 1e-6)
	assert.InDelta(t, 200, stats.AvgCalories, 1e-6)
	assert.InDelta(t, 10, stats.AvgProcessingTimeMs, 1e-6)

	// pizza detected twice, salad and apple once each, donut excluded
	require.NotEmpty(t, stats.TopFoods)
	assert.Equal(t, "pizza", stats.TopFoods[0].CanonicalLabel)
	assert.EqualValues(t, 2, stats.TopFoods[0].Count)
	labels := make([]string, 0, len(stats.TopFoods))
	for _, f := range stats.TopFoods {
		labels = append(labels, f.CanonicalLabel)
	}
	assert.NotContains(t, labels, "donut")

	// All three in-window events fall on the same calendar day
	require.Len(t, stats.DailyBreakdown, 1)
	assert.EqualValues(t, 3, stats.DailyBreakdown[0].Count)
	assert.InDelta(t, 600, stats.DailyBreakdown[0].Calories, 1e-6)
}

func TestGetStatisticsDailyBreakdownDescending(t *testing.T) {
	ds := setupTestDB(t)

	now := time.Now()
	seedPrediction(t, ds, now.Add(-30*time.Minute), 100, "apple")
	seedPrediction(t, ds, now.AddDate(0, 0, -2), 200, "banana")
	seedPrediction(t, ds, now.AddDate(0, 0, -4), 300, "salad")

	stats, err := ds.GetStatistics(7)
	require.NoError(t, err)

	require.Len(t, stats.DailyBreakdown, 3)
	assert.True(t, sort.SliceIsSorted(stats.DailyBreakdown, func(i, j int) bool {
		return stats.DailyBreakdown[i].Date > stats.DailyBreakdown[j].Date
	}), "daily breakdown should be in descending date order")
}

func TestGetTrendsAscendingWindow(t *testing.T) {
	ds := setupTestDB(t)

	now := time.Now()
	seedPrediction(t, ds, now.Add(-1*time.Hour), 300, "pizza")
	seedPrediction(t, ds, now.Add(-2*time.Hour), 200, "salad")
	seedPrediction(t, ds, now.AddDate(0, 0, -3), 400, "burger_beef")
	seedPrediction(t, ds, now.AddDate(0, 0, -10), 900, "donut")

	trends, err := ds.GetTrends(7)
	require.NoError(t, err)

	require.Len(t, trends, 2)
	assert.True(t, trends[0].Date < trends[1].Date,
		"trends should be in ascending date order")

	older := trends[0]
	assert.EqualValues(t, 1, older.Count)
	assert.InDelta(t, 400, older.TotalCalories, 1e-6)

	today := trends[1]
	assert.EqualValues(t, 2, today.Count)
	assert.InDelta(t, 500, today.TotalCalories, 1e-6)
	assert.InDelta(t, 250, today.AvgCalories, 1e-6)
	assert.InDelta(t, 50, today.TotalFats, 1e-6)
	assert.InDelta(t, 25, today.TotalProtein, 1e-6)
}

func TestGetTrendsEmptyStore(t *testing.T) {
	ds := setupTestDB(t)

	trends, err := ds.GetTrends(30)
	require.NoError(t, err)
	assert.NotNil(t, trends)
	assert.Empty(t, trends)
}
