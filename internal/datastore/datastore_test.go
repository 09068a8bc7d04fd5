// datastore_test.go: Tests for prediction log persistence
package datastore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodlens/foodlens-go/internal/observability/metrics"
)

// setupTestDB creates an in-memory SQLite database for testing. A named
// shared-cache DSN keeps all pooled connections on the same database.
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Prediction{}, &DetectedItem{}))

	return &DataStore{DB: db}
}

func floatPtr(v float64) *float64 { return &v }

func makeItem(label string, confidence float64, calories *float64) DetectedItem {
	box, _ := json.Marshal([4]float64{1, 2, 3, 4})
	return DetectedItem{
		Label:          label,
		CanonicalLabel: label,
		Confidence:     confidence,
		Calories:       calories,
		BoxCoordinates: string(box),
	}
}

func TestSaveAndGetRecentRoundTrip(t *testing.T) {
	ds := setupTestDB(t)

	prediction := &Prediction{
		SessionID:        "session-1",
		Timestamp:        time.Now(),
		TotalCalories:    460,
		TotalFats:        27,
		TotalProtein:     37,
		TotalItems:       2,
		ProcessingTimeMs: 12.5,
		ImageSize:        "640x480",
	}
	items := []DetectedItem{
		makeItem("pizza", 0.7, floatPtr(285)),
		makeItem("salad", 0.9, floatPtr(152)),
	}

	require.NoError(t, ds.Save(prediction, items))
	assert.NotZero(t, prediction.ID)

	got, err := ds.GetRecentPredictions(1, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, prediction.ID, got[0].ID)
	assert.Equal(t, "session-1", got[0].SessionID)
	assert.InDelta(t, 460, got[0].TotalCalories, 1e-6)
	assert.InDelta(t, 12.5, got[0].ProcessingTimeMs, 1e-6)
	assert.Equal(t, "640x480", got[0].ImageSize)

	// Items come back ordered by descending confidence
	require.Len(t, got[0].Items, 2)
	assert.Equal(t, "salad", got[0].Items[0].Label)
	assert.Equal(t, "pizza", got[0].Items[1].Label)
	require.NotNil(t, got[0].Items[1].Calories)
	assert.InDelta(t, 285, *got[0].Items[1].Calories, 1e-6)
}

func TestGetRecentPredictionsOrderAndPagination(t *testing.T) {
	ds := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		p := &Prediction{
			SessionID: fmt.Sprintf("s-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, ds.Save(p, nil))
	}

	newest, err := ds.GetRecentPredictions(2, 0)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "s-4", newest[0].SessionID)
	assert.Equal(t, "s-3", newest[1].SessionID)

	nextPage, err := ds.GetRecentPredictions(2, 2)
	require.NoError(t, err)
	require.Len(t, nextPage, 2)
	assert.Equal(t, "s-2", nextPage[0].SessionID)
}

func TestGetRecentPredictionsClampsLimit(t *testing.T) {
	ds := setupTestDB(t)

	require.NoError(t, ds.Save(&Prediction{Timestamp: time.Now()}, nil))

	got, err := ds.GetRecentPredictions(100000, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = ds.GetRecentPredictions(-5, -3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveAssignsIncreasingIDs(t *testing.T) {
	ds := setupTestDB(t)

	var lastID uint
	for i := 0; i < 5; i++ {
		p := &Prediction{Timestamp: time.Now()}
		require.NoError(t, ds.Save(p, []DetectedItem{makeItem("apple", 0.8, floatPtr(95))}))
		assert.Greater(t, p.ID, lastID)
		lastID = p.ID
	}
}

func TestConcurrentSavesKeepIDsUnique(t *testing.T) {
	ds := setupTestDB(t)

	const workers = 8
	ids := make(chan uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := &Prediction{
				SessionID: fmt.Sprintf("w-%d", n),
				Timestamp: time.Now(),
			}
			if err := ds.Save(p, []DetectedItem{makeItem("banana", 0.5, floatPtr(105))}); err == nil {
				ids <- p.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.NotEmpty(t, seen)
}

func TestSaveWithoutConnectionFails(t *testing.T) {
	ds := &DataStore{}
	err := ds.Save(&Prediction{}, nil)
	assert.Error(t, err)
}

func TestQueriesWithoutConnectionFail(t *testing.T) {
	ds := &DataStore{}

	_, err := ds.GetRecentPredictions(10, 0)
	assert.Error(t, err)

	_, err = ds.GetStatistics(7)
	assert.Error(t, err)

	_, err = ds.GetTrends(30)
	assert.Error(t, err)
}

func TestQueryDurationsObserved(t *testing.T) {
	m, err := metrics.NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	SetMetrics(m)
	t.Cleanup(func() { SetMetrics(nil) })

	ds := setupTestDB(t)
	require.NoError(t, ds.Save(&Prediction{Timestamp: time.Now()}, nil))

	_, err = ds.GetRecentPredictions(10, 0)
	require.NoError(t, err)
	_, err = ds.GetStatistics(7)
	require.NoError(t, err)
	_, err = ds.GetTrends(30)
	require.NoError(t, err)

	// One histogram series per operation, each with at least one sample
	assert.Equal(t, 4, testutil.CollectAndCount(m.QueryDuration, "datastore_query_duration_seconds"))
}
