// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/errors"
	"github.com/foodlens/foodlens-go/internal/observability/metrics"
	"gorm.io/gorm"
)

// MaxRecentLimit caps a single page of recent predictions. Larger requests
// are clamped rather than rejected so dashboard pagination cannot scan the
// whole table in one query.
const MaxRecentLimit = 1000

// Interface abstracts the underlying database implementation and defines
// the operations of the prediction log.
type Interface interface {
	Open() error
	Close() error
	Save(prediction *Prediction, items []DetectedItem) error
	GetRecentPredictions(limit, offset int) ([]Prediction, error)
	GetStatistics(days int) (*Statistics, error)
	GetTrends(days int) ([]DailyTrend, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

var storeMetrics *metrics.DatastoreMetrics

// SetMetrics attaches datastore metrics. Call once during startup, before
// any store is used.
func SetMetrics(m *metrics.DatastoreMetrics) {
	storeMetrics = m
}

// observeQuery records the elapsed time of one operation. Used as
// defer observeQuery("save", time.Now()).
func observeQuery(operation string, start time.Time) {
	if storeMetrics != nil {
		storeMetrics.ObserveQueryDuration(operation, time.Since(start))
	}
}

// notInitialized is the error returned when a store method runs before
// Open() has established a connection.
func notInitialized() error {
	return errors.New(fmt.Errorf("database connection is not initialized")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

// New creates a new datastore instance based on the provided configuration.
// Returns nil when no database output is enabled, callers treat a nil store
// as "telemetry disabled".
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Save stores a prediction and its detected items as a single transaction.
// Either everything is persisted or nothing is, a partially written
// prediction must never be observable.
func (ds *DataStore) Save(prediction *Prediction, items []DetectedItem) error {
	if ds.DB == nil {
		return notInitialized()
	}
	defer observeQuery("save", time.Now())

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(prediction).Error; err != nil {
			return fmt.Errorf("saving prediction: %w", err)
		}

		for i := range items {
			items[i].PredictionID = prediction.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return fmt.Errorf("saving detected item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("item_count", len(items)).
			Build()
	}

	return nil
}

// GetRecentPredictions retrieves the newest predictions with their items.
// Results are ordered newest first, items within each prediction are
// ordered by descending confidence.
func (ds *DataStore) GetRecentPredictions(limit, offset int) ([]Prediction, error) {
	if ds.DB == nil {
		return nil, notInitialized()
	}
	defer observeQuery("recent", time.Now())

	if limit <= 0 {
		limit = 1
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	if offset < 0 {
		offset = 0
	}

	var predictions []Prediction
	err := ds.DB.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("confidence DESC")
		}).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&predictions).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting recent predictions: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	return predictions, nil
}
