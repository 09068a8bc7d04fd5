package datastore

import (
	"time"

	"github.com/foodlens/foodlens-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(&slogWriter{}, gormlogger.Config{
		SlowThreshold:             DefaultSlowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter adapts the GORM logger printf interface to slog.
type slogWriter struct{}

func (w *slogWriter) Printf(format string, args ...any) {
	logging.ForService("datastore").Warn("gorm", "detail", format, "args", args)
}

// performAutoMigration migrates the prediction log tables, creating them
// and their indexes if needed.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	log := logging.ForService("datastore").With("db_type", dbType)
	start := time.Now()

	if err := db.AutoMigrate(&Prediction{}, &DetectedItem{}); err != nil {
		log.Error("Database migration failed", "error", err)
		return err
	}

	if debug {
		log.Debug("Database migration completed",
			"connection", connectionInfo,
			"duration", time.Since(start))
	}

	log.Info("Database initialized successfully", "db_type", dbType)
	return nil
}
