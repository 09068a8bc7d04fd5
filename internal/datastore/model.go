// model.go this code defines the data model for the prediction log
package datastore

import "time"

// Prediction represents a single logged inference request. Predictions are
// append-only, they are never mutated after creation.
type Prediction struct {
	ID               uint      `gorm:"primaryKey"`
	SessionID        string    `gorm:"index:idx_predictions_session"`
	Timestamp        time.Time `gorm:"index:idx_predictions_timestamp"`
	TotalCalories    float64
	TotalFats        float64
	TotalProtein     float64
	TotalItems       int
	ProcessingTimeMs float64
	ImageSize        string         // "WxH" of the source image, empty if unknown
	Items            []DetectedItem `gorm:"foreignKey:PredictionID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
}

// DetectedItem represents one detected food item within a prediction.
// Nutrition pointers are nil when the canonical label has no table entry.
type DetectedItem struct {
	ID             uint   `gorm:"primaryKey"`
	PredictionID   uint   `gorm:"index:idx_items_prediction;not null"`
	Label          string // raw label as produced by the backend
	CanonicalLabel string `gorm:"index:idx_items_label"`
	Confidence     float64
	Calories       *float64
	Fats           *float64
	Protein        *float64
	BoxCoordinates string // JSON-serialized [x1,y1,x2,y2]
	CreatedAt      time.Time
}
