// internal/datastore/analytics.go
package datastore

import (
	"fmt"
	"time"
)

// FoodCount contains aggregate statistics for one canonical food label
type FoodCount struct {
	CanonicalLabel string  `json:"canonical_label"`
	Count          int64   `json:"count"`
	AvgConfidence  float64 `json:"avg_confidence"`
}

// DailyCount represents prediction counts and calories by day
type DailyCount struct {
	Date     string  `json:"date"`
	Count    int64   `json:"count"`
	Calories float64 `json:"calories"`
}

// Statistics contains aggregate prediction statistics for a trailing window
type Statistics struct {
	Count               int64        `json:"count"`
	AvgCalories         float64      `json:"avg_total_calories"`
	TotalCalories       float64      `json:"sum_total_calories"`
	AvgProcessingTimeMs float64      `json:"avg_processing_time_ms"`
	TopFoods            []FoodCount  `json:"top_labels"`
	DailyBreakdown      []DailyCount `json:"daily_breakdown"`
}

// DailyTrend represents one day of calorie consumption trends
type DailyTrend struct {
	Date          string  `json:"date"`
	Count         int64   `json:"count"`
	TotalCalories float64 `json:"sum_calories"`
	AvgCalories   float64 `json:"avg_calories_per_event"`
	TotalFats     float64 `json:"sum_fats"`
	TotalProtein  float64 `json:"sum_protein"`
}

// windowStart returns the inclusive lower bound of a trailing window of
// whole days ending now.
func windowStart(days int) time.Time {
	if days < 0 {
		days = 0
	}
	return time.Now().AddDate(0, 0, -days)
}

// GetStatistics retrieves aggregate prediction statistics for the last N
// days. An empty window yields zero counts and empty rankings, never an
// error.
func (ds *DataStore) GetStatistics(days int) (*Statistics, error) {
	if ds.DB == nil {
		return nil, notInitialized()
	}
	defer observeQuery("statistics", time.Now())

	cutoff := windowStart(days)

	stats := &Statistics{
		TopFoods:       []FoodCount{},
		DailyBreakdown: []DailyCount{},
	}

	// Totals over the window. COALESCE keeps the aggregates at zero when
	// no rows match.
	err := ds.DB.Raw(`
		SELECT COUNT(*) as count,
		       COALESCE(AVG(total_calories), 0) as avg_calories,
		       COALESCE(SUM(total_calories), 0) as total_calories,
		       COALESCE(AVG(processing_time_ms), 0) as avg_processing_time_ms
		FROM predictions
		WHERE timestamp >= ?`, cutoff).
		Row().
		Scan(&stats.Count, &stats.AvgCalories, &stats.TotalCalories, &stats.AvgProcessingTimeMs)
	if err != nil {
		return nil, fmt.Errorf("error getting prediction statistics: %w", err)
	}

	// Most detected foods in the window
	rows, err := ds.DB.Raw(`
		SELECT di.canonical_label,
		       COUNT(*) as count,
		       AVG(di.confidence) as avg_confidence
		FROM detected_items di
		JOIN predictions p ON di.prediction_id = p.id
		WHERE p.timestamp >= ?
		GROUP BY di.canonical_label
		ORDER BY count DESC, di.canonical_label ASC
		LIMIT 10`, cutoff).Rows()
	if err != nil {
		return nil, fmt.Errorf("error getting top foods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var food FoodCount
		if err := rows.Scan(&food.CanonicalLabel, &food.Count, &food.AvgConfidence); err != nil {
			return nil, fmt.Errorf("error scanning top foods: %w", err)
		}
		stats.TopFoods = append(stats.TopFoods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top foods: %w", err)
	}

	// Daily breakdown, most recent day first
	dailyRows, err := ds.DB.Raw(`
		SELECT DATE(timestamp) as date,
		       COUNT(*) as count,
		       COALESCE(SUM(total_calories), 0) as calories
		FROM predictions
		WHERE timestamp >= ?
		GROUP BY DATE(timestamp)
		ORDER BY date DESC`, cutoff).Rows()
	if err != nil {
		return nil, fmt.Errorf("error getting daily breakdown: %w", err)
	}
	defer dailyRows.Close()

	for dailyRows.Next() {
		var day DailyCount
		if err := dailyRows.Scan(&day.Date, &day.Count, &day.Calories); err != nil {
			return nil, fmt.Errorf("error scanning daily breakdown: %w", err)
		}
		stats.DailyBreakdown = append(stats.DailyBreakdown, day)
	}
	if err := dailyRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily breakdown: %w", err)
	}

	return stats, nil
}

// GetTrends retrieves calorie consumption trends over the last N days in
// ascending date order for chronological plotting.
func (ds *DataStore) GetTrends(days int) ([]DailyTrend, error) {
	if ds.DB == nil {
		return nil, notInitialized()
	}
	defer observeQuery("trends", time.Now())

	cutoff := windowStart(days)

	rows, err := ds.DB.Raw(`
		SELECT DATE(timestamp) as date,
		       COUNT(*) as count,
		       COALESCE(SUM(total_calories), 0) as total_calories,
		       COALESCE(AVG(total_calories), 0) as avg_calories,
		       COALESCE(SUM(total_fats), 0) as total_fats,
		       COALESCE(SUM(total_protein), 0) as total_protein
		FROM predictions
		WHERE timestamp >= ?
		GROUP BY DATE(timestamp)
		ORDER BY date ASC`, cutoff).Rows()
	if err != nil {
		return nil, fmt.Errorf("error getting calorie trends: %w", err)
	}
	defer rows.Close()

	trends := []DailyTrend{}
	for rows.Next() {
		var trend DailyTrend
		if err := rows.Scan(&trend.Date, &trend.Count, &trend.TotalCalories,
			&trend.AvgCalories, &trend.TotalFats, &trend.TotalProtein); err != nil {
			return nil, fmt.Errorf("error scanning calorie trends: %w", err)
		}
		trends = append(trends, trend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calorie trends: %w", err)
	}

	return trends, nil
}
