// Package processor orchestrates the prediction pipeline: inference,
// nutrition enrichment, persistence and live fan-out. Persistence and
// broadcasting are best effort, the synchronous detection result is the
// primary contract.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/foodlens/foodlens-go/internal/broadcast"
	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/datastore"
	"github.com/foodlens/foodlens-go/internal/inference"
	"github.com/foodlens/foodlens-go/internal/logging"
	"github.com/foodlens/foodlens-go/internal/mqtt"
	"github.com/foodlens/foodlens-go/internal/nutrition"
	"github.com/foodlens/foodlens-go/internal/observability"
)

// statisticsWindowDays is the trailing window used for broadcast and
// control-message statistics.
const statisticsWindowDays = 7

// statsThrottleKey guards the statistics_update broadcast rate.
const statsThrottleKey = "statistics_update"

// Request carries optional per-request prediction parameters.
type Request struct {
	SessionID     string
	Confidence    *float64
	IoU           *float64
	MaxDetections *int
}

// Item is one detected food with attached nutrition facts. Nutrition
// pointers are nil when the canonical label has no table entry.
type Item struct {
	Label          string     `json:"label"`
	CanonicalLabel string     `json:"canonical_label"`
	Confidence     float64    `json:"confidence"`
	Box            [4]float64 `json:"box"`
	Calories       *float64   `json:"calories,omitempty"`
	Fats           *float64   `json:"fats,omitempty"`
	Protein        *float64   `json:"protein,omitempty"`
}

// Result is the synchronous outcome of one prediction request. LogID is
// nil when no store is configured or the write failed, Degraded lists
// best-effort stages that failed.
type Result struct {
	Items            []Item   `json:"items"`
	TotalCalories    float64  `json:"total_calories"`
	TotalFats        float64  `json:"total_fats"`
	TotalProtein     float64  `json:"total_protein"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
	SessionID        string   `json:"session_id"`
	LogID            *uint    `json:"log_id,omitempty"`
	Degraded         []string `json:"degraded,omitempty"`
}

// Processor ties the inference router, event store, broadcast hub and
// MQTT publisher into one request-to-event pipeline. Store, hub and
// publisher may each be nil, the corresponding stage is skipped.
type Processor struct {
	Settings  *conf.Settings
	router    *inference.Router
	store     datastore.Interface
	hub       *broadcast.Hub
	publisher mqtt.Client
	metrics   *observability.Metrics
	cache     *gocache.Cache
	log       *slog.Logger
}

// New builds a processor around the given collaborators.
func New(settings *conf.Settings, router *inference.Router, store datastore.Interface,
	hub *broadcast.Hub, publisher mqtt.Client, metrics *observability.Metrics) *Processor {
	return &Processor{
		Settings:  settings,
		router:    router,
		store:     store,
		hub:       hub,
		publisher: publisher,
		metrics:   metrics,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
		log:       logging.ForService("processor"),
	}
}

// Mode reports the inference backend mode committed to at startup.
func (p *Processor) Mode() inference.Mode {
	return p.router.Mode()
}

// Process runs one image through the full pipeline. Decode and inference
// failures are terminal for the request. Persistence and broadcast
// failures degrade the result without failing it.
func (p *Processor) Process(ctx context.Context, imageBytes []byte, req Request) (*Result, error) {
	start := time.Now()

	opts := inference.Options{
		Confidence:    p.Settings.Detector.Threshold,
		IoU:           req.IoU,
		MaxDetections: req.MaxDetections,
	}
	if req.Confidence != nil {
		opts.Confidence = *req.Confidence
	}
	if opts.IoU == nil && p.Settings.Detector.IoU > 0 {
		iou := p.Settings.Detector.IoU
		opts.IoU = &iou
	}
	if opts.MaxDetections == nil && p.Settings.Detector.MaxDetections > 0 {
		maxDetections := p.Settings.Detector.MaxDetections
		opts.MaxDetections = &maxDetections
	}

	detections, dims, err := p.router.Predict(ctx, imageBytes, opts)
	if err != nil {
		if p.metrics != nil {
			p.metrics.Inference.RecordPrediction(string(p.router.Mode()), "error")
			p.metrics.Inference.IncrementErrors(string(p.router.Mode()))
		}
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result := &Result{
		Items:     make([]Item, 0, len(detections)),
		SessionID: sessionID,
	}
	for _, d := range detections {
		item := enrich(d)
		if item.Calories != nil {
			result.TotalCalories += *item.Calories
		}
		if item.Fats != nil {
			result.TotalFats += *item.Fats
		}
		if item.Protein != nil {
			result.TotalProtein += *item.Protein
		}
		result.Items = append(result.Items, item)
	}

	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	if p.metrics != nil {
		p.metrics.Inference.RecordPrediction(string(p.router.Mode()), "success")
		p.metrics.Inference.AddDetections(len(result.Items))
		p.metrics.Inference.ObserveInferenceDuration(string(p.router.Mode()), time.Since(start))
	}

	p.persist(result, dims)
	p.notify(ctx, result)

	return result, nil
}

// enrich canonicalizes a detection label and attaches nutrition facts.
func enrich(d inference.Detection) Item {
	canonical := nutrition.Canonicalize(d.Label)
	item := Item{
		Label:          d.Label,
		CanonicalLabel: canonical,
		Confidence:     d.Confidence,
		Box:            d.Box,
	}
	if facts, ok := nutrition.Lookup(canonical); ok {
		calories, fats, protein := facts.Calories, facts.Fats, facts.Protein
		item.Calories = &calories
		item.Fats = &fats
		item.Protein = &protein
	}
	return item
}

// persist appends the prediction event to the store. Failure is logged
// and recorded in Result.Degraded, never surfaced to the caller.
func (p *Processor) persist(result *Result, dims inference.Dimensions) {
	if p.store == nil {
		return
	}

	prediction := &datastore.Prediction{
		SessionID:        result.SessionID,
		Timestamp:        time.Now(),
		TotalCalories:    result.TotalCalories,
		TotalFats:        result.TotalFats,
		TotalProtein:     result.TotalProtein,
		TotalItems:       len(result.Items),
		ProcessingTimeMs: result.ProcessingTimeMs,
	}
	if dims.Width > 0 && dims.Height > 0 {
		prediction.ImageSize = fmt.Sprintf("%dx%d", dims.Width, dims.Height)
	}

	items := make([]datastore.DetectedItem, 0, len(result.Items))
	for _, item := range result.Items {
		box, _ := json.Marshal(item.Box)
		items = append(items, datastore.DetectedItem{
			Label:          item.Label,
			CanonicalLabel: item.CanonicalLabel,
			Confidence:     item.Confidence,
			Calories:       item.Calories,
			Fats:           item.Fats,
			Protein:        item.Protein,
			BoxCoordinates: string(box),
		})
	}

	if err := p.store.Save(prediction, items); err != nil {
		p.log.Error("Failed to persist prediction event", "session_id", result.SessionID, "error", err)
		if p.metrics != nil {
			p.metrics.Datastore.IncrementSaveErrors()
		}
		result.Degraded = append(result.Degraded, "persist")
		return
	}

	result.LogID = &prediction.ID
	if p.metrics != nil {
		p.metrics.Datastore.IncrementSaves()
	}
}

// notify broadcasts the new prediction to live observers and publishes
// it over MQTT, then pushes a throttled statistics refresh.
func (p *Processor) notify(ctx context.Context, result *Result) {
	payload := newPredictionPayload(result)

	if p.hub != nil {
		delivered := p.hub.Broadcast(broadcast.NewPrediction(payload))
		if p.metrics != nil {
			p.metrics.Broadcast.AddDeliveries(broadcast.TypeNewPrediction, delivered)
			p.metrics.Broadcast.SetActiveConnections(p.hub.Count())
		}
		p.broadcastStatistics()
	}

	if p.publisher != nil && p.publisher.IsConnected() {
		data, err := json.Marshal(payload)
		if err == nil {
			err = p.publisher.Publish(ctx, p.Settings.Realtime.MQTT.Topic, string(data))
		}
		if err != nil {
			p.log.Warn("Failed to publish prediction event", "error", err)
			result.Degraded = append(result.Degraded, "publish")
		}
	}
}

// newPredictionPayload builds the compact new_prediction wire payload.
func newPredictionPayload(result *Result) map[string]any {
	summaries := make([]map[string]any, 0, len(result.Items))
	for _, item := range result.Items {
		summary := map[string]any{"label": item.CanonicalLabel}
		if item.Calories != nil {
			summary["calories"] = *item.Calories
		}
		summaries = append(summaries, summary)
	}

	payload := map[string]any{
		"session_id":         result.SessionID,
		"total_calories":     result.TotalCalories,
		"total_fats":         result.TotalFats,
		"total_protein":      result.TotalProtein,
		"processing_time_ms": result.ProcessingTimeMs,
		"items":              summaries,
	}
	if result.LogID != nil {
		payload["id"] = *result.LogID
	}
	return payload
}

// broadcastStatistics pushes a statistics_update to all observers, at
// most once per configured interval.
func (p *Processor) broadcastStatistics() {
	if p.store == nil {
		return
	}
	interval := time.Duration(p.Settings.Realtime.StatsInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	// Add fails when the key is already present, which makes the
	// throttle check-and-claim atomic across concurrent requests.
	if err := p.cache.Add(statsThrottleKey, struct{}{}, interval); err != nil {
		return
	}

	stats, err := p.store.GetStatistics(statisticsWindowDays)
	if err != nil {
		p.log.Warn("Failed to compute statistics for broadcast", "error", err)
		return
	}

	delivered := p.hub.Broadcast(broadcast.StatisticsUpdate(stats))
	if p.metrics != nil {
		p.metrics.Broadcast.AddDeliveries(broadcast.TypeStatisticsUpdate, delivered)
	}
}

// controlMessage is the inbound shape read from observer connections.
type controlMessage struct {
	Type string `json:"type"`
}

// HandleControl answers keepalive and stats requests from one observer.
// Unknown or malformed messages are ignored.
func (p *Processor) HandleControl(conn broadcast.Conn, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "ping":
		if p.hub != nil {
			if err := p.hub.SendTo(conn, broadcast.Pong()); err != nil {
				p.log.Debug("Failed to answer ping", "error", err)
			}
		}
	case "get_stats":
		if p.hub == nil || p.store == nil {
			return
		}
		stats, err := p.store.GetStatistics(statisticsWindowDays)
		if err != nil {
			p.log.Warn("Failed to compute statistics for observer", "error", err)
			return
		}
		if err := p.hub.SendTo(conn, broadcast.StatisticsUpdate(stats)); err != nil {
			p.log.Debug("Failed to send statistics to observer", "error", err)
		}
	}
}
