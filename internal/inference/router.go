package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/errors"
	"github.com/foodlens/foodlens-go/internal/logging"
)

// Router selects a detection backend at construction time and serves all
// predict calls through it. The selection is immutable, a router whose
// probing failed stays in ModeNone and answers every predict with an empty
// result so the service remains available in degraded mode.
type Router struct {
	backend Backend
	mode    Mode
	log     *slog.Logger
}

// NewRouter probes backends in priority order: local weights, remote hosted
// inference, no-op. It never fails, the worst outcome is a ModeNone router.
func NewRouter(settings *conf.Settings) *Router {
	log := logging.ForService("inference")
	r := &Router{mode: ModeNone, log: log}

	if backend, err := newLocalBackend(settings); err == nil {
		r.backend = backend
		r.mode = ModeLocal
		log.Info("detection backend selected", "backend", backend.Name())
		return r
	} else {
		log.Warn("local backend unavailable", "model_path", settings.Detector.ModelPath, "error", err)
	}

	if backend, err := newRemoteBackend(settings); err == nil {
		r.backend = backend
		r.mode = ModeRemote
		log.Info("detection backend selected", "backend", backend.Name())
		return r
	} else {
		log.Warn("remote backend unavailable", "error", err)
	}

	r.backend = &noopBackend{}
	log.Warn("no detection backend available, running in degraded mode")
	return r
}

// NewRouterWithBackend builds a router around an already constructed
// backend, bypassing probing. Used for dependency injection in tests and
// by callers that manage backend lifecycle themselves.
func NewRouterWithBackend(backend Backend, mode Mode) *Router {
	return &Router{
		backend: backend,
		mode:    mode,
		log:     logging.ForService("inference"),
	}
}

// Mode returns the backend mode committed to at startup.
func (r *Router) Mode() Mode {
	return r.mode
}

// Predict decodes the image and runs it through the selected backend.
// Undecodable input fails with ErrInvalidImage. Backend faults fail with a
// CategoryInference error, terminal for this request only. In ModeNone the
// result is an empty detection list and no error.
func (r *Router) Predict(ctx context.Context, imageData []byte, opts Options) ([]Detection, Dimensions, error) {
	img, dims, err := decodeImage(imageData)
	if err != nil {
		return nil, Dimensions{}, errors.New(err).
			Component("inference").
			Category(errors.CategoryImageDecode).
			Context("image_bytes", len(imageData)).
			Build()
	}

	opts.Confidence = clampConfidence(opts.Confidence)

	if r.mode == ModeNone {
		return []Detection{}, dims, nil
	}

	detections, err := r.backend.Predict(ctx, img, opts)
	if err != nil {
		return nil, dims, errors.New(fmt.Errorf("backend %s: %w", r.backend.Name(), err)).
			Component("inference").
			Category(errors.CategoryInference).
			Context("backend", r.backend.Name()).
			Build()
	}

	sanitized, err := sanitizeDetections(detections)
	if err != nil {
		return nil, dims, errors.New(fmt.Errorf("backend %s: %w", r.backend.Name(), err)).
			Component("inference").
			Category(errors.CategoryInference).
			Context("backend", r.backend.Name()).
			Build()
	}

	return sanitized, dims, nil
}

// sanitizeDetections normalizes backend output into the common detection
// record shape. A detection without a label is a malformed backend result.
// Confidences are clamped to [0,1], non-numeric values coerce to 0 and are
// left to downstream thresholds to filter.
func sanitizeDetections(detections []Detection) ([]Detection, error) {
	out := make([]Detection, 0, len(detections))
	for i := range detections {
		d := detections[i]
		if d.Label == "" {
			return nil, fmt.Errorf("malformed result: detection %d has no label", i)
		}
		d.Confidence = clampConfidence(d.Confidence)
		if d.Box[2] < d.Box[0] {
			d.Box[0], d.Box[2] = d.Box[2], d.Box[0]
		}
		if d.Box[3] < d.Box[1] {
			d.Box[1], d.Box[3] = d.Box[3], d.Box[1]
		}
		out = append(out, d)
	}
	return out, nil
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// capDetections sorts by descending confidence and truncates to maxDet if
// set. Shared by backends that rank their own output.
func capDetections(detections []Detection, maxDet *int) []Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})
	if maxDet != nil && *maxDet > 0 && len(detections) > *maxDet {
		detections = detections[:*maxDet]
	}
	return detections
}
