package inference

import (
	"context"
	"image"
)

// noopBackend is the last-resort backend. It always succeeds with an empty
// result, keeping the service available when no real backend could start.
type noopBackend struct{}

func (b *noopBackend) Name() string {
	return "none"
}

func (b *noopBackend) Predict(_ context.Context, _ image.Image, _ Options) ([]Detection, error) {
	return []Detection{}, nil
}
