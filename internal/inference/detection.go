// Package inference routes images through one of several food detection
// backends. Backends are probed in priority order once at startup and the
// selected backend is immutable for the process lifetime.
package inference

import (
	"context"
	"image"
)

// Detection is a single detected object as produced by a backend. Box
// coordinates are pixels in the source image, ordered x1, y1, x2, y2.
type Detection struct {
	Label      string
	Confidence float64
	Box        [4]float64
}

// Options carries per-request prediction parameters. Confidence is the
// minimum confidence for returned detections. IoU and MaxDetections are
// optional, backends that do not support them ignore them.
type Options struct {
	Confidence    float64
	IoU           *float64
	MaxDetections *int
}

// Dimensions holds the pixel size of a decoded input image.
type Dimensions struct {
	Width  int
	Height int
}

// Backend is one concrete detection inference implementation.
type Backend interface {
	Name() string
	Predict(ctx context.Context, img image.Image, opts Options) ([]Detection, error)
}

// Mode identifies which backend the router committed to at startup.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
	ModeNone   Mode = "none"
)
