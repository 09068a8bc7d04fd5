package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/httpclient"
)

// remoteBackend sends images to the Roboflow hosted inference API. The API
// may ignore the confidence parameter, so returned predictions are filtered
// client-side as well.
type remoteBackend struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

// remoteResponse mirrors the hosted inference JSON payload. Boxes are
// center-x/center-y plus width/height in source pixels.
type remoteResponse struct {
	Predictions []remotePrediction `json:"predictions"`
}

type remotePrediction struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
	Confidence *float64 `json:"confidence"`
	Class      string   `json:"class"`
}

// newRemoteBackend validates the hosted-inference configuration and builds
// the backend. Missing or malformed workspace/project/version strings are an
// initialization failure, the router falls through to the no-op backend.
func newRemoteBackend(settings *conf.Settings) (*remoteBackend, error) {
	rf := settings.Detector.Roboflow
	if rf.APIKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}

	for name, value := range map[string]string{
		"workspace": rf.Workspace,
		"project":   rf.Project,
		"version":   rf.Version,
	} {
		if value == "" {
			return nil, fmt.Errorf("roboflow %s is not configured", name)
		}
		if url.PathEscape(value) != value {
			return nil, fmt.Errorf("roboflow %s %q is not URL-safe", name, value)
		}
	}

	base, err := url.Parse(rf.Endpoint)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid roboflow endpoint %q", rf.Endpoint)
	}

	timeout := time.Duration(rf.Timeout) * time.Second

	return &remoteBackend{
		client: httpclient.New(&httpclient.Config{
			DefaultTimeout: timeout,
		}),
		endpoint: fmt.Sprintf("%s/%s/%s/%s", base.String(), rf.Workspace, rf.Project, rf.Version),
		apiKey:   rf.APIKey,
		timeout:  timeout,
	}, nil
}

func (b *remoteBackend) Name() string {
	return "remote"
}

// Predict posts the base64-encoded image and converts the response into the
// common detection record shape.
func (b *remoteBackend) Predict(ctx context.Context, img image.Image, opts Options) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encoding image for upload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	requestURL := fmt.Sprintf("%s?%s", b.endpoint, b.queryParams(opts).Encode())

	// Hard timeout regardless of the caller's context deadline.
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.Post(ctx, requestURL, "application/x-www-form-urlencoded", encoded)
	if err != nil {
		return nil, fmt.Errorf("hosted inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hosted inference returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding hosted inference response: %w", err)
	}

	return b.convert(parsed, opts)
}

func (b *remoteBackend) queryParams(opts Options) url.Values {
	params := url.Values{}
	params.Set("api_key", b.apiKey)
	// The hosted API takes confidence as a percentage.
	params.Set("confidence", fmt.Sprintf("%.0f", opts.Confidence*100))
	if opts.IoU != nil {
		params.Set("overlap", fmt.Sprintf("%.0f", *opts.IoU*100))
	}
	return params
}

// convert turns hosted predictions into detections, dropping entries below
// the threshold since the remote API may ignore the confidence parameter.
// A prediction missing its class or geometry is a malformed result.
func (b *remoteBackend) convert(parsed remoteResponse, opts Options) ([]Detection, error) {
	detections := make([]Detection, 0, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		if p.Class == "" {
			return nil, fmt.Errorf("malformed result: prediction %d has no class", i)
		}
		if p.X == nil || p.Y == nil || p.Width == nil || p.Height == nil {
			return nil, fmt.Errorf("malformed result: prediction %d has incomplete geometry", i)
		}

		confidence := 0.0
		if p.Confidence != nil {
			confidence = *p.Confidence
		}
		if confidence < opts.Confidence {
			continue
		}

		halfW := *p.Width / 2
		halfH := *p.Height / 2
		detections = append(detections, Detection{
			Label:      p.Class,
			Confidence: confidence,
			Box:        [4]float64{*p.X - halfW, *p.Y - halfH, *p.X + halfW, *p.Y + halfH},
		})
	}

	return capDetections(detections, opts.MaxDetections), nil
}
