package inference

import (
	"context"
	"image"
	"net/http"
	"testing"

	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteTestSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Detector.Roboflow.APIKey = "test-key"
	s.Detector.Roboflow.Workspace = "kitchen"
	s.Detector.Roboflow.Project = "food-detect"
	s.Detector.Roboflow.Version = "3"
	s.Detector.Roboflow.Endpoint = "https://detect.example.com"
	s.Detector.Roboflow.Timeout = 30
	return s
}

func TestNewRemoteBackendRequiresAPIKey(t *testing.T) {
	s := remoteTestSettings()
	s.Detector.Roboflow.APIKey = ""

	_, err := newRemoteBackend(s)
	assert.Error(t, err)
}

func TestNewRemoteBackendRejectsUnsafeSlug(t *testing.T) {
	s := remoteTestSettings()
	s.Detector.Roboflow.Project = "food detect/../../etc"

	_, err := newRemoteBackend(s)
	assert.Error(t, err)
}

func TestNewRemoteBackendRejectsBadEndpoint(t *testing.T) {
	s := remoteTestSettings()
	s.Detector.Roboflow.Endpoint = "not-a-url"

	_, err := newRemoteBackend(s)
	assert.Error(t, err)
}

func TestRemotePredictConvertsAndFilters(t *testing.T) {
	backend, err := newRemoteBackend(remoteTestSettings())
	require.NoError(t, err)

	httpmock.ActivateNonDefault(backend.client.HTTPClient())
	defer httpmock.DeactivateAndReset()

	// The hosted API ignores the confidence parameter here on purpose: the
	// 0.2 prediction must be filtered client-side.
	httpmock.RegisterResponder(http.MethodPost,
		`=~^https://detect\.example\.com/kitchen/food-detect/3`,
		httpmock.NewStringResponder(http.StatusOK, `{
			"predictions": [
				{"x": 50, "y": 50, "width": 20, "height": 10, "confidence": 0.9, "class": "pizza"},
				{"x": 10, "y": 10, "width": 4, "height": 4, "confidence": 0.2, "class": "apple"}
			]
		}`))

	detections, err := backend.Predict(context.Background(),
		image.NewRGBA(image.Rect(0, 0, 100, 100)),
		Options{Confidence: 0.5})
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.Equal(t, "pizza", detections[0].Label)
	assert.InDelta(t, 0.9, detections[0].Confidence, 1e-9)
	assert.Equal(t, [4]float64{40, 45, 60, 55}, detections[0].Box)
}

func TestRemotePredictRejectsMalformedPrediction(t *testing.T) {
	backend, err := newRemoteBackend(remoteTestSettings())
	require.NoError(t, err)

	httpmock.ActivateNonDefault(backend.client.HTTPClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost,
		`=~^https://detect\.example\.com/kitchen/food-detect/3`,
		httpmock.NewStringResponder(http.StatusOK, `{
			"predictions": [{"confidence": 0.9, "class": "pizza"}]
		}`))

	_, err = backend.Predict(context.Background(),
		image.NewRGBA(image.Rect(0, 0, 10, 10)), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed result")
}

func TestRemotePredictSurfacesHTTPError(t *testing.T) {
	backend, err := newRemoteBackend(remoteTestSettings())
	require.NoError(t, err)

	httpmock.ActivateNonDefault(backend.client.HTTPClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost,
		`=~^https://detect\.example\.com/kitchen/food-detect/3`,
		httpmock.NewStringResponder(http.StatusForbidden, `{"error":"bad key"}`))

	_, err = backend.Predict(context.Background(),
		image.NewRGBA(image.Rect(0, 0, 10, 10)), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
