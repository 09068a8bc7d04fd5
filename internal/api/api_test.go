package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodlens/foodlens-go/internal/broadcast"
	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/datastore"
	"github.com/foodlens/foodlens-go/internal/inference"
	"github.com/foodlens/foodlens-go/internal/processor"
)

// stubBackend returns canned detections.
type stubBackend struct {
	detections []inference.Detection
	err        error
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Predict(_ context.Context, _ image.Image, _ inference.Options) ([]inference.Detection, error) {
	return s.detections, s.err
}

// stubStore implements datastore.Interface with canned responses.
type stubStore struct {
	recent    []datastore.Prediction
	recentErr error
	stats     *datastore.Statistics
	trends    []datastore.DailyTrend
}

func (s *stubStore) Open() error  { return nil }
func (s *stubStore) Close() error { return nil }

func (s *stubStore) Save(p *datastore.Prediction, items []datastore.DetectedItem) error {
	p.ID = 1
	return nil
}

func (s *stubStore) GetRecentPredictions(limit, offset int) ([]datastore.Prediction, error) {
	return s.recent, s.recentErr
}

func (s *stubStore) GetStatistics(days int) (*datastore.Statistics, error) {
	if s.stats != nil {
		return s.stats, nil
	}
	return &datastore.Statistics{TopFoods: []datastore.FoodCount{}, DailyBreakdown: []datastore.DailyCount{}}, nil
}

func (s *stubStore) GetTrends(days int) ([]datastore.DailyTrend, error) {
	return s.trends, nil
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Detector.Threshold = 0.25
	settings.Realtime.StatsInterval = 5
	settings.WebServer.Port = "8080"
	return settings
}

func newTestController(t *testing.T, backend inference.Backend, mode inference.Mode, store datastore.Interface) *Controller {
	t.Helper()
	settings := testSettings()
	router := inference.NewRouterWithBackend(backend, mode)
	hub := broadcast.NewHub()
	proc := processor.New(settings, router, store, hub, nil, nil)
	return New(settings, store, proc, hub, nil)
}

func testImagePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func doRequest(c *Controller, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheckHealthy(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, &stubStore{})

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "local", body["mode"])
	assert.Equal(t, "connected", body["database"])
}

func TestHealthCheckDegradedWithoutBackend(t *testing.T) {
	c := newTestController(t, nil, inference.ModeNone, nil)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "none", body["mode"])
	assert.Equal(t, "disabled", body["database"])
}

func TestHealthCheckDegradedWhenDatabaseFails(t *testing.T) {
	store := &stubStore{recentErr: fmt.Errorf("connection refused")}
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, store)

	body := decodeBody(t, doRequest(c, httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["database"])
}

func TestPredictWithRawBody(t *testing.T) {
	backend := &stubBackend{detections: []inference.Detection{
		{Label: "pizza", Confidence: 0.9, Box: [4]float64{10, 10, 50, 50}},
	}}
	c := newTestController(t, backend, inference.ModeLocal, &stubStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict",
		bytes.NewReader(testImagePNG(t, 64, 64)))
	rec := doRequest(c, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Greater(t, body["total_calories"].(float64), 0.0)
	assert.NotEmpty(t, body["session_id"])
	assert.EqualValues(t, 1, body["log_id"])
}

func TestPredictWithMultipartFile(t *testing.T) {
	backend := &stubBackend{detections: []inference.Detection{
		{Label: "salad", Confidence: 0.8, Box: [4]float64{0, 0, 20, 20}},
	}}
	c := newTestController(t, backend, inference.ModeLocal, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "meal.png")
	require.NoError(t, err)
	_, err = part.Write(testImagePNG(t, 32, 32))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := doRequest(c, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	items := body["items"].([]any)
	require.Len(t, items, 1)
}

func TestPredictRejectsInvalidImage(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict",
		bytes.NewReader([]byte("definitely not an image")))
	rec := doRequest(c, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["correlation_id"])
}

func TestPredictRejectsEmptyBody(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, nil)

	rec := doRequest(c, httptest.NewRequest(http.MethodPost, "/api/v1/predict", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictSurfacesBackendFailure(t *testing.T) {
	backend := &stubBackend{err: fmt.Errorf("backend down")}
	c := newTestController(t, backend, inference.ModeLocal, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict",
		bytes.NewReader(testImagePNG(t, 16, 16)))
	rec := doRequest(c, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPredictRejectsBadConfidenceParam(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict?confidence=high",
		bytes.NewReader(testImagePNG(t, 16, 16)))
	rec := doRequest(c, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentPredictions(t *testing.T) {
	store := &stubStore{recent: []datastore.Prediction{
		{ID: 2, SessionID: "s2"},
		{ID: 1, SessionID: "s1"},
	}}
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, store)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/recent?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])
}

func TestRecentPredictionsWithoutStore(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, nil)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/predictions/recent", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatistics(t *testing.T) {
	store := &stubStore{stats: &datastore.Statistics{
		Count:          3,
		TotalCalories:  600,
		TopFoods:       []datastore.FoodCount{{CanonicalLabel: "pizza", Count: 2}},
		DailyBreakdown: []datastore.DailyCount{},
	}}
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, store)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/statistics?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["count"])
	assert.EqualValues(t, 600, body["sum_total_calories"])
}

func TestGetTrends(t *testing.T) {
	store := &stubStore{trends: []datastore.DailyTrend{
		{Date: "2026-08-30", Count: 2, TotalCalories: 500},
		{Date: "2026-08-31", Count: 1, TotalCalories: 300},
	}}
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, store)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/trends?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	trends := body["trends"].([]any)
	assert.Len(t, trends, 2)
	assert.EqualValues(t, 7, body["days"])
}

func TestConnectionStats(t *testing.T) {
	c := newTestController(t, &stubBackend{}, inference.ModeLocal, nil)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/ws/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["total_connections"])
}
