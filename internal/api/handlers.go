package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/foodlens/foodlens-go/internal/errors"
	"github.com/foodlens/foodlens-go/internal/inference"
	"github.com/foodlens/foodlens-go/internal/processor"
)

// maxImageBytes bounds the accepted request body size.
const maxImageBytes = 20 << 20

// Predict runs one image through the prediction pipeline. The image is
// taken from the multipart "file" field when present, otherwise from the
// raw request body.
func (c *Controller) Predict(ctx echo.Context) error {
	imageBytes, err := readImage(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read image from request", http.StatusBadRequest)
	}
	if len(imageBytes) == 0 {
		return c.HandleError(ctx, nil, "Request contains no image data", http.StatusBadRequest)
	}

	req := processor.Request{SessionID: ctx.QueryParam("session_id")}
	if v := ctx.QueryParam("confidence"); v != "" {
		confidence, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid confidence parameter", http.StatusBadRequest)
		}
		req.Confidence = &confidence
	}
	if v := ctx.QueryParam("iou"); v != "" {
		iou, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid iou parameter", http.StatusBadRequest)
		}
		req.IoU = &iou
	}
	if v := ctx.QueryParam("max_detections"); v != "" {
		maxDet, err := strconv.Atoi(v)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid max_detections parameter", http.StatusBadRequest)
		}
		req.MaxDetections = &maxDet
	}

	result, err := c.Processor.Process(ctx.Request().Context(), imageBytes, req)
	if err != nil {
		if errors.Is(err, inference.ErrInvalidImage) {
			return c.HandleError(ctx, err, "Image could not be decoded", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Prediction failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, result)
}

func readImage(ctx echo.Context) ([]byte, error) {
	file, err := ctx.FormFile("file")
	if err == nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return io.ReadAll(io.LimitReader(src, maxImageBytes))
	}

	return io.ReadAll(io.LimitReader(ctx.Request().Body, maxImageBytes))
}

// RecentPredictions returns the newest prediction events with their items.
func (c *Controller) RecentPredictions(ctx echo.Context) error {
	if c.Store == nil {
		return c.HandleError(ctx, nil, "Prediction log is not enabled", http.StatusServiceUnavailable)
	}

	limit := queryInt(ctx, "limit", 10)
	offset := queryInt(ctx, "offset", 0)

	predictions, err := c.Store.GetRecentPredictions(limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query recent predictions", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"predictions": predictions,
		"count":       len(predictions),
	})
}

// GetStatistics returns aggregate statistics for a trailing day window.
func (c *Controller) GetStatistics(ctx echo.Context) error {
	if c.Store == nil {
		return c.HandleError(ctx, nil, "Prediction log is not enabled", http.StatusServiceUnavailable)
	}

	days := queryInt(ctx, "days", 7)

	stats, err := c.Store.GetStatistics(days)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute statistics", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, stats)
}

// GetTrends returns daily calorie trends for a trailing day window.
func (c *Controller) GetTrends(ctx echo.Context) error {
	if c.Store == nil {
		return c.HandleError(ctx, nil, "Prediction log is not enabled", http.StatusServiceUnavailable)
	}

	days := queryInt(ctx, "days", 30)

	trends, err := c.Store.GetTrends(days)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute trends", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"trends": trends,
		"days":   days,
	})
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	v := ctx.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
