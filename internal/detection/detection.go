// Package detection defines the damage-detection provider contract and the
// registry that selects which provider serves analysis requests.
package detection

import (
	"context"
	"fmt"
	"io"

	"vehicle_inspection_backend/internal/assessments/domain"
)

// PhotoRef points at a stored photo.
type PhotoRef struct {
	Locator     string
	ContentType string
}

// Request asks a provider to analyze one photo.
type Request struct {
	Photo PhotoRef
	Angle domain.Angle
	Phase domain.Phase
}

// Detection is one damage found by a provider. Location is "x:<int>,y:<int>"
// in source image pixels.
type Detection struct {
	Description   string
	Severity      domain.Severity
	Location      string
	EstimatedCost float64
	Confidence    float64
	BoundingBox   *domain.BoundingBox
}

// Result is a provider's answer for one photo.
type Result struct {
	Detections    []Detection
	AnalysisScore float64
}

// Provider is a damage-detection backend. Analyze must return an error, never
// an empty result, when the backend or the photo cannot be reached.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req Request) (*Result, error)
	ValidateConfig(ctx context.Context) bool
}

// ImageSource loads photo bytes by locator.
type ImageSource interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// AnalysisScore is 1.0 for a clean photo, otherwise the mean detection
// confidence capped at 1.0.
func AnalysisScore(detections []Detection) float64 {
	if len(detections) == 0 {
		return 1.0
	}
	var sum float64
	for _, d := range detections {
		sum += d.Confidence
	}
	return min(sum/float64(len(detections)), 1.0)
}

// ReadImage loads a photo through src, refusing objects larger than maxBytes.
func ReadImage(ctx context.Context, src ImageSource, ref PhotoRef, maxBytes int64) ([]byte, error) {
	if ref.Locator == "" {
		return nil, fmt.Errorf("photo locator is empty")
	}
	rc, err := src.Open(ctx, ref.Locator)
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", ref.Locator, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo %s: %w", ref.Locator, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("photo %s exceeds %d bytes", ref.Locator, maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("photo %s is empty", ref.Locator)
	}
	return data, nil
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}
