package mock

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/detection"

	"github.com/stretchr/testify/require"
)

func request(locator string, angle domain.Angle) detection.Request {
	return detection.Request{
		Photo: detection.PhotoRef{Locator: locator, ContentType: "image/jpeg"},
		Angle: angle,
		Phase: domain.PhasePickup,
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	p := New(detection.DefaultCostPolicy())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		req := request(fmt.Sprintf("assessments/a/pickup/front_%d.jpg", i), domain.AngleFront)
		first, err := p.Analyze(ctx, req)
		require.NoError(t, err)
		second, err := p.Analyze(ctx, req)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

func TestAnalyzeProducesWellFormedDetections(t *testing.T) {
	p := New(detection.DefaultCostPolicy())
	policy := detection.DefaultCostPolicy()
	ctx := context.Background()

	total := 0
	for i := 0; i < 50; i++ {
		res, err := p.Analyze(ctx, request(fmt.Sprintf("k%d", i), domain.AngleRoof))
		require.NoError(t, err)
		require.Equal(t, detection.AnalysisScore(res.Detections), res.AnalysisScore)
		for _, d := range res.Detections {
			total++
			_, err := domain.ParseLocation(d.Location)
			require.NoError(t, err)
			require.True(t, d.Severity.Valid())
			require.Equal(t, policy.Base(d.Severity), d.EstimatedCost)
			require.GreaterOrEqual(t, d.Confidence, 0.6)
			require.LessOrEqual(t, d.Confidence, 1.0)
			require.NotNil(t, d.BoundingBox)
			require.True(t, d.BoundingBox.Valid())
		}
	}
	require.Positive(t, total)
}

func TestAnalyzeFailsLoudlyOnUnusableLocator(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(detection.DefaultCostPolicy(), WithImageSource(store))
	ctx := context.Background()

	_, err := p.Analyze(ctx, request("", domain.AngleFront))
	require.Error(t, err)

	_, err = p.Analyze(ctx, request("missing.jpg", domain.AngleFront))
	require.Error(t, err)

	require.NoError(t, store.Put(ctx, "present.jpg", "image/jpeg", strings.NewReader("x"), 1))
	_, err = p.Analyze(ctx, request("present.jpg", domain.AngleFront))
	require.NoError(t, err)
}
