package gocv

import (
	"context"
	"strings"
	"testing"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/detection"

	"github.com/stretchr/testify/require"
)

func TestClassifyBySizeShare(t *testing.T) {
	p := New(storage.NewMemoryStore(), detection.DefaultCostPolicy(), 100)
	regions := []region{
		{X: 0, Y: 0, Width: 5, Height: 5},         // below min area
		{X: 10, Y: 20, Width: 50, Height: 50},     // 0.25%
		{X: 100, Y: 100, Width: 150, Height: 100}, // 1.5%
		{X: 300, Y: 300, Width: 300, Height: 200}, // 6%
	}

	got := p.classify(frame{regions: regions, width: 1000, height: 1000, srcWidth: 1000, srcHeight: 1000})

	require.Len(t, got, 3)
	require.Equal(t, domain.SeverityMinor, got[0].Severity)
	require.Equal(t, "x:35,y:45", got[0].Location)
	require.Equal(t, domain.SeverityModerate, got[1].Severity)
	require.Equal(t, domain.SeveritySevere, got[2].Severity)
	for _, d := range got {
		require.GreaterOrEqual(t, d.Confidence, 0.55)
		require.LessOrEqual(t, d.Confidence, 0.95)
		require.Equal(t, detection.DefaultCostPolicy().Estimate(d.Severity, d.Confidence), d.EstimatedCost)
	}
}

func TestClassifyEmptyImage(t *testing.T) {
	p := New(storage.NewMemoryStore(), detection.DefaultCostPolicy(), 1)
	require.Empty(t, p.classify(frame{regions: []region{{Width: 1, Height: 1}}}))
}

func TestClassifyReportsSourcePixels(t *testing.T) {
	p := New(storage.NewMemoryStore(), detection.DefaultCostPolicy(), 100)
	// A 4000x2000 photo worked on at 1024x512.
	f := frame{
		regions:   []region{{X: 100, Y: 50, Width: 40, Height: 20}},
		width:     1024,
		height:    512,
		srcWidth:  4000,
		srcHeight: 2000,
	}

	got := p.classify(f)

	require.Len(t, got, 1)
	require.Equal(t, domain.BoundingBox{X: 391, Y: 195, Width: 156, Height: 78}, *got[0].BoundingBox)
	require.Equal(t, "x:469,y:234", got[0].Location)
}

func TestAnalyzeReportsMissingPhoto(t *testing.T) {
	p := New(storage.NewMemoryStore(), detection.DefaultCostPolicy(), 100)

	_, err := p.Analyze(context.Background(), detection.Request{Photo: detection.PhotoRef{Locator: "missing"}})

	require.Error(t, err)
}

func TestValidateConfigFollowsBuildTag(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "k", "image/jpeg", strings.NewReader("x"), 1))

	require.Equal(t, available, New(store, detection.DefaultCostPolicy(), 100).ValidateConfig(context.Background()))
	require.False(t, New(store, detection.DefaultCostPolicy(), 0).ValidateConfig(context.Background()))
}
