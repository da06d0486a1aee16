package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/platform/apperr"
	"vehicle_inspection_backend/platform/logger"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name   string
	valid  bool
	result *Result
	err    error
	delay  time.Duration
}

func (f *fakeProvider) Name() string                        { return f.name }
func (f *fakeProvider) ValidateConfig(context.Context) bool { return f.valid }
func (f *fakeProvider) Analyze(ctx context.Context, _ Request) (*Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

var frontRequest = Request{
	Photo: PhotoRef{Locator: "k", ContentType: "image/jpeg"},
	Angle: domain.AngleFront,
	Phase: domain.PhasePickup,
}

func TestRegistryAnalyzeWithoutActiveProvider(t *testing.T) {
	r := NewRegistry(logger.Nop())

	_, err := r.Analyze(context.Background(), frontRequest)

	require.True(t, apperr.Is(err, apperr.KindPrecondition))
}

func TestRegistrySetActiveUnknownProvider(t *testing.T) {
	r := NewRegistry(logger.Nop())

	err := r.SetActive(context.Background(), "nope")

	require.True(t, apperr.Is(err, apperr.KindNotFound))
	require.Empty(t, r.Active())
}

func TestRegistryInvalidProviderKeepsPreviousActive(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(logger.Nop())
	r.Register("good", &fakeProvider{name: "good", valid: true, result: &Result{}})
	r.Register("broken", &fakeProvider{name: "broken", valid: false})

	require.NoError(t, r.SetActive(ctx, "good"))
	err := r.SetActive(ctx, "broken")

	require.True(t, apperr.Is(err, apperr.KindValidation))
	require.Equal(t, "good", r.Active())
}

func TestRegistryRegisterIsIdempotentReplace(t *testing.T) {
	r := NewRegistry(logger.Nop())
	r.Register("b", &fakeProvider{name: "b"})
	r.Register("a", &fakeProvider{name: "a"})
	r.Register("b", &fakeProvider{name: "b"})

	require.Equal(t, []string{"a", "b"}, r.List())
}

func TestRegistryActivateWithFallback(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(logger.Nop())
	r.Register("gemini", &fakeProvider{name: "gemini", valid: false})
	r.Register("mock", &fakeProvider{name: "mock", valid: true})

	require.NoError(t, r.ActivateWithFallback(ctx, "gemini", "mock"))
	require.Equal(t, "mock", r.Active())

	require.Error(t, r.ActivateWithFallback(ctx, "gemini", "missing"))
	require.Equal(t, "mock", r.Active())
}

func TestRegistryWrapsProviderErrors(t *testing.T) {
	ctx := context.Background()
	backendErr := errors.New("connection refused")
	r := NewRegistry(logger.Nop())
	r.Register("flaky", &fakeProvider{name: "flaky", valid: true, err: backendErr})
	require.NoError(t, r.SetActive(ctx, "flaky"))

	_, err := r.Analyze(ctx, frontRequest)

	require.True(t, apperr.Is(err, apperr.KindProviderFailure))
	require.ErrorIs(t, err, backendErr)
	require.Contains(t, err.Error(), "flaky")
}

func TestRegistryRejectsNilAndMalformedResults(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(logger.Nop())
	r.Register("nil", &fakeProvider{name: "nil", valid: true})
	r.Register("bad", &fakeProvider{name: "bad", valid: true, result: &Result{
		Detections: []Detection{{Severity: "catastrophic", Location: "x:1,y:1"}},
	}})

	require.NoError(t, r.SetActive(ctx, "nil"))
	_, err := r.Analyze(ctx, frontRequest)
	require.True(t, apperr.Is(err, apperr.KindProviderFailure))

	require.NoError(t, r.SetActive(ctx, "bad"))
	_, err = r.Analyze(ctx, frontRequest)
	require.True(t, apperr.Is(err, apperr.KindProviderFailure))
}

func TestRegistryNormalizesScore(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(logger.Nop())
	r.Register("p", &fakeProvider{name: "p", valid: true, result: &Result{
		Detections: []Detection{
			{Severity: domain.SeverityMinor, Location: "x:1,y:1", Confidence: 1.4},
			{Severity: domain.SeverityMinor, Location: "x:2,y:2", Confidence: 0.6},
		},
		AnalysisScore: 42,
	}})
	require.NoError(t, r.SetActive(ctx, "p"))

	res, err := r.Analyze(ctx, frontRequest)

	require.NoError(t, err)
	require.Equal(t, 1.0, res.Detections[0].Confidence)
	require.InDelta(t, 0.8, res.AnalysisScore, 1e-9)
}

func TestRegistryCallTimeout(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(logger.Nop(), WithCallTimeout(10*time.Millisecond))
	r.Register("slow", &fakeProvider{name: "slow", valid: true, result: &Result{}, delay: time.Second})
	require.NoError(t, r.SetActive(ctx, "slow"))

	_, err := r.Analyze(ctx, frontRequest)

	require.True(t, apperr.Is(err, apperr.KindProviderFailure))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalysisScore(t *testing.T) {
	require.Equal(t, 1.0, AnalysisScore(nil))
	require.InDelta(t, 0.75, AnalysisScore([]Detection{{Confidence: 0.5}, {Confidence: 1.0}}), 1e-9)
	require.Equal(t, 1.0, AnalysisScore([]Detection{{Confidence: 1.5}, {Confidence: 1.5}}))
}

func TestCostPolicy(t *testing.T) {
	p := DefaultCostPolicy()
	require.Equal(t, 200.0, p.Base(domain.SeverityMinor))
	require.Equal(t, 500.0, p.Base(domain.SeverityModerate))
	require.Equal(t, 1200.0, p.Base(domain.SeveritySevere))
	require.Equal(t, 1200.0, p.Estimate(domain.SeveritySevere, 1))
	require.Equal(t, 250.0, p.Estimate(domain.SeverityModerate, 0))
	require.Equal(t, 165.0, p.Estimate(domain.SeverityMinor, 0.65))
}

func TestLoadCostPolicyFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "costs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("minor: 250\nsevere: 1500\n"), 0o600))

	p, err := LoadCostPolicy(path)
	require.NoError(t, err)
	require.Equal(t, CostPolicy{Minor: 250, Moderate: 500, Severe: 1500}, p)

	require.NoError(t, os.WriteFile(path, []byte("minor: -1\n"), 0o600))
	_, err = LoadCostPolicy(path)
	require.Error(t, err)

	def, err := LoadCostPolicy("")
	require.NoError(t, err)
	require.Equal(t, DefaultCostPolicy(), def)
}
