// Package mock is a deterministic damage detector for development and tests.
// The same photo, angle and phase always produce the same detections.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/detection"
)

// Name is the registry key of this provider.
const Name = "mock"

const imageSpan = 1000

var descriptions = []string{
	"Scratch on paint surface",
	"Dent in body panel",
	"Chipped paint",
	"Cracked trim",
	"Scuffed bumper",
}

// Provider derives detections from an FNV hash of the request.
type Provider struct {
	policy detection.CostPolicy
	source detection.ImageSource
}

// Option configures the provider.
type Option func(*Provider)

// WithImageSource makes Analyze check that the photo exists.
func WithImageSource(src detection.ImageSource) Option {
	return func(p *Provider) {
		p.source = src
	}
}

// New creates a mock provider pricing detections with policy.
func New(policy detection.CostPolicy, opts ...Option) *Provider {
	p := &Provider{policy: policy}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements detection.Provider.
func (p *Provider) Name() string { return Name }

// ValidateConfig implements detection.Provider. The mock needs no configuration.
func (p *Provider) ValidateConfig(context.Context) bool { return true }

// Analyze implements detection.Provider.
func (p *Provider) Analyze(ctx context.Context, req detection.Request) (*detection.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Photo.Locator == "" {
		return nil, fmt.Errorf("photo locator is empty")
	}
	if p.source != nil {
		rc, err := p.source.Open(ctx, req.Photo.Locator)
		if err != nil {
			return nil, fmt.Errorf("open photo: %w", err)
		}
		_ = rc.Close()
	}

	seed := hashRequest(req)
	count := int(seed % 3)
	detections := make([]detection.Detection, 0, count)
	for i := 0; i < count; i++ {
		v := mix(seed, uint64(i))
		sev := domain.AllSeverities()[v%3]
		w := 20 + int((v>>8)%120)
		h := 20 + int((v>>16)%80)
		box := domain.BoundingBox{
			X:      int((v >> 24) % uint64(imageSpan-w)),
			Y:      int((v >> 36) % uint64(imageSpan-h)),
			Width:  w,
			Height: h,
		}
		detections = append(detections, detection.Detection{
			Description:   descriptions[(v>>48)%uint64(len(descriptions))],
			Severity:      sev,
			Location:      box.Center().String(),
			EstimatedCost: p.policy.Base(sev),
			Confidence:    0.6 + float64((v>>52)%40)/100,
			BoundingBox:   &box,
		})
	}

	return &detection.Result{
		Detections:    detections,
		AnalysisScore: detection.AnalysisScore(detections),
	}, nil
}

func hashRequest(req detection.Request) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.Photo.Locator))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.Angle))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.Phase))
	return h.Sum64()
}

// mix is splitmix64 over seed+i.
func mix(seed, i uint64) uint64 {
	z := seed + (i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

var _ detection.Provider = (*Provider)(nil)
