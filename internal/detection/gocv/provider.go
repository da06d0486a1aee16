// Package gocv detects surface damage with classical OpenCV edge and contour
// analysis. The OpenCV part only builds with the "gocv" build tag; without it
// the provider registers but never validates.
package gocv

import (
	"context"
	"fmt"
	"math"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/detection"
)

// Name is the registry key of this provider.
const Name = "gocv"

const maxImageBytes = 20 << 20

// region is one contour bounding rect found in the image.
type region struct {
	X, Y, Width, Height int
}

func (r region) area() int {
	return r.Width * r.Height
}

// frame holds the regions found in the working image together with the
// working and source dimensions.
type frame struct {
	regions       []region
	width, height int
	srcWidth      int
	srcHeight     int
}

// sourceBox maps a working-image region back to source-image pixels.
func (f frame) sourceBox(r region) domain.BoundingBox {
	sx, sy := 1.0, 1.0
	if f.width > 0 && f.srcWidth > 0 {
		sx = float64(f.srcWidth) / float64(f.width)
	}
	if f.height > 0 && f.srcHeight > 0 {
		sy = float64(f.srcHeight) / float64(f.height)
	}
	return domain.BoundingBox{
		X:      int(math.Round(float64(r.X) * sx)),
		Y:      int(math.Round(float64(r.Y) * sy)),
		Width:  int(math.Round(float64(r.Width) * sx)),
		Height: int(math.Round(float64(r.Height) * sy)),
	}
}

// Provider turns contour regions into damage detections.
type Provider struct {
	source  detection.ImageSource
	policy  detection.CostPolicy
	minArea float64
	maxSide int
}

// New creates the provider. minArea is the smallest region, in pixels of
// the working image (longer side at most 1024), reported as damage.
func New(source detection.ImageSource, policy detection.CostPolicy, minArea float64) *Provider {
	return &Provider{
		source:  source,
		policy:  policy,
		minArea: minArea,
		maxSide: 1024,
	}
}

// Name implements detection.Provider.
func (p *Provider) Name() string { return Name }

// ValidateConfig implements detection.Provider.
func (p *Provider) ValidateConfig(context.Context) bool {
	return available && p.source != nil && p.minArea > 0
}

// Analyze implements detection.Provider.
func (p *Provider) Analyze(ctx context.Context, req detection.Request) (*detection.Result, error) {
	data, err := detection.ReadImage(ctx, p.source, req.Photo, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := findRegions(data, p.maxSide)
	if err != nil {
		return nil, fmt.Errorf("find regions: %w", err)
	}

	detections := p.classify(f)
	return &detection.Result{
		Detections:    detections,
		AnalysisScore: detection.AnalysisScore(detections),
	}, nil
}

// classify maps regions to detections. minArea and severity are judged in
// the working image; boxes and locations are reported in source pixels.
func (p *Provider) classify(f frame) []detection.Detection {
	total := float64(f.width * f.height)
	out := make([]detection.Detection, 0, len(f.regions))
	if total <= 0 {
		return out
	}

	for _, r := range f.regions {
		if float64(r.area()) < p.minArea {
			continue
		}
		ratio := float64(r.area()) / total
		sev, desc := severityFor(ratio)
		conf := confidenceFor(ratio)
		box := f.sourceBox(r)
		out = append(out, detection.Detection{
			Description:   desc,
			Severity:      sev,
			Location:      box.Center().String(),
			EstimatedCost: p.policy.Estimate(sev, conf),
			Confidence:    conf,
			BoundingBox:   &box,
		})
	}
	return out
}

func severityFor(ratio float64) (domain.Severity, string) {
	switch {
	case ratio < 0.01:
		return domain.SeverityMinor, "Small surface mark"
	case ratio < 0.04:
		return domain.SeverityModerate, "Surface irregularity"
	default:
		return domain.SeveritySevere, "Large surface irregularity"
	}
}

// confidenceFor grows with region size between 0.55 and 0.95.
func confidenceFor(ratio float64) float64 {
	return max(0.55, min(0.55+ratio*5, 0.95))
}

var _ detection.Provider = (*Provider)(nil)
