// Package gemini detects vehicle damage with a Gemini vision model.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/detection"

	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Name is the registry key of this provider.
const Name = "gemini"

const (
	maxImageBytes = 20 << 20
	// Gemini reports boxes on a 0..1000 grid regardless of image size.
	boxScale = 1000
)

// Config provides the provider settings.
type Config interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// generator is the subset of *genai.Models the provider calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider asks Gemini for a JSON list of damages on one photo.
type Provider struct {
	models  generator
	model   string
	source  detection.ImageSource
	policy  detection.CostPolicy
	limiter *rate.Limiter
}

// Option configures the provider.
type Option func(*Provider)

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Provider) {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates the provider. Without an API key it is still returned but
// ValidateConfig reports false, so the registry refuses to activate it.
func New(ctx context.Context, cfg Config, source detection.ImageSource, policy detection.CostPolicy, opts ...Option) (*Provider, error) {
	p := &Provider{
		model:   cfg.GetGeminiModel(),
		source:  source,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(p)
	}

	if strings.TrimSpace(cfg.GetGeminiAPIKey()) == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.models = client.Models
	return p, nil
}

// Name implements detection.Provider.
func (p *Provider) Name() string { return Name }

// ValidateConfig implements detection.Provider.
func (p *Provider) ValidateConfig(context.Context) bool {
	return p.models != nil && p.model != "" && p.source != nil
}

// Analyze implements detection.Provider.
func (p *Provider) Analyze(ctx context.Context, req detection.Request) (*detection.Result, error) {
	if p.models == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	data, err := detection.ReadImage(ctx, p.source, req.Photo, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	mimeType := req.Photo.ContentType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			genai.NewPartFromText(buildPrompt(req)),
		},
	}}

	temperature := float32(0)
	resp, err := p.models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}

	width, height := imageSize(data)
	detections, err := parseDetections(resp.Text(), width, height, p.policy)
	if err != nil {
		return nil, err
	}
	return &detection.Result{
		Detections:    detections,
		AnalysisScore: detection.AnalysisScore(detections),
	}, nil
}

func buildPrompt(req detection.Request) string {
	return fmt.Sprintf(`You are inspecting a rental vehicle photographed from the %s at %s.
List every visible exterior damage (scratches, dents, cracks, chips, broken parts).
For each damage return:
- description: short plain-language description
- severity: one of minor, moderate, severe
- box_2d: [ymin, xmin, ymax, xmax] on a 0-1000 grid
- confidence: number between 0 and 1
Return an empty list when the vehicle shows no damage. Ignore dirt, reflections and shadows.`,
		strings.ReplaceAll(string(req.Angle), "_", " "), req.Phase)
}

var responseSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
			"severity":    {Type: genai.TypeString, Enum: []string{"minor", "moderate", "severe"}},
			"box_2d":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeInteger}},
			"confidence":  {Type: genai.TypeNumber},
		},
		Required: []string{"description", "severity", "box_2d", "confidence"},
	},
}

type rawDetection struct {
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Box         []float64 `json:"box_2d"`
	Confidence  float64   `json:"confidence"`
}

func parseDetections(text string, width, height int, policy detection.CostPolicy) ([]detection.Detection, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")

	var raw []rawDetection
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	if len(raw) > 0 && (width <= 0 || height <= 0) {
		return nil, fmt.Errorf("cannot place %d detections: image dimensions unknown", len(raw))
	}

	out := make([]detection.Detection, 0, len(raw))
	for i, r := range raw {
		sev, err := domain.ParseSeverity(r.Severity)
		if err != nil {
			return nil, fmt.Errorf("detection %d: unknown severity %q", i, r.Severity)
		}
		if len(r.Box) != 4 {
			return nil, fmt.Errorf("detection %d: box_2d needs 4 values, got %d", i, len(r.Box))
		}
		box := scaleBox(r.Box, width, height)
		conf := max(0, min(r.Confidence, 1))
		out = append(out, detection.Detection{
			Description:   strings.TrimSpace(r.Description),
			Severity:      sev,
			Location:      box.Center().String(),
			EstimatedCost: policy.Estimate(sev, conf),
			Confidence:    conf,
			BoundingBox:   &box,
		})
	}
	return out, nil
}

// scaleBox converts [ymin, xmin, ymax, xmax] on the 0..1000 grid to pixels.
func scaleBox(b []float64, width, height int) domain.BoundingBox {
	clampGrid := func(v float64) float64 { return max(0, min(v, boxScale)) }
	ymin, xmin := clampGrid(b[0]), clampGrid(b[1])
	ymax, xmax := clampGrid(b[2]), clampGrid(b[3])
	if ymax < ymin {
		ymin, ymax = ymax, ymin
	}
	if xmax < xmin {
		xmin, xmax = xmax, xmin
	}
	sx := float64(width) / boxScale
	sy := float64(height) / boxScale
	return domain.BoundingBox{
		X:      int(xmin * sx),
		Y:      int(ymin * sy),
		Width:  int((xmax - xmin) * sx),
		Height: int((ymax - ymin) * sy),
	}
}

// imageSize decodes the header only. It returns 0, 0 for formats without a
// registered decoder; boxes are never reported on the model grid.
func imageSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

var _ detection.Provider = (*Provider)(nil)
