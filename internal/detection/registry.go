package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"vehicle_inspection_backend/platform/apperr"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/sanitize"
)

// Registry maps provider names to providers and tracks the active one.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	active    string
	timeout   time.Duration
	log       *logger.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCallTimeout bounds every Analyze call. Zero disables the bound.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or replaces the provider stored under name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// SetActive activates a registered provider after checking its config.
// On failure the previously active provider stays active.
func (r *Registry) SetActive(ctx context.Context, name string) error {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return apperr.NotFound("detection provider not registered").WithDetails(map[string]any{
			"provider":  name,
			"available": r.List(),
		})
	}

	if !p.ValidateConfig(ctx) {
		return apperr.Validation("detection provider invalid").WithDetails(map[string]any{
			"provider": name,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: the entry may have been replaced while validating.
	if r.providers[name] != p {
		return apperr.Conflict("detection provider changed during activation")
	}
	r.active = name
	return nil
}

// ActivateWithFallback activates preferred, or fallback when preferred
// cannot be activated.
func (r *Registry) ActivateWithFallback(ctx context.Context, preferred, fallback string) error {
	err := r.SetActive(ctx, preferred)
	if err == nil {
		return nil
	}
	if preferred == fallback {
		return err
	}
	if r.log != nil {
		r.log.Warn("detection provider unavailable, using fallback",
			"provider", preferred,
			"fallback", fallback,
			"error", err,
		)
	}
	if fbErr := r.SetActive(ctx, fallback); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

// Active returns the name of the active provider, or "" when none is set.
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyze delegates to the active provider. Provider failures come back as
// a single ProviderFailure error carrying the provider name.
func (r *Registry) Analyze(ctx context.Context, req Request) (*Result, error) {
	r.mu.RLock()
	name := r.active
	p := r.providers[name]
	r.mu.RUnlock()

	if p == nil {
		return nil, apperr.Precondition("no active detection provider")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.Analyze(ctx, req)
	if err == nil {
		res, err = normalizeResult(res)
	}
	if r.log != nil {
		count := 0
		if res != nil {
			count = len(res.Detections)
		}
		r.log.WithContext(ctx).ProviderCall(name, string(req.Angle), string(req.Phase), count, float64(time.Since(start).Milliseconds()), err)
	}
	if err != nil {
		return nil, apperr.ProviderFailure("analysis failed", fmt.Errorf("provider %s: %w", name, err)).
			WithDetails(map[string]any{
				"provider": name,
				"angle":    req.Angle,
				"phase":    req.Phase,
			})
	}
	return res, nil
}

const maxDescriptionLen = 500

func normalizeResult(res *Result) (*Result, error) {
	if res == nil {
		return nil, errors.New("provider returned no result")
	}
	out := &Result{Detections: slices.Clone(res.Detections)}
	for i := range out.Detections {
		d := &out.Detections[i]
		if !d.Severity.Valid() {
			return nil, fmt.Errorf("detection %d: unknown severity %q", i, d.Severity)
		}
		if d.EstimatedCost < 0 {
			return nil, fmt.Errorf("detection %d: negative cost", i)
		}
		if d.BoundingBox != nil && !d.BoundingBox.Valid() {
			d.BoundingBox = nil
		}
		d.Confidence = clamp01(d.Confidence)
		d.Description = sanitize.Truncate(d.Description, maxDescriptionLen)
	}
	out.AnalysisScore = AnalysisScore(out.Detections)
	return out, nil
}
