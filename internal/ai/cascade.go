package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/internal/upstream"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

const (
	defaultCallTimeout    = 25 * time.Second
	defaultCascadeTimeout = 55 * time.Second
)

// CascadeOptions tunes provider selection and time budgets.
type CascadeOptions struct {
	// Policy is config.PolicyStrict or config.PolicyFallback. Empty means strict.
	Policy         string
	CallTimeout    time.Duration
	CascadeTimeout time.Duration
	// Priority overrides models.PriorityOrder.
	Priority []models.ProviderID
}

// Cascade tries providers in priority order until one yields a valid analysis.
type Cascade struct {
	registry *Registry
	client   *upstream.Client
	opts     CascadeOptions
}

// NewCascade creates a new Cascade.
func NewCascade(registry *Registry, client *upstream.Client, opts CascadeOptions) *Cascade {
	if opts.Policy == "" {
		opts.Policy = config.PolicyStrict
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.CascadeTimeout <= 0 {
		opts.CascadeTimeout = defaultCascadeTimeout
	}
	if len(opts.Priority) == 0 {
		opts.Priority = models.PriorityOrder
	}
	return &Cascade{registry: registry, client: client, opts: opts}
}

// SelectOrder returns the providers to try for a request preferring preferred
// (empty for no preference).
func (c *Cascade) SelectOrder(ctx context.Context, preferred models.ProviderID) ([]models.ProviderID, error) {
	if preferred != "" {
		id, ok := models.ParseProviderID(string(preferred))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, preferred)
		}
		preferred = id
	}

	var available []models.ProviderID
	for _, id := range c.opts.Priority {
		if c.registry.IsAvailable(id) {
			available = append(available, id)
		}
	}

	if preferred != "" {
		switch {
		case c.registry.IsAvailable(preferred) && c.opts.Policy == config.PolicyStrict:
			return []models.ProviderID{preferred}, nil
		case c.registry.IsAvailable(preferred):
			order := []models.ProviderID{preferred}
			for _, id := range available {
				if id != preferred {
					order = append(order, id)
				}
			}
			return order, nil
		case c.opts.Policy == config.PolicyStrict:
			return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, preferred)
		default:
			slog.WarnContext(ctx, "preferred provider not configured, using priority order", "provider", preferred)
		}
	}

	if len(available) == 0 {
		return nil, ErrNoProviderConfigured
	}
	return available, nil
}

// Analyze runs the cascade for req. It returns the first successful analysis,
// or an *AllProvidersFailedError listing every attempt.
func (c *Cascade) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	order, err := c.SelectOrder(ctx, req.PreferredProvider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.CascadeTimeout)
	defer cancel()

	var attempts []Attempt
	for _, id := range order {
		adapter, ok := c.registry.Adapter(id)
		if !ok {
			continue
		}
		for _, model := range adapter.Models() {
			if ctx.Err() != nil {
				return nil, c.fail(ctx, attempts, ctx.Err())
			}

			start := time.Now()
			res, err := c.attempt(ctx, adapter, model, req.Text)
			if err == nil {
				slog.InfoContext(ctx, "analysis succeeded",
					"provider", id,
					"model", model,
					"attempt", len(attempts)+1,
					"text_len", len(req.Text),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				return res, nil
			}

			attempts = append(attempts, Attempt{Provider: id, Model: model, Err: err})
			slog.WarnContext(ctx, "provider attempt failed",
				"provider", id,
				"model", model,
				"attempt", len(attempts),
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}

	return nil, c.fail(ctx, attempts, ctx.Err())
}

func (c *Cascade) attempt(ctx context.Context, adapter models.ProviderAdapter, model, text string) (models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	httpReq, err := adapter.BuildRequest(ctx, c.registry.Credential(adapter.ID()), model, text)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newUpstreamHTTPError(resp.StatusCode, resp.Body)
	}

	raw, err := adapter.ExtractRawText(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpstreamResponse, err)
	}

	return Normalize(raw)
}

func (c *Cascade) fail(ctx context.Context, attempts []Attempt, cause error) error {
	err := &AllProvidersFailedError{Attempts: attempts, Cause: cause}
	slog.ErrorContext(ctx, "all providers failed", "attempts", len(attempts), "error", err)
	return err
}
