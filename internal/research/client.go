package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// Default model tiers and pricing. Overridable via options so configuration
// stays out of this package.
var (
	defaultModels = map[AccuracyLevel]string{
		AccuracyHigh:   "o3-deep-research",
		AccuracyMedium: "o4-mini-deep-research",
	}
	defaultPricing = map[AccuracyLevel]float64{
		AccuracyHigh:   0.04,
		AccuracyMedium: 0.006,
	}
)

// Client performs research calls against the OpenAI Responses API with
// web-search augmentation. It never retries internally: retry policy belongs
// to the underlying transport (option.WithMaxRetries).
type Client struct {
	api     oai.Client
	models  map[AccuracyLevel]string
	pricing map[AccuracyLevel]float64
	logger  *slog.Logger
}

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	models     map[AccuracyLevel]string
	pricing    map[AccuracyLevel]float64
	logger     *slog.Logger
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries bounds transport-level retries on transient failures.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithModel overrides the downstream model for one accuracy level.
func WithModel(level AccuracyLevel, model string) Option {
	return func(c *config) { c.models[level] = model }
}

// WithPricing overrides the per-1K-token cost for one accuracy level.
func WithPricing(level AccuracyLevel, per1K float64) Option {
	return func(c *config) { c.pricing[level] = per1K }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New constructs a research Client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("research: apiKey must not be empty")
	}

	cfg := &config{
		models:  map[AccuracyLevel]string{},
		pricing: map[AccuracyLevel]float64{},
	}
	for l, m := range defaultModels {
		cfg.models[l] = m
	}
	for l, p := range defaultPricing {
		cfg.pricing[l] = p
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.maxRetries > 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Client{
		api:     oai.NewClient(reqOpts...),
		models:  cfg.models,
		pricing: cfg.pricing,
		logger:  cfg.logger,
	}, nil
}

// Ready reports whether the client is fully configured: a model and a
// positive per-1K rate for every accuracy level. It makes no network call and
// backs the /readyz probe.
func (c *Client) Ready(_ context.Context) error {
	for _, level := range []AccuracyLevel{AccuracyHigh, AccuracyMedium} {
		if c.models[level] == "" {
			return fmt.Errorf("research: no model configured for accuracy level %q", level)
		}
		if c.pricing[level] <= 0 {
			return fmt.Errorf("research: no pricing configured for accuracy level %q", level)
		}
	}
	return nil
}

// Perform issues exactly one call to the downstream service and normalizes
// the result. A still-processing status fails immediately with
// [ErrIncompleteResponse] rather than polling; transport and HTTP failures
// are wrapped in [ExternalServiceError].
func (c *Client) Perform(ctx context.Context, req Request) (*Response, error) {
	model, ok := c.models[req.AccuracyLevel]
	if !ok || model == "" {
		return nil, fmt.Errorf("research: no model configured for accuracy level %q", req.AccuracyLevel)
	}

	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(model),
		Input:           responses.ResponseNewParamsInputUnion{OfString: oai.String(req.Query)},
		Instructions:    oai.String(formatInstructions(req)),
		MaxOutputTokens: oai.Int(int64(req.MaxTokens)),
		Temperature:     oai.Float(req.Temperature),
		Tools: []responses.ToolUnionParam{{
			OfWebSearchPreview: &responses.WebSearchToolParam{
				Type: responses.WebSearchToolTypeWebSearchPreview,
			},
		}},
	}

	resp, err := c.api.Responses.New(ctx, params)
	if err != nil {
		return nil, c.wrapAPIError(err)
	}

	switch resp.Status {
	case responses.ResponseStatusCompleted:
		// proceed
	case responses.ResponseStatusFailed:
		return nil, &ExternalServiceError{
			Op:  "responses.create",
			Err: fmt.Errorf("downstream reported status %q", resp.Status),
		}
	default:
		// in_progress, queued, incomplete: the caller re-issues.
		return nil, fmt.Errorf("%w (status %q)", ErrIncompleteResponse, resp.Status)
	}

	usage := TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}

	text, extractionFailed := c.extractResults(resp, usage)

	sources := CountCitations(text)
	modelUsed := string(resp.Model)
	if modelUsed == "" {
		modelUsed = model
	}

	return &Response{
		Results:          text,
		ExecutiveSummary: ExecutiveSummary(text),
		ModelUsed:        modelUsed,
		AccuracyLevel:    req.AccuracyLevel,
		SourcesFound:     sources,
		Confidence:       Confidence(req.AccuracyLevel, sources),
		Completeness:     Completeness(),
		Recency:          Recency(),
		RelatedTopics:    RelatedTopics(text),
		Limitations:      limitations(req, extractionFailed),
		Usage:            usage,
		Cost:             c.costInfo(req.AccuracyLevel, usage.TotalTokens),
		Timestamp:        time.Now().UTC(),
	}, nil
}

// extractResults runs the extractor chain and substitutes a diagnostic
// placeholder when no extractor matches. It never returns an unexplained
// empty string.
func (c *Client) extractResults(resp *responses.Response, usage TokenUsage) (text string, extractionFailed bool) {
	if t := resp.OutputText(); t != "" {
		return t, false
	}
	if t, source, ok := extractText([]byte(resp.RawJSON())); ok {
		c.logger.Debug("extracted research text from fallback shape", "source", source)
		return t, false
	}
	if usage.TotalTokens > 0 {
		c.logger.Error("research content extraction failed despite nonzero usage",
			"response_id", resp.ID,
			"total_tokens", usage.TotalTokens,
		)
		return fmt.Sprintf(
			"Research completed (%d tokens consumed) but the response text could not be extracted from the API payload. Re-issue the request or report the response id %s.",
			usage.TotalTokens, resp.ID,
		), true
	}
	return "No research content was generated.", false
}

// costInfo wraps cost derivation so that any anomaly there degrades to a
// zeroed CostInfo instead of failing the whole response.
func (c *Client) costInfo(level AccuracyLevel, totalTokens int64) (ci CostInfo) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cost computation failed; returning zeroed cost info", "panic", r)
			ci = CostInfo{}
		}
	}()
	return ComputeCost(level, totalTokens, c.pricing[level])
}

// wrapAPIError classifies a transport/HTTP failure for operator diagnostics
// and wraps it as an ExternalServiceError.
func (c *Client) wrapAPIError(err error) error {
	wrapped := &ExternalServiceError{Op: "responses.create", Err: err}
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		wrapped.StatusCode = apierr.StatusCode
	}
	switch {
	case wrapped.AuthFailure():
		c.logger.Error("downstream authentication failed — check the configured API key", "status", wrapped.StatusCode)
	case wrapped.MalformedRequest():
		c.logger.Error("downstream rejected the request shape", "status", wrapped.StatusCode, "err", err)
	default:
		c.logger.Error("downstream research call failed", "status", wrapped.StatusCode, "err", err)
	}
	return wrapped
}

// formatInstructions maps the requested format to downstream guidance.
func formatInstructions(req Request) string {
	common := "You are a deep research assistant."
	if req.IncludeSources {
		common += " Cite sources with [n] markers."
	}
	switch req.Format {
	case FormatSummary:
		return common + " Respond with a concise summary of the key findings."
	case FormatBulletPoints:
		return common + " Respond as a structured list of bullet points."
	default:
		return common + " Respond with a comprehensive, well-structured report."
	}
}

// limitations assembles the caveat list attached to every response.
func limitations(req Request, extractionFailed bool) []string {
	l := []string{
		"Results reflect web sources available at query time and may miss very recent developments.",
	}
	if req.AccuracyLevel == AccuracyMedium {
		l = append(l, "Standard accuracy tier favours speed over exhaustive source coverage.")
	}
	if !req.IncludeSources {
		l = append(l, "Citation markers were omitted by request.")
	}
	if extractionFailed {
		l = append(l, "Response text extraction failed; token usage was still incurred.")
	}
	return l
}
