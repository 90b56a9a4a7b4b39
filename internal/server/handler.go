// Package server exposes the do_deep_research tool over the Model Context
// Protocol and orchestrates validation, rate limiting, and the downstream
// research call into a uniform response envelope.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/avezina/deepscout/internal/observe"
	"github.com/avezina/deepscout/internal/ratelimit"
	"github.com/avezina/deepscout/internal/research"
	"github.com/avezina/deepscout/internal/resilience"
	"github.com/avezina/deepscout/internal/validate"
)

// anonymousClientID buckets callers that do not identify themselves.
const anonymousClientID = "anonymous"

// Researcher performs one downstream research call. Satisfied by
// [research.Client]; test doubles count invocations.
type Researcher interface {
	Perform(ctx context.Context, req research.Request) (*research.Response, error)
}

// Handler sequences validation, sanitization, rate limiting, and the
// downstream call for each do_deep_research invocation, mapping every
// failure into a structured envelope.
type Handler struct {
	validator  *validate.Validator
	limiter    *ratelimit.Limiter
	researcher Researcher
	metrics    *observe.Metrics
	logger     *slog.Logger

	// Pricing is the per-1K-token cost table used to project a request's
	// worst-case spend for the limiter's daily-cost check.
	Pricing map[research.AccuracyLevel]float64

	// now is injectable for tests.
	now func() time.Time
}

// NewHandler constructs a Handler. metrics and logger may be nil.
func NewHandler(v *validate.Validator, l *ratelimit.Limiter, r Researcher, m *observe.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		validator:  v,
		limiter:    l,
		researcher: r,
		metrics:    m,
		logger:     logger,
		Pricing: map[research.AccuracyLevel]float64{
			research.AccuracyHigh:   0.04,
			research.AccuracyMedium: 0.006,
		},
		now: time.Now,
	}
}

// DoDeepResearch is the tool handler. It always returns a well-formed
// envelope; the error return stays nil so transport-level faults never mask
// the structured failure surface.
func (h *Handler) DoDeepResearch(ctx context.Context, _ *mcp.CallToolRequest, args validate.Args) (*mcp.CallToolResult, Envelope, error) {
	ctx, span := observe.StartSpan(ctx, "do_deep_research")
	defer span.End()

	requestID := h.newRequestID()
	logger := h.logger.With("request_id", requestID)
	if cid := observe.CorrelationID(ctx); cid != "" {
		logger = logger.With("trace_id", cid)
	}

	if h.metrics != nil {
		h.metrics.InFlight.Add(ctx, 1)
		defer h.metrics.InFlight.Add(ctx, -1)
	}

	clientID := args.ClientID
	if clientID == "" {
		clientID = anonymousClientID
	}
	if ferr := validate.ClientID(clientID); ferr != nil {
		logger.Warn("rejected request with invalid client id", "code", ferr.Code)
		return h.reject(ctx, validationEnvelope([]validate.FieldError{*ferr}, requestID))
	}

	res := h.validator.Validate(args)
	if !res.Valid {
		logger.Warn("request rejected by validation",
			"errors", len(res.Errors),
			"first_code", res.Errors[0].Code,
		)
		if h.metrics != nil {
			for _, e := range res.Errors {
				h.metrics.RecordValidationFailure(ctx, e.Code)
			}
		}
		return h.reject(ctx, validationEnvelope(res.Errors, requestID))
	}

	req := res.Request
	estimated := float64(req.MaxTokens) / 1000 * h.Pricing[req.AccuracyLevel]
	decision := h.limiter.Check(clientID, req.AccuracyLevel, estimated)
	if !decision.Allowed {
		retryIn := decision.RetryAfter.Sub(h.now())
		if retryIn < 0 {
			retryIn = 0
		}
		logger.Warn("request denied by rate limiter",
			"client_id", clientID,
			"reason", decision.Reason,
			"retry_after", decision.RetryAfter,
		)
		if h.metrics != nil {
			h.metrics.RecordDenial(ctx, decision.Reason)
			h.metrics.RecordToolCall(ctx, "rate_limited")
		}
		env := failureEnvelope(
			fmt.Sprintf("rate limit exceeded (%s); retry after %s", decision.Reason, decision.RetryAfter.Format(time.RFC3339)),
			ErrTypeRateLimit, requestID, h.now(),
		)
		env.RetryAfterSeconds = int64(retryIn.Seconds())
		return &mcp.CallToolResult{IsError: true}, env, nil
	}

	// Sanitization derives the query actually sent downstream; the
	// validated request itself is never mutated.
	sanitized := req
	sanitized.Query = validate.SanitizeQuery(req.Query)

	logger.Info("dispatching research request",
		"client_id", clientID,
		"accuracy_level", string(sanitized.AccuracyLevel),
		"query_len", len(sanitized.Query),
	)

	start := h.now()
	resp, err := h.researcher.Perform(ctx, sanitized)
	elapsed := h.now().Sub(start)

	if err != nil {
		return h.failed(ctx, logger, err, requestID)
	}

	// Exactly one Record per call that reached the external API.
	h.limiter.Record(clientID, sanitized.AccuracyLevel, resp.Cost.EstimatedCostUSD, resp.Usage.TotalTokens)

	if h.metrics != nil {
		h.metrics.ResearchDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(observe.Attr("accuracy_level", string(sanitized.AccuracyLevel))))
		h.metrics.RecordTokens(ctx, string(sanitized.AccuracyLevel), resp.Usage.TotalTokens)
		h.metrics.RecordToolCall(ctx, "ok")
	}

	logger.Info("research request completed",
		"model", resp.ModelUsed,
		"total_tokens", resp.Usage.TotalTokens,
		"sources_found", resp.SourcesFound,
		"elapsed", elapsed,
	)

	return nil, successEnvelope(resp, requestID, elapsed, decision.Remaining), nil
}

// reject finalises a validation rejection.
func (h *Handler) reject(ctx context.Context, env Envelope) (*mcp.CallToolResult, Envelope, error) {
	if h.metrics != nil {
		h.metrics.RecordToolCall(ctx, "validation_error")
	}
	return &mcp.CallToolResult{IsError: true}, env, nil
}

// failed maps a downstream failure onto the internal-error surface. The
// cause is logged with its origin but only its message text reaches the
// caller.
func (h *Handler) failed(ctx context.Context, logger *slog.Logger, err error, requestID string) (*mcp.CallToolResult, Envelope, error) {
	kind := "transport"
	msg := "research request failed: " + err.Error()

	var extErr *research.ExternalServiceError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		kind = "circuit_open"
		msg = "the research service is temporarily unavailable — please try again shortly"
	case errors.Is(err, research.ErrIncompleteResponse):
		kind = "incomplete"
		msg = "the research service has not finished processing this request — please try again"
	case errors.As(err, &extErr):
		switch {
		case extErr.AuthFailure():
			kind = "auth"
		case extErr.MalformedRequest():
			kind = "bad_request"
		default:
			kind = "external"
		}
		msg = "the research service could not complete the request: " + extErr.Err.Error()
	}

	logger.Error("research call failed", "kind", kind, "err", err)
	if h.metrics != nil {
		h.metrics.RecordProviderError(ctx, kind)
		h.metrics.RecordToolCall(ctx, "internal_error")
	}
	return &mcp.CallToolResult{IsError: true}, failureEnvelope(msg, ErrTypeInternal, requestID, h.now()), nil
}

// newRequestID builds a unique, time-ordered id used to correlate logs. The
// random suffix disambiguates requests created in the same millisecond.
func (h *Handler) newRequestID() string {
	return fmt.Sprintf("req_%d_%06x", h.now().UnixMilli(), rand.Uint32()&0xffffff)
}
