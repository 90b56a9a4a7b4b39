package server

import (
	"strings"
	"time"

	"github.com/avezina/deepscout/internal/research"
	"github.com/avezina/deepscout/internal/validate"
)

// Error types surfaced to callers.
const (
	ErrTypeValidation = "validation_error"
	ErrTypeRateLimit  = "rate_limit_error"
	ErrTypeInternal   = "internal_error"
)

// Envelope is the single well-formed object every invocation returns,
// success or failure. The caller never sees a bare transport error.
type Envelope struct {
	Success bool `json:"success"`

	// Success fields.
	ResearchResults      string               `json:"research_results,omitempty"`
	ExecutiveSummary     string               `json:"executive_summary,omitempty"`
	ModelUsed            string               `json:"model_used,omitempty"`
	AccuracyLevel        string               `json:"accuracy_level,omitempty"`
	ExecutionTimeSeconds *float64             `json:"execution_time_seconds,omitempty"`
	SourcesFound         *int                 `json:"sources_found,omitempty"`
	ResearchConfidence   float64              `json:"research_confidence,omitempty"`
	CoverageCompleteness float64              `json:"coverage_completeness,omitempty"`
	RecencyScore         float64              `json:"recency_score,omitempty"`
	RelatedTopics        *[]string            `json:"related_topics,omitempty"`
	Limitations          []string             `json:"limitations,omitempty"`
	TokenUsage           *research.TokenUsage `json:"token_usage,omitempty"`
	CostInfo             *research.CostInfo   `json:"cost_info,omitempty"`
	RateLimitRemaining   *int                 `json:"rate_limit_remaining,omitempty"`

	// Failure fields.
	Error             string               `json:"error,omitempty"`
	ErrorType         string               `json:"error_type,omitempty"`
	ValidationErrors  []validate.FieldError `json:"validation_errors,omitempty"`
	RetryAfterSeconds int64                `json:"retry_after_seconds,omitempty"`

	// Echoed on every branch.
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// successEnvelope assembles the success response surface from a normalized
// research result. Pointer fields keep zero values (zero sources, zero
// elapsed seconds, no related topics) present in the JSON.
func successEnvelope(resp *research.Response, requestID string, elapsed time.Duration, remaining int) Envelope {
	sources := resp.SourcesFound
	seconds := elapsed.Seconds()
	topics := resp.RelatedTopics
	if topics == nil {
		topics = []string{}
	}
	return Envelope{
		Success:              true,
		ResearchResults:      resp.Results,
		ExecutiveSummary:     resp.ExecutiveSummary,
		ModelUsed:            resp.ModelUsed,
		AccuracyLevel:        string(resp.AccuracyLevel),
		ExecutionTimeSeconds: &seconds,
		SourcesFound:         &sources,
		ResearchConfidence:   resp.Confidence,
		CoverageCompleteness: resp.Completeness,
		RecencyScore:         resp.Recency,
		RelatedTopics:        &topics,
		Limitations:          resp.Limitations,
		TokenUsage:           &resp.Usage,
		CostInfo:             &resp.Cost,
		RateLimitRemaining:   &remaining,
		RequestID:            requestID,
		Timestamp:            resp.Timestamp.Format(time.RFC3339),
	}
}

// validationEnvelope assembles the rejection surface for field errors.
func validationEnvelope(errs []validate.FieldError, requestID string) Envelope {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return Envelope{
		Success:          false,
		Error:            "validation failed: " + strings.Join(msgs, "; "),
		ErrorType:        ErrTypeValidation,
		ValidationErrors: errs,
		RequestID:        requestID,
	}
}

// failureEnvelope assembles the generic failure surface.
func failureEnvelope(msg, errType, requestID string, now time.Time) Envelope {
	return Envelope{
		Success:   false,
		Error:     msg,
		ErrorType: errType,
		RequestID: requestID,
		Timestamp: now.Format(time.RFC3339),
	}
}
