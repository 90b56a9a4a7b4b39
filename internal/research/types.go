// Package research issues deep-research calls against the OpenAI Responses
// API and normalizes the variably-shaped result into a stable [Response].
package research

import "time"

// AccuracyLevel is the caller-selected quality tier. It maps to a downstream
// model and a cost/latency profile.
type AccuracyLevel string

const (
	AccuracyHigh   AccuracyLevel = "high"
	AccuracyMedium AccuracyLevel = "medium"
)

// IsValid reports whether l is a recognised accuracy level.
func (l AccuracyLevel) IsValid() bool {
	return l == AccuracyHigh || l == AccuracyMedium
}

// BillingTier returns the billing tier name for the level.
func (l AccuracyLevel) BillingTier() string {
	if l == AccuracyHigh {
		return "premium"
	}
	return "standard"
}

// Format selects the presentation style requested from the downstream model.
type Format string

const (
	FormatComprehensive Format = "comprehensive"
	FormatSummary       Format = "summary"
	FormatBulletPoints  Format = "bullet_points"
)

// IsValid reports whether f is a recognised response format.
func (f Format) IsValid() bool {
	switch f {
	case FormatComprehensive, FormatSummary, FormatBulletPoints:
		return true
	}
	return false
}

// Request is a fully validated research request. Instances are immutable once
// built by the validator; sanitization derives a new query string rather than
// mutating the original input.
type Request struct {
	// Query is the sanitized research question sent downstream.
	Query string

	// AccuracyLevel selects the model/cost tier.
	AccuracyLevel AccuracyLevel

	// MaxTokens bounds the downstream output, 500–8000.
	MaxTokens int

	// Temperature is the downstream sampling temperature, 0.0–1.0.
	Temperature float64

	// IncludeSources requests citation markers in the result text.
	IncludeSources bool

	// Format selects the presentation style.
	Format Format
}

// TokenUsage mirrors the downstream usage object.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// CostInfo is the derived cost breakdown for a single call.
type CostInfo struct {
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	CostPer1KTokens  float64 `json:"cost_per_1k_tokens"`
	BillingTier      string  `json:"billing_tier"`
}

// Response is the normalized result of one research call. It is constructed
// once, never mutated after assembly, and discarded after serialization.
// ExecutionTimeSeconds is filled in by the orchestrator, not by this package.
type Response struct {
	Results          string
	ExecutiveSummary string
	ModelUsed        string
	AccuracyLevel    AccuracyLevel
	SourcesFound     int
	Confidence       float64
	Completeness     float64
	Recency          float64
	RelatedTopics    []string
	Limitations      []string
	Usage            TokenUsage
	Cost             CostInfo
	Timestamp        time.Time
}
