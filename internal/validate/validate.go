// Package validate checks and sanitizes incoming research requests: schema
// constraints, cross-field business rules, and content-safety heuristics, in
// that order, short-circuiting on the first failing category.
package validate

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/avezina/deepscout/internal/research"
)

// Field constraints for the research query.
const (
	QueryMinLen = 10
	QueryMaxLen = 2000

	MaxTokensMin     = 500
	MaxTokensMax     = 8000
	MaxTokensDefault = 4000

	TemperatureDefault = 0.3
)

// Error codes attached to field errors. Machine-readable; messages are for
// humans.
const (
	CodeRequired     = "required"
	CodeTooShort     = "too_short"
	CodeTooLong      = "too_long"
	CodeOutOfRange   = "out_of_range"
	CodeInvalidEnum  = "invalid_enum"
	CodeBusinessRule = "business_rule"
	CodeSecurity     = "security"
	CodeFormat       = "format"
	CodeSpam         = "spam"
	CodeLength       = "length"
)

// FieldError describes one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// Result is the outcome of validating raw tool arguments. Exactly one of
// Request (when Valid) or Errors (when not) is populated.
type Result struct {
	Valid   bool
	Request research.Request
	Errors  []FieldError
}

// Args is the raw, externally supplied tool argument shape. Optional fields
// are pointers so that absent and zero-valued inputs stay distinguishable.
type Args struct {
	ResearchQuery  string   `json:"research_query,omitempty" jsonschema:"the research question, 10-2000 characters"`
	AccuracyLevel  string   `json:"accuracy_level,omitempty" jsonschema:"quality tier: high or medium"`
	MaxTokens      *int     `json:"max_tokens,omitempty" jsonschema:"output token budget, 500-8000 (default 4000)"`
	Temperature    *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature, 0.0-1.0 (default 0.3)"`
	IncludeSources *bool    `json:"include_sources,omitempty" jsonschema:"include [n] citation markers (default true)"`
	ResponseFormat string   `json:"response_format,omitempty" jsonschema:"comprehensive, summary, or bullet_points (default comprehensive)"`
	ClientID       string   `json:"client_id,omitempty" jsonschema:"opaque rate-limit bucket id (default anonymous)"`
}

// Defaults supplies configuration-driven fallback values for optional fields.
// Temperature is a pointer so that an explicit 0.0 default stays
// distinguishable from unset.
type Defaults struct {
	AccuracyLevel  research.AccuracyLevel
	MaxTokens      int
	Temperature    *float64
	ResponseFormat research.Format
}

// Validator validates and normalizes research requests.
type Validator struct {
	defaults Defaults
	logger   *slog.Logger
}

// New constructs a Validator. logger may be nil, in which case slog.Default
// is used.
func New(defaults Defaults, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.AccuracyLevel == "" {
		defaults.AccuracyLevel = research.AccuracyMedium
	}
	if defaults.MaxTokens == 0 {
		defaults.MaxTokens = MaxTokensDefault
	}
	if defaults.Temperature == nil {
		t := TemperatureDefault
		defaults.Temperature = &t
	}
	if defaults.ResponseFormat == "" {
		defaults.ResponseFormat = research.FormatComprehensive
	}
	return &Validator{defaults: defaults, logger: logger}
}

// Validate runs the three check categories over args. The first category
// producing errors terminates validation; all three must pass for a valid
// Result. The returned request is a normalized copy — args is never mutated.
func (v *Validator) Validate(args Args) Result {
	req, errs := v.checkSchema(args)
	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	if errs := v.checkBusinessRules(req); len(errs) > 0 {
		return Result{Errors: errs}
	}
	if errs := checkContentSafety(req.Query); len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Valid: true, Request: req}
}

// checkSchema applies per-field structural constraints and defaults. One
// FieldError is produced per offending field.
func (v *Validator) checkSchema(args Args) (research.Request, []FieldError) {
	var errs []FieldError

	query := args.ResearchQuery
	switch n := utf8.RuneCountInString(query); {
	case strings.TrimSpace(query) == "":
		errs = append(errs, FieldError{"research_query", "research query is required", CodeRequired})
	case n < QueryMinLen:
		errs = append(errs, FieldError{"research_query", fmt.Sprintf("query must be at least %d characters", QueryMinLen), CodeTooShort})
	case n > QueryMaxLen:
		errs = append(errs, FieldError{"research_query", fmt.Sprintf("query must be at most %d characters", QueryMaxLen), CodeTooLong})
	case utf8.RuneCountInString(strings.Join(strings.Fields(query), "")) < QueryMinLen:
		errs = append(errs, FieldError{"research_query", fmt.Sprintf("query must contain at least %d non-whitespace characters", QueryMinLen), CodeTooShort})
	}

	level := research.AccuracyLevel(args.AccuracyLevel)
	if args.AccuracyLevel == "" {
		level = v.defaults.AccuracyLevel
	} else if !level.IsValid() {
		errs = append(errs, FieldError{"accuracy_level", "accuracy level must be one of: high, medium", CodeInvalidEnum})
	}

	maxTokens := v.defaults.MaxTokens
	if args.MaxTokens != nil {
		maxTokens = *args.MaxTokens
		if maxTokens < MaxTokensMin || maxTokens > MaxTokensMax {
			errs = append(errs, FieldError{"max_tokens", fmt.Sprintf("max_tokens must be between %d and %d", MaxTokensMin, MaxTokensMax), CodeOutOfRange})
		}
	}

	temperature := *v.defaults.Temperature
	if args.Temperature != nil {
		temperature = *args.Temperature
		if temperature < 0 || temperature > 1 {
			errs = append(errs, FieldError{"temperature", "temperature must be between 0.0 and 1.0", CodeOutOfRange})
		}
	}

	includeSources := true
	if args.IncludeSources != nil {
		includeSources = *args.IncludeSources
	}

	format := research.Format(args.ResponseFormat)
	if args.ResponseFormat == "" {
		format = v.defaults.ResponseFormat
	} else if !format.IsValid() {
		errs = append(errs, FieldError{"response_format", "response format must be one of: comprehensive, summary, bullet_points", CodeInvalidEnum})
	}

	return research.Request{
		Query:          query,
		AccuracyLevel:  level,
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		IncludeSources: includeSources,
		Format:         format,
	}, errs
}

// checkBusinessRules applies cross-field heuristics. High-accuracy requests
// with a small token budget or a hot temperature block; a complex query on
// the medium tier is only logged.
func (v *Validator) checkBusinessRules(req research.Request) []FieldError {
	var errs []FieldError

	if req.AccuracyLevel == research.AccuracyHigh && req.MaxTokens < 2000 {
		errs = append(errs, FieldError{
			Field:   "max_tokens",
			Message: "high accuracy requires max_tokens of at least 2000",
			Code:    CodeBusinessRule,
		})
	}
	if req.AccuracyLevel == research.AccuracyHigh && req.Temperature > 0.5 {
		errs = append(errs, FieldError{
			Field:   "temperature",
			Message: "high accuracy requires temperature of at most 0.5",
			Code:    CodeBusinessRule,
		})
	}

	if c := Complexity(req.Query); c == ComplexityHigh && req.AccuracyLevel == research.AccuracyMedium {
		v.logger.Info("complex query on medium accuracy tier — consider accuracy_level=high",
			"complexity", string(c),
		)
	}

	return errs
}
