package validate

import (
	"strings"
	"testing"

	"github.com/avezina/deepscout/internal/research"
)

func newTestValidator() *Validator {
	return New(Defaults{}, nil)
}

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool       { return &b }

func firstCode(res Result) string {
	if len(res.Errors) == 0 {
		return ""
	}
	return res.Errors[0].Code
}

func TestValidate_AppliesDefaults(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	res := v.Validate(Args{ResearchQuery: "What are the latest advances in battery chemistry?"})
	if !res.Valid {
		t.Fatalf("expected valid result, got errors: %v", res.Errors)
	}

	req := res.Request
	if req.AccuracyLevel != research.AccuracyMedium {
		t.Errorf("accuracy level = %q, want medium", req.AccuracyLevel)
	}
	if req.MaxTokens != MaxTokensDefault {
		t.Errorf("max tokens = %d, want %d", req.MaxTokens, MaxTokensDefault)
	}
	if req.Temperature != TemperatureDefault {
		t.Errorf("temperature = %v, want %v", req.Temperature, TemperatureDefault)
	}
	if !req.IncludeSources {
		t.Error("include sources should default to true")
	}
	if req.Format != research.FormatComprehensive {
		t.Errorf("format = %q, want comprehensive", req.Format)
	}
}

func TestValidate_ZeroTemperatureDefaultRespected(t *testing.T) {
	t.Parallel()
	v := New(Defaults{Temperature: floatPtr(0)}, nil)

	res := v.Validate(Args{ResearchQuery: "What are the latest advances in battery chemistry?"})
	if !res.Valid {
		t.Fatalf("expected valid result, got errors: %v", res.Errors)
	}
	if res.Request.Temperature != 0 {
		t.Errorf("temperature = %v, want explicit 0", res.Request.Temperature)
	}
}

func TestValidate_SchemaErrors(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	tests := []struct {
		name     string
		args     Args
		wantCode string
	}{
		{"empty query", Args{ResearchQuery: ""}, CodeRequired},
		{"whitespace only", Args{ResearchQuery: "      \t  "}, CodeRequired},
		{"five characters", Args{ResearchQuery: "short"}, CodeTooShort},
		{"padded short query", Args{ResearchQuery: "a b c d e   "}, CodeTooShort},
		{"overlong query", Args{ResearchQuery: strings.Repeat("In-depth analysis please. ", 100)}, CodeTooLong},
		{"bad accuracy level", Args{ResearchQuery: "How do heat pumps work in cold climates?", AccuracyLevel: "ultra"}, CodeInvalidEnum},
		{"max tokens too small", Args{ResearchQuery: "How do heat pumps work in cold climates?", MaxTokens: intPtr(100)}, CodeOutOfRange},
		{"max tokens too large", Args{ResearchQuery: "How do heat pumps work in cold climates?", MaxTokens: intPtr(20000)}, CodeOutOfRange},
		{"temperature negative", Args{ResearchQuery: "How do heat pumps work in cold climates?", Temperature: floatPtr(-0.1)}, CodeOutOfRange},
		{"temperature above one", Args{ResearchQuery: "How do heat pumps work in cold climates?", Temperature: floatPtr(1.5)}, CodeOutOfRange},
		{"bad format", Args{ResearchQuery: "How do heat pumps work in cold climates?", ResponseFormat: "haiku"}, CodeInvalidEnum},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := v.Validate(tc.args)
			if res.Valid {
				t.Fatal("expected invalid result")
			}
			if got := firstCode(res); got != tc.wantCode {
				t.Errorf("first error code = %q, want %q (errors: %v)", got, tc.wantCode, res.Errors)
			}
		})
	}
}

func TestValidate_MultipleSchemaErrorsReported(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	res := v.Validate(Args{
		ResearchQuery: "short",
		AccuracyLevel: "ultra",
		MaxTokens:     intPtr(50),
	})
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) != 3 {
		t.Errorf("error count = %d, want 3: %v", len(res.Errors), res.Errors)
	}
}

func TestValidate_BusinessRules(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	t.Run("high accuracy with small budget blocks", func(t *testing.T) {
		t.Parallel()
		res := v.Validate(Args{
			ResearchQuery: "Survey the current state of solid oxide fuel cells.",
			AccuracyLevel: "high",
			MaxTokens:     intPtr(1000),
		})
		if res.Valid {
			t.Fatal("expected invalid result")
		}
		if got := firstCode(res); got != CodeBusinessRule {
			t.Errorf("code = %q, want %q", got, CodeBusinessRule)
		}
		if res.Errors[0].Field != "max_tokens" {
			t.Errorf("field = %q, want max_tokens", res.Errors[0].Field)
		}
	})

	t.Run("high accuracy with hot temperature blocks", func(t *testing.T) {
		t.Parallel()
		res := v.Validate(Args{
			ResearchQuery: "Survey the current state of solid oxide fuel cells.",
			AccuracyLevel: "high",
			Temperature:   floatPtr(0.9),
		})
		if res.Valid {
			t.Fatal("expected invalid result")
		}
		if got := firstCode(res); got != CodeBusinessRule {
			t.Errorf("code = %q, want %q", got, CodeBusinessRule)
		}
	})

	t.Run("high accuracy within bounds passes", func(t *testing.T) {
		t.Parallel()
		res := v.Validate(Args{
			ResearchQuery: "Survey the current state of solid oxide fuel cells.",
			AccuracyLevel: "high",
			MaxTokens:     intPtr(3000),
			Temperature:   floatPtr(0.4),
		})
		if !res.Valid {
			t.Fatalf("expected valid result, got: %v", res.Errors)
		}
	})

	t.Run("medium accuracy with small budget passes", func(t *testing.T) {
		t.Parallel()
		res := v.Validate(Args{
			ResearchQuery: "Survey the current state of solid oxide fuel cells.",
			AccuracyLevel: "medium",
			MaxTokens:     intPtr(1000),
		})
		if !res.Valid {
			t.Fatalf("expected valid result, got: %v", res.Errors)
		}
	})
}

func TestValidate_ContentSafety(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"script tag", "Tell me about <script>alert(1)</script> attacks in browsers", CodeSecurity},
		{"javascript prefix", "Explain javascript:void(0) and why pages used it historically", CodeSecurity},
		{"eval call", "What does eval(userInput) do in older codebases?", CodeSecurity},
		{"event handler", "Why was onclick = handler once considered acceptable markup?", CodeSecurity},
		{"data html uri", "Research data:text/html payload delivery in legacy mail clients", CodeSecurity},
		{"function literal", "Describe function (a) { return a } hoisting semantics", CodeSecurity},
		{"binary noise", "research ~~~~ ^^^^ |||| {{{{ }}}} \\\\ ~~~~ ^^^^ ||||", CodeFormat},
		{"repeated spam", "buy now buy now buy now buy now buy now", CodeSpam},
		{"long period spam", strings.Repeat("alpha bravo charlie delta echo foxtrot golf hotel india juliet kil", 4), CodeSpam},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := v.Validate(Args{ResearchQuery: tc.query})
			if res.Valid {
				t.Fatal("expected invalid result")
			}
			if got := firstCode(res); got != tc.wantCode {
				t.Errorf("code = %q, want %q (errors: %v)", got, tc.wantCode, res.Errors)
			}
		})
	}
}

func TestValidate_SchemaErrorsShortCircuitSafety(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	// Both too short and script-bearing: only the schema category reports.
	res := v.Validate(Args{ResearchQuery: "<script>"})
	if res.Valid {
		t.Fatal("expected invalid result")
	}
	for _, e := range res.Errors {
		if e.Code == CodeSecurity {
			t.Errorf("safety error reported despite schema failure: %v", res.Errors)
		}
	}
}

func TestValidate_DoesNotMutateArgs(t *testing.T) {
	t.Parallel()
	v := newTestValidator()

	args := Args{ResearchQuery: "  What are the latest advances in battery chemistry?  "}
	res := v.Validate(args)
	if !res.Valid {
		t.Fatalf("expected valid result, got: %v", res.Errors)
	}
	if args.ResearchQuery != "  What are the latest advances in battery chemistry?  " {
		t.Error("args were mutated by validation")
	}
	if res.Request.Query != args.ResearchQuery {
		t.Errorf("request query = %q, want the raw query", res.Request.Query)
	}
}

func TestValidate_ExplicitValuesOverrideDefaults(t *testing.T) {
	t.Parallel()
	v := New(Defaults{
		AccuracyLevel:  research.AccuracyHigh,
		MaxTokens:      6000,
		Temperature:    floatPtr(0.2),
		ResponseFormat: research.FormatSummary,
	}, nil)

	res := v.Validate(Args{
		ResearchQuery:  "Compare current grid-scale storage deployment strategies.",
		AccuracyLevel:  "medium",
		MaxTokens:      intPtr(1500),
		Temperature:    floatPtr(0.8),
		IncludeSources: boolPtr(false),
		ResponseFormat: "bullet_points",
	})
	if !res.Valid {
		t.Fatalf("expected valid result, got: %v", res.Errors)
	}
	req := res.Request
	if req.AccuracyLevel != research.AccuracyMedium {
		t.Errorf("accuracy level = %q, want medium", req.AccuracyLevel)
	}
	if req.MaxTokens != 1500 {
		t.Errorf("max tokens = %d, want 1500", req.MaxTokens)
	}
	if req.Temperature != 0.8 {
		t.Errorf("temperature = %v, want 0.8", req.Temperature)
	}
	if req.IncludeSources {
		t.Error("include sources should be false")
	}
	if req.Format != research.FormatBulletPoints {
		t.Errorf("format = %q, want bullet_points", req.Format)
	}
}

func TestFieldError_Error(t *testing.T) {
	t.Parallel()
	e := FieldError{Field: "max_tokens", Message: "out of range", Code: CodeOutOfRange}
	got := e.Error()
	if !strings.Contains(got, "max_tokens") || !strings.Contains(got, CodeOutOfRange) {
		t.Errorf("Error() = %q, want field and code present", got)
	}
}
