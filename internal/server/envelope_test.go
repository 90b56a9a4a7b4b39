package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/avezina/deepscout/internal/validate"
)

func TestSuccessEnvelope_PreservesZeroValues(t *testing.T) {
	t.Parallel()

	resp := testResponse()
	resp.SourcesFound = 0
	resp.RelatedTopics = nil
	env := successEnvelope(resp, "req_1", 0, 0)

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)

	// Zero sources, zero elapsed time, zero remaining quota, and an empty
	// topic list must survive serialization; all are meaningful values, not
	// absent fields.
	if !strings.Contains(s, `"sources_found":0`) {
		t.Errorf("sources_found missing from %s", s)
	}
	if !strings.Contains(s, `"execution_time_seconds":0`) {
		t.Errorf("execution_time_seconds missing from %s", s)
	}
	if !strings.Contains(s, `"related_topics":[]`) {
		t.Errorf("related_topics missing from %s", s)
	}
	if !strings.Contains(s, `"rate_limit_remaining":0`) {
		t.Errorf("rate_limit_remaining missing from %s", s)
	}
	if !strings.Contains(s, `"request_id":"req_1"`) {
		t.Errorf("request_id missing from %s", s)
	}
}

func TestValidationEnvelope_JoinsMessages(t *testing.T) {
	t.Parallel()

	env := validationEnvelope([]validate.FieldError{
		{Field: "research_query", Message: "too short", Code: "too_short"},
		{Field: "max_tokens", Message: "out of range", Code: "out_of_range"},
	}, "req_2")

	if env.Success {
		t.Error("validation envelope should not be successful")
	}
	if !strings.Contains(env.Error, "research_query") || !strings.Contains(env.Error, "max_tokens") {
		t.Errorf("joined error = %q, want both fields mentioned", env.Error)
	}
	if len(env.ValidationErrors) != 2 {
		t.Errorf("validation errors = %d, want 2", len(env.ValidationErrors))
	}
}

func TestFailureEnvelope_OmitsSuccessFields(t *testing.T) {
	t.Parallel()

	env := failureEnvelope("downstream failed", ErrTypeInternal, "req_3", time.Now())
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "research_results") || strings.Contains(s, "token_usage") {
		t.Errorf("failure envelope leaks success fields: %s", s)
	}
	if !strings.Contains(s, `"error_type":"internal_error"`) {
		t.Errorf("error_type missing from %s", s)
	}
}
