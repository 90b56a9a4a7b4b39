package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		Query:          "What are the latest advances in battery chemistry?",
		AccuracyLevel:  AccuracyMedium,
		MaxTokens:      4000,
		Temperature:    0.3,
		IncludeSources: true,
		Format:         FormatComprehensive,
	}
}

// completedFixture builds a minimal completed Responses API payload carrying
// the given text.
func completedFixture(text string, totalTokens int64) string {
	msg := map[string]any{
		"id":         "resp_test_1",
		"object":     "response",
		"created_at": 1756600000,
		"status":     "completed",
		"model":      "o4-mini-deep-research",
		"output": []any{
			map[string]any{
				"type":   "message",
				"id":     "msg_1",
				"status": "completed",
				"role":   "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text, "annotations": []any{}},
				},
			},
		},
		"usage": map[string]any{
			"input_tokens":  100,
			"output_tokens": totalTokens - 100,
			"total_tokens":  totalTokens,
		},
	}
	b, _ := json.Marshal(msg)
	return string(b)
}

// newTestClient points a Client at a stub downstream server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("test-key", WithBaseURL(srv.URL), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("New with empty key should fail")
	}
}

func TestPerform_Success(t *testing.T) {
	t.Parallel()

	text := "Battery chemistry saw major advances this year. [1] [2]\n\n" +
		"Solid-state designs reached pilot production. [3]\n\n" +
		"Related topics\n- Sodium-ion cells\n- Grid storage economics"

	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "responses") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completedFixture(text, 5000))
	})

	resp, err := c.Perform(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if resp.Results != text {
		t.Errorf("results = %q, want the fixture text", resp.Results)
	}
	if resp.ModelUsed != "o4-mini-deep-research" {
		t.Errorf("model used = %q", resp.ModelUsed)
	}
	if resp.SourcesFound != 3 {
		t.Errorf("sources found = %d, want 3", resp.SourcesFound)
	}
	if resp.Usage.TotalTokens != 5000 {
		t.Errorf("total tokens = %d, want 5000", resp.Usage.TotalTokens)
	}
	if resp.Cost.EstimatedCostUSD != 0.03 {
		t.Errorf("estimated cost = %v, want 0.03", resp.Cost.EstimatedCostUSD)
	}
	if resp.Cost.BillingTier != "standard" {
		t.Errorf("billing tier = %q, want standard", resp.Cost.BillingTier)
	}
	if resp.ExecutiveSummary != "Battery chemistry saw major advances this year. [1] [2]" {
		t.Errorf("summary = %q", resp.ExecutiveSummary)
	}
	if len(resp.RelatedTopics) != 2 {
		t.Errorf("related topics = %v, want 2 entries", resp.RelatedTopics)
	}
	if len(resp.Limitations) == 0 {
		t.Error("limitations should never be empty")
	}

	// The outgoing call carries the tier model and citation instructions.
	if got := gotBody["model"]; got != "o4-mini-deep-research" {
		t.Errorf("request model = %v", got)
	}
	instructions, _ := gotBody["instructions"].(string)
	if !strings.Contains(instructions, "Cite sources") {
		t.Errorf("instructions missing citation guidance: %q", instructions)
	}
}

func TestPerform_OmitsCitationGuidanceWhenSourcesOff(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completedFixture("Report without markers.", 1000))
	})

	req := testRequest()
	req.IncludeSources = false
	if _, err := c.Perform(context.Background(), req); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	instructions, _ := gotBody["instructions"].(string)
	if strings.Contains(instructions, "Cite sources") {
		t.Errorf("instructions should omit citation guidance: %q", instructions)
	}
}

func TestPerform_IncompleteStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "resp_test_2", "object": "response", "status": "in_progress", "model": "o4-mini-deep-research", "output": []}`)
	})

	_, err := c.Perform(context.Background(), testRequest())
	if !errors.Is(err, ErrIncompleteResponse) {
		t.Fatalf("err = %v, want ErrIncompleteResponse", err)
	}
}

func TestPerform_FailedStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "resp_test_3", "object": "response", "status": "failed", "model": "o4-mini-deep-research", "output": []}`)
	})

	_, err := c.Perform(context.Background(), testRequest())
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %v, want ExternalServiceError", err)
	}
	if extErr.AuthFailure() || extErr.MalformedRequest() {
		t.Errorf("failed status misclassified: %+v", extErr)
	}
}

func TestPerform_AuthFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
	})

	_, err := c.Perform(context.Background(), testRequest())
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %v, want ExternalServiceError", err)
	}
	if !extErr.AuthFailure() {
		t.Errorf("status code = %d, want an auth failure", extErr.StatusCode)
	}
}

func TestPerform_ExtractionFailureWithUsage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "resp_test_4", "object": "response", "status": "completed", "model": "o4-mini-deep-research", "output": [], "usage": {"input_tokens": 200, "output_tokens": 1000, "total_tokens": 1200}}`)
	})

	resp, err := c.Perform(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if !strings.Contains(resp.Results, "could not be extracted") {
		t.Errorf("results = %q, want the diagnostic placeholder", resp.Results)
	}
	found := false
	for _, l := range resp.Limitations {
		if strings.Contains(l, "extraction failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("limitations %v missing the extraction caveat", resp.Limitations)
	}
}

func TestPerform_UnknownAccuracyLevel(t *testing.T) {
	t.Parallel()

	c, err := New("test-key", WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := testRequest()
	req.AccuracyLevel = "turbo"
	if _, err := c.Perform(context.Background(), req); err == nil {
		t.Fatal("unknown accuracy level should fail before any network call")
	}
}

func TestReady(t *testing.T) {
	t.Parallel()

	c, err := New("test-key", WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Errorf("Ready with default configuration = %v, want nil", err)
	}

	c, err = New("test-key", WithLogger(discardLogger()), WithModel(AccuracyHigh, ""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err == nil {
		t.Error("Ready should fail when a model is unset")
	}

	c, err = New("test-key", WithLogger(discardLogger()), WithPricing(AccuracyMedium, 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err == nil {
		t.Error("Ready should fail when pricing is unset")
	}
}
