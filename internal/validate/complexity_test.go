package validate

import (
	"strings"
	"testing"
)

func TestComplexity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  ComplexityLevel
	}{
		{
			"short plain question",
			"How do heat pumps work?",
			ComplexityLow,
		},
		{
			"two technical terms",
			"Compare protocol overhead and latency in QUIC deployments",
			ComplexityMedium,
		},
		{
			"long multi-topic technical query",
			"Evaluate the scalability and throughput characteristics of distributed " +
				"consensus protocol implementations versus centralized architectures. " +
				"How does latency degrade under partition? What optimization strategies " +
				"apply, and how do kubernetes operators handle failover?",
			ComplexityHigh,
		},
		{
			"length alone is medium",
			strings.Repeat("please tell me more about this general subject matter ", 5),
			ComplexityMedium,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Complexity(tc.query); got != tc.want {
				t.Errorf("Complexity(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func TestComplexity_ConnectivesMatchWholeWordsOnly(t *testing.T) {
	t.Parallel()

	// "sandstone" contains "and" but must not count as a connective.
	if got := Complexity("Describe sandstone weathering"); got != ComplexityLow {
		t.Errorf("Complexity = %q, want low", got)
	}
}
