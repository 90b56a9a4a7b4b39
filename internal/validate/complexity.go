package validate

import (
	"regexp"
	"strings"
)

// ComplexityLevel is a coarse lexical-complexity assessment of a query.
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// technicalTerms is the fixed vocabulary used to spot technically demanding
// queries. Matching is case-insensitive on whole words.
var technicalTerms = []string{
	"algorithm", "architecture", "asynchronous", "blockchain", "compiler",
	"concurrency", "cryptographic", "distributed", "embedding", "framework",
	"implementation", "infrastructure", "kubernetes", "latency", "microservice",
	"neural", "optimization", "protocol", "quantum", "scalability",
	"throughput", "topology", "transformer", "virtualization",
}

// connectives signal multi-topic questions.
var connectives = []string{
	"and", "or", "versus", "vs", "compared to", "as well as",
}

var wordBoundary = regexp.MustCompile(`[a-z0-9]+`)

// Complexity scores a query's lexical complexity. Scoring: length (+2 over
// 200 chars, +1 over 100), question marks (+2 over 3, +1 over 1), distinct
// technical terms (+2 over 3, +1 over 1), and multi-topic connectives
// (+2 over 2, +1 over 0). Total ≥5 is high, ≥2 medium, otherwise low.
func Complexity(query string) ComplexityLevel {
	score := 0

	switch n := len(query); {
	case n > 200:
		score += 2
	case n > 100:
		score++
	}

	switch q := strings.Count(query, "?"); {
	case q > 3:
		score += 2
	case q > 1:
		score++
	}

	lower := strings.ToLower(query)
	words := make(map[string]bool)
	for _, w := range wordBoundary.FindAllString(lower, -1) {
		words[w] = true
	}

	terms := 0
	for _, t := range technicalTerms {
		if words[t] {
			terms++
		}
	}
	switch {
	case terms > 3:
		score += 2
	case terms > 1:
		score++
	}

	links := 0
	for _, c := range connectives {
		if strings.Contains(c, " ") {
			links += strings.Count(lower, c)
		} else if words[c] {
			links += strings.Count(lower, " "+c+" ")
		}
	}
	switch {
	case links > 2:
		score += 2
	case links > 0:
		score++
	}

	switch {
	case score >= 5:
		return ComplexityHigh
	case score >= 2:
		return ComplexityMedium
	}
	return ComplexityLow
}
