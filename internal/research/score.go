package research

import (
	"math"
	"regexp"
	"strings"
)

// The quality scores below are heuristics, not measurements. They are kept as
// independent pure functions so they can be unit-tested against literal
// strings without any I/O.

// citationPattern matches [n]-style citation markers left by web-search
// augmented answers.
var citationPattern = regexp.MustCompile(`\[\d+\]`)

// CountCitations returns the number of [n]-style citation markers in text.
func CountCitations(text string) int {
	return len(citationPattern.FindAllString(text, -1))
}

// Confidence derives a confidence score in [0,1] from the accuracy level and
// the number of cited sources. Each source adds 0.02, capped at +0.15 over
// the per-level base.
func Confidence(level AccuracyLevel, sourcesFound int) float64 {
	base := 0.75
	if level == AccuracyHigh {
		base = 0.85
	}
	bonus := math.Min(float64(sourcesFound)*0.02, 0.15)
	return math.Min(base+bonus, 1.0)
}

// Completeness and Recency return fixed scores. Content-driven scoring was
// considered and rejected: the constant policy is deterministic and honest
// about being a placeholder, where a string-matching estimate would only look
// computed.
func Completeness() float64 { return 0.85 }

// Recency returns the fixed recency score for web-search augmented results.
func Recency() float64 { return 0.9 }

// ComputeCost derives the cost breakdown for a call. The estimate is
// (total/1000)*per1K rounded to 4 decimal places. Anomalous inputs (negative
// usage, non-positive rate) yield a zeroed CostInfo so the overall response
// can still be returned.
func ComputeCost(level AccuracyLevel, totalTokens int64, per1K float64) CostInfo {
	if totalTokens < 0 || per1K <= 0 {
		return CostInfo{}
	}
	cost := float64(totalTokens) / 1000 * per1K
	return CostInfo{
		EstimatedCostUSD: math.Round(cost*10000) / 10000,
		CostPer1KTokens:  per1K,
		BillingTier:      level.BillingTier(),
	}
}

// summaryLimit bounds the executive summary length in runes.
const summaryLimit = 400

// ExecutiveSummary derives a short summary from the result text: the first
// paragraph, clipped at a sentence boundary when it runs past summaryLimit.
func ExecutiveSummary(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.Index(text, "\n\n"); idx > 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= summaryLimit {
		return text
	}
	clipped := string(runes[:summaryLimit])
	if cut := lastSentenceEnd(clipped); cut > 0 {
		return strings.TrimSpace(clipped[:cut])
	}
	if cut := strings.LastIndexByte(clipped, ' '); cut > 0 {
		return strings.TrimSpace(clipped[:cut]) + "…"
	}
	return clipped
}

// lastSentenceEnd returns the index just past the last sentence terminator in
// s, or 0 if none is found.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return 0
}

// relatedHeading matches a "Related topics" style heading line.
var relatedHeading = regexp.MustCompile(`(?i)^#*\s*related\s+topics:?\s*$`)

// RelatedTopics extracts bullet entries listed under a "Related topics"
// heading in the result text. Returns nil when no such section exists.
func RelatedTopics(text string) []string {
	lines := strings.Split(text, "\n")
	var topics []string
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if relatedHeading.MatchString(trimmed) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if entry, ok := strings.CutPrefix(trimmed, "- "); ok {
			topics = append(topics, strings.TrimSpace(entry))
			continue
		}
		if entry, ok := strings.CutPrefix(trimmed, "* "); ok {
			topics = append(topics, strings.TrimSpace(entry))
			continue
		}
		if trimmed == "" && len(topics) > 0 {
			break
		}
		if trimmed != "" {
			break
		}
	}
	return topics
}
