package validate

import (
	"regexp"
	"unicode"
)

// injectionPatterns is the fixed set of content-injection shapes rejected
// outright. RE2 has no backreferences, so the repeated-run check below is
// done by hand instead.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)\bfunction\s*\([^)]*\)\s*\{`),
}

// unsafeRatioLimit is the fraction of out-of-charset characters above which
// a query is rejected as malformed.
const unsafeRatioLimit = 0.20

// checkContentSafety rejects queries matching injection patterns, queries
// dominated by unusual characters, and queries with long contiguous repeats.
func checkContentSafety(query string) []FieldError {
	for _, pat := range injectionPatterns {
		if pat.MatchString(query) {
			return []FieldError{{
				Field:   "research_query",
				Message: "query contains a disallowed script or injection pattern",
				Code:    CodeSecurity,
			}}
		}
	}

	if unsafeRatio(query) > unsafeRatioLimit {
		return []FieldError{{
			Field:   "research_query",
			Message: "query contains too many unusual characters",
			Code:    CodeFormat,
		}}
	}

	if hasRepeatedRun(query) {
		return []FieldError{{
			Field:   "research_query",
			Message: "query contains excessive repeated content",
			Code:    CodeSpam,
		}}
	}

	return nil
}

// unsafeRatio returns the fraction of runes outside the safe set of letters,
// digits, whitespace, and common punctuation.
func unsafeRatio(s string) float64 {
	if s == "" {
		return 0
	}
	total, unsafe := 0, 0
	for _, r := range s {
		total++
		if !isSafeRune(r) {
			unsafe++
		}
	}
	return float64(unsafe) / float64(total)
}

func isSafeRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '.', ',', ';', ':', '!', '?', '\'', '"', '(', ')', '[', ']',
		'-', '_', '/', '&', '%', '$', '#', '@', '+', '=', '*':
		return true
	}
	return false
}

// hasRepeatedRun reports whether any substring of length ≥3 repeats four or
// more times contiguously. The period is bounded by len/4, at most 500 for a
// maximum-length query, so the scan stays cheap.
func hasRepeatedRun(s string) bool {
	rs := []rune(s)
	n := len(rs)
	for l := 3; l*4 <= n; l++ {
		for i := 0; i+l*4 <= n; i++ {
			if runEquals(rs, i, l) {
				return true
			}
		}
	}
	return false
}

// runEquals reports whether rs[i:i+l] repeats four times starting at i.
func runEquals(rs []rune, i, l int) bool {
	for rep := 1; rep < 4; rep++ {
		for j := 0; j < l; j++ {
			if rs[i+j] != rs[i+rep*l+j] {
				return false
			}
		}
	}
	return true
}
