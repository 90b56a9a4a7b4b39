package validate

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	jsPrefix        = regexp.MustCompile(`(?i)javascript:`)
	dataHTMLPrefix  = regexp.MustCompile(`(?i)data:text/html`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	clientIDCharset = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// SanitizeQuery derives the query string actually sent downstream: HTML-like
// tags and javascript:/data:text/html prefixes removed, whitespace runs
// collapsed, trimmed, and hard-truncated to QueryMaxLen runes. It is applied
// after validation succeeds and is idempotent — sanitizing twice yields the
// same string.
func SanitizeQuery(query string) string {
	// Tag removal loops because stripping one tag can expose another
	// ("<scr<b>ipt>"). Each pass shortens the string, so this terminates.
	for tagPattern.MatchString(query) {
		query = tagPattern.ReplaceAllString(query, "")
	}

	query = jsPrefix.ReplaceAllString(query, "")
	query = dataHTMLPrefix.ReplaceAllString(query, "")

	query = whitespaceRun.ReplaceAllString(query, " ")
	query = strings.TrimSpace(query)

	if utf8.RuneCountInString(query) > QueryMaxLen {
		runes := []rune(query)
		slog.Warn("query truncated during sanitization",
			"original_len", len(runes),
			"truncated_len", QueryMaxLen,
		)
		query = strings.TrimSpace(string(runes[:QueryMaxLen]))
	}

	return query
}

// ClientID validation bounds.
const (
	ClientIDMinLen = 3
	ClientIDMaxLen = 100
)

// ClientID checks a rate-limit client identifier: non-empty, 3–100
// characters, charset [A-Za-z0-9_.-]. The first violated rule wins; a nil
// return means the id is acceptable.
func ClientID(id string) *FieldError {
	if id == "" {
		return &FieldError{Field: "client_id", Message: "client id is required", Code: CodeRequired}
	}
	if n := utf8.RuneCountInString(id); n < ClientIDMinLen || n > ClientIDMaxLen {
		return &FieldError{
			Field:   "client_id",
			Message: "client id must be between 3 and 100 characters",
			Code:    CodeLength,
		}
	}
	if !clientIDCharset.MatchString(id) {
		return &FieldError{
			Field:   "client_id",
			Message: "client id may only contain letters, digits, underscores, dots, and hyphens",
			Code:    CodeFormat,
		}
	}
	return nil
}
