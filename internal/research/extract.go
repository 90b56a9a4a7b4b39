package research

import (
	"encoding/json"
	"strings"
)

// The downstream response shape is not guaranteed: depending on the model and
// API revision the text may surface as a top-level convenience field, inside
// a list of typed output items, or as a bare text/content field. Extraction
// is an ordered chain of extractors over the raw response JSON; the first one
// producing non-empty text wins.

type rawPayload struct {
	OutputText string          `json:"output_text"`
	Output     []rawOutputItem `json:"output"`
	Text       json.RawMessage `json:"text"`
	Content    json.RawMessage `json:"content"`
}

type rawOutputItem struct {
	Type    string           `json:"type"`
	Content []rawContentItem `json:"content"`
}

type rawContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type extractor struct {
	source string
	fn     func(p *rawPayload) string
}

var extractors = []extractor{
	{"output_text", fromOutputText},
	{"output_items", fromOutputItems},
	{"top_level", fromTopLevel},
}

// extractText runs the extractor chain over the raw response JSON. It returns
// the extracted text, the name of the extractor that matched, and whether any
// extractor produced non-empty text.
func extractText(raw []byte) (text, source string, ok bool) {
	var p rawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", false
	}
	for _, e := range extractors {
		if t := strings.TrimSpace(e.fn(&p)); t != "" {
			return t, e.source, true
		}
	}
	return "", "", false
}

func fromOutputText(p *rawPayload) string {
	return p.OutputText
}

// fromOutputItems scans output items for a message whose content list carries
// an output_text or text entry.
func fromOutputItems(p *rawPayload) string {
	for _, item := range p.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" || c.Type == "text" {
				if strings.TrimSpace(c.Text) != "" {
					return c.Text
				}
			}
		}
	}
	return ""
}

// fromTopLevel falls back to bare text/content string fields. Both fields may
// legitimately hold non-string values in some response revisions, so decoding
// failures are treated as no match.
func fromTopLevel(p *rawPayload) string {
	if s := stringFromRaw(p.Text); s != "" {
		return s
	}
	return stringFromRaw(p.Content)
}

func stringFromRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
