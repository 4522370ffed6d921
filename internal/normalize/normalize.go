// Package normalize recovers structured data from free-form model output.
//
// Generative text services return anything from clean JSON to JSON buried in
// markdown fences and prose to plain natural language with labeled fields.
// Normalize always produces a usable value; it never fails. Callers
// pattern-match on the payload kind and apply per-field defaults.
package normalize

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/lumewell/companion/internal/models"
)

// FieldLabel describes one expected field for degraded natural-language
// extraction. Labels lists accepted spellings in any supported language.
type FieldLabel struct {
	Field   string   // canonical field name in the resulting object
	Labels  []string // accepted label spellings, matched case-insensitively
	IsArray bool     // field value is a list
}

// DefaultFieldLabels returns the built-in bilingual (English/Chinese) label
// table used when no custom table is configured.
func DefaultFieldLabels() []FieldLabel {
	return []FieldLabel{
		{Field: "observations", Labels: []string{"observations", "observation", "观察"}},
		{Field: "summary", Labels: []string{"summary", "总结", "小结"}},
		{Field: "suggestions", Labels: []string{"suggestions", "suggestion", "建议"}, IsArray: true},
		{Field: "mood", Labels: []string{"mood", "心情", "情绪"}},
		{Field: "reply", Labels: []string{"reply", "response", "回复"}},
		{Field: "encouragement", Labels: []string{"encouragement", "鼓励"}},
	}
}

// Normalizer converts raw model text into a typed payload using a
// configurable field-label table.
type Normalizer struct {
	labels []FieldLabel
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFieldLabels replaces the default bilingual label table.
func WithFieldLabels(labels []FieldLabel) Option {
	return func(n *Normalizer) {
		n.labels = labels
	}
}

// NewNormalizer creates a Normalizer with the default label table unless
// overridden by options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{labels: DefaultFieldLabels()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = NewNormalizer()

// Normalize converts raw model text using the default Normalizer.
func Normalize(raw string) models.Payload {
	return defaultNormalizer.Normalize(raw)
}

// Normalize returns the best-effort structured interpretation of raw model
// text. Precedence: fence strip, direct parse, first balanced span (array or
// object, whichever delimiter opens first), field-label extraction, raw
// sentinel.
func (n *Normalizer) Normalize(raw string) models.Payload {
	cleaned := stripCodeFences(raw)

	if payload, ok := tryParseStructured(cleaned); ok {
		return payload
	}

	if payload, ok := spanPayload(cleaned); ok {
		return payload
	}

	if fields, ok := n.extractFields(cleaned); ok {
		slog.Debug("Normalize recovered fields from natural language", "fields", len(fields))
		return models.ObjectPayload(fields)
	}

	slog.Debug("Normalize found no structure, returning raw sentinel", "length", len(cleaned))
	return models.RawPayload(cleaned)
}

// stripCodeFences removes markdown code-fence markers, leaving the fenced
// content and any surrounding prose in place.
func stripCodeFences(s string) string {
	if strings.Contains(s, "```") {
		for _, marker := range []string{"```json", "```JSON", "```"} {
			s = strings.ReplaceAll(s, marker, "")
		}
	}
	return strings.TrimSpace(s)
}

// tryParseStructured parses the whole text as JSON and accepts only objects
// and arrays. Bare strings and numbers are not useful payloads.
func tryParseStructured(s string) (models.Payload, bool) {
	var value interface{}
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		return models.Payload{}, false
	}
	switch v := value.(type) {
	case map[string]interface{}:
		return models.ObjectPayload(v), true
	case []interface{}:
		return models.ArrayPayload(v), true
	default:
		return models.Payload{}, false
	}
}

// spanPayload recovers an embedded JSON value from prose. When both bracket
// types appear, the one opening earliest wins, so an object carrying an
// array-valued field is recovered as the object rather than the inner array.
// A span that fails to parse falls through to the other bracket type.
func spanPayload(s string) (models.Payload, bool) {
	order := [2]byte{'[', '{'}
	objIdx := strings.IndexByte(s, '{')
	arrIdx := strings.IndexByte(s, '[')
	if objIdx >= 0 && (arrIdx < 0 || objIdx < arrIdx) {
		order = [2]byte{'{', '['}
	}

	for _, open := range order {
		switch open {
		case '[':
			if span, ok := balancedSpan(s, '[', ']'); ok {
				var arr []interface{}
				if err := json.Unmarshal([]byte(span), &arr); err == nil {
					return models.ArrayPayload(arr), true
				}
			}
		case '{':
			if span, ok := balancedSpan(s, '{', '}'); ok {
				var obj map[string]interface{}
				if err := json.Unmarshal([]byte(span), &obj); err == nil {
					return models.ObjectPayload(obj), true
				}
			}
		}
	}
	return models.Payload{}, false
}

// balancedSpan returns the first top-level span delimited by open/close,
// using a depth counter over the requested delimiter pair only. Delimiters of
// the other bracket type are ignored, so cross-type mismatches in surrounding
// prose do not derail the scan.
func balancedSpan(s string, open, closing byte) (string, bool) {
	start := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case closing:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// labelMatch records one found label occurrence in the scanned text.
type labelMatch struct {
	start        int // byte index where the label begins
	contentStart int // byte index just past the label and its colon
	label        FieldLabel
}

// extractFields performs degraded natural-language extraction: each known
// label captures text until the next known label or end of text.
func (n *Normalizer) extractFields(text string) (map[string]interface{}, bool) {
	lower := strings.ToLower(text)

	var matches []labelMatch
	for _, fl := range n.labels {
		best := -1
		var bestMatch labelMatch
		for _, name := range fl.Labels {
			m, ok := findLabel(lower, strings.ToLower(name))
			if ok && (best == -1 || m.start < best) {
				best = m.start
				m.label = fl
				bestMatch = m
			}
		}
		if best >= 0 {
			matches = append(matches, bestMatch)
		}
	}
	if len(matches) == 0 {
		return nil, false
	}

	// Order by position so each field's content ends where the next label begins.
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].start < matches[i].start {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}

	fields := make(map[string]interface{})
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		value := cleanFieldValue(text[m.contentStart:end])
		if value == "" {
			continue
		}
		if m.label.IsArray {
			fields[m.label.Field] = parseArrayValue(value)
		} else {
			fields[m.label.Field] = value
		}
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// findLabel locates the first occurrence of name followed (after optional
// spaces) by an ASCII or fullwidth colon.
func findLabel(lower, name string) (labelMatch, bool) {
	from := 0
	for {
		idx := strings.Index(lower[from:], name)
		if idx < 0 {
			return labelMatch{}, false
		}
		idx += from
		pos := idx + len(name)
		for pos < len(lower) && (lower[pos] == ' ' || lower[pos] == '\t') {
			pos++
		}
		if pos < len(lower) && lower[pos] == ':' {
			return labelMatch{start: idx, contentStart: pos + 1}, true
		}
		if strings.HasPrefix(lower[pos:], "：") {
			return labelMatch{start: idx, contentStart: pos + len("：")}, true
		}
		from = idx + len(name)
	}
}

// cleanFieldValue trims whitespace, surrounding quotes, and trailing
// separators from a captured field value.
func cleanFieldValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")
	s = strings.TrimRight(strings.TrimSpace(s), ",;，；")
	return strings.TrimSpace(s)
}

// parseArrayValue interprets an array-valued field: a bracketed span parses
// as JSON; otherwise the text splits on commas and newlines.
func parseArrayValue(s string) []interface{} {
	if span, ok := balancedSpan(s, '[', ']'); ok {
		var arr []interface{}
		if err := json.Unmarshal([]byte(span), &arr); err == nil {
			return arr
		}
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '，', '、', ';', '；', '\n':
			return true
		default:
			return false
		}
	})
	items := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimLeft(p, "-•* \t")
		p = strings.Trim(p, "\"'")
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}
