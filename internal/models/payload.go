package models

// PayloadKind tags which arm of the normalized payload union is populated.
type PayloadKind string

const (
	// PayloadObject indicates the payload carries a parsed JSON object.
	PayloadObject PayloadKind = "object"
	// PayloadArray indicates the payload carries a parsed JSON array.
	PayloadArray PayloadKind = "array"
	// PayloadRaw indicates nothing structured was recoverable; only the
	// cleaned raw text is carried.
	PayloadRaw PayloadKind = "raw"
)

// Payload is the normalizer's tagged-union output: a parsed object, a parsed
// array, or a raw-response sentinel. Exactly one arm is populated according
// to Kind. Callers pattern-match on Kind and apply per-field defaults rather
// than trusting field presence.
type Payload struct {
	Kind        PayloadKind            `json:"kind"`
	Object      map[string]interface{} `json:"object,omitempty"`
	Array       []interface{}          `json:"array,omitempty"`
	RawResponse string                 `json:"raw_response,omitempty"`
}

// ObjectPayload wraps a parsed JSON object.
func ObjectPayload(obj map[string]interface{}) Payload {
	return Payload{Kind: PayloadObject, Object: obj}
}

// ArrayPayload wraps a parsed JSON array.
func ArrayPayload(arr []interface{}) Payload {
	return Payload{Kind: PayloadArray, Array: arr}
}

// RawPayload wraps unrecoverable text as the raw-response sentinel.
func RawPayload(text string) Payload {
	return Payload{Kind: PayloadRaw, RawResponse: text}
}

// StringField returns the named object field as a string, or the default when
// the payload is not an object, the field is missing, or it is not a string.
func (p Payload) StringField(name, def string) string {
	if p.Kind != PayloadObject {
		return def
	}
	if v, ok := p.Object[name].(string); ok && v != "" {
		return v
	}
	return def
}

// StringSliceField returns the named object field as a string slice,
// tolerating both []interface{} and []string shapes. Missing or mistyped
// fields yield nil.
func (p Payload) StringSliceField(name string) []string {
	if p.Kind != PayloadObject {
		return nil
	}
	switch v := p.Object[name].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
