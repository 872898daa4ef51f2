package ir

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is a schemaless resource document as seen by callers.
// Numbers decoded from JSON are float64; the store's column codec decides
// the canonical type of each column on the way in and out.
type Document map[string]any

// ID returns the document id, or "".
func (d Document) ID() string {
	return d.String("id")
}

// Handle returns the document handle, or "".
func (d Document) Handle() string {
	return d.String("handle")
}

// String returns d[key] if it is a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Strings returns d[key] as a string slice. Non-string elements are skipped.
func (d Document) Strings(key string) []string {
	return AsStrings(d[key])
}

// Bool returns d[key] coerced to a boolean. Integers are true when non-zero.
func (d Document) Bool(key string) bool {
	b, _ := AsBool(d[key])
	return b
}

// Float returns d[key] coerced to float64.
func (d Document) Float(key string) (float64, bool) {
	return AsFloat(d[key])
}

// Map returns d[key] as a nested document.
func (d Document) Map(key string) Document {
	return AsDocument(d[key])
}

// Maps returns d[key] as a slice of nested documents.
func (d Document) Maps(key string) []Document {
	arr, ok := d[key].([]any)
	if !ok {
		if docs, ok := d[key].([]Document); ok {
			return docs
		}
		if maps, ok := d[key].([]map[string]any); ok {
			out := make([]Document, len(maps))
			for i, m := range maps {
				out[i] = Document(m)
			}
			return out
		}
		return nil
	}
	out := make([]Document, 0, len(arr))
	for _, elem := range arr {
		if m := AsDocument(elem); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(Document)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(Document, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Document:
		out := make(Document, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Compact returns a copy of d without nil values, recursing into nested maps.
func (d Document) Compact() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if v == nil {
			continue
		}
		if m := AsDocument(v); m != nil {
			out[k] = m.Compact()
			continue
		}
		out[k] = v
	}
	return out
}

// AsDocument converts map-shaped values to Document. Returns nil otherwise.
func AsDocument(v any) Document {
	switch val := v.(type) {
	case Document:
		return val
	case map[string]any:
		return Document(val)
	default:
		return nil
	}
}

// AsStrings converts []string or []any of strings to []string.
func AsStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// AsBool coerces booleans, numbers and "0"/"1"/"true"/"false" strings.
func AsBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case int:
		return val != 0, true
	case int64:
		return val != 0, true
	case float64:
		return val != 0, true
	case string:
		switch strings.ToLower(val) {
		case "1", "true":
			return true, true
		case "0", "false", "":
			return false, true
		}
	case []byte:
		return AsBool(string(val))
	}
	return false, false
}

// AsFloat coerces numeric values (and numeric strings) to float64.
func AsFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		var n json.Number = json.Number(strings.TrimSpace(val))
		f, err := n.Float64()
		return f, err == nil
	case []byte:
		return AsFloat(string(val))
	}
	return 0, false
}

// NormalizeTerms prepares search terms for storage: NFC normalized,
// lower-cased and trimmed, with empty and duplicate terms removed. The
// first occurrence order is kept.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(norm.NFC.String(t)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Dedupe removes empty and duplicate strings, keeping first occurrence order.
// Unlike NormalizeTerms it preserves case.
func Dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
