package harness

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/roach88/kiosk/internal/ir"
)

// checkStep compares a step outcome against its expect clause and returns
// one message per mismatch.
func checkStep(step Step, out outcome) []string {
	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	if exp.Error != "" {
		if out.err == nil {
			return []string{fmt.Sprintf("expected error %s, got none", exp.Error)}
		}
		if got := outcomeCode(out.err); got != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s: %v", exp.Error, got, out.err)}
		}
		return nil
	}
	if out.err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", out.err)}
	}

	var errs []string
	if exp.Count != nil {
		got := out.count
		if step.Op == OpList {
			got = len(out.docs)
		}
		if got != *exp.Count {
			errs = append(errs, fmt.Sprintf("count: expected %d, got %d", *exp.Count, got))
		}
	}
	if exp.IDs != nil {
		if got := collect(out.docs, ir.Document.ID); !slices.Equal(got, exp.IDs) {
			errs = append(errs, fmt.Sprintf("ids: expected %v, got %v", exp.IDs, got))
		}
	}
	if exp.Handles != nil {
		if got := collect(out.docs, ir.Document.Handle); !slices.Equal(got, exp.Handles) {
			errs = append(errs, fmt.Sprintf("handles: expected %v, got %v", exp.Handles, got))
		}
	}

	errs = append(errs, checkMembers("tags", out.doc.Strings("tags"), exp.TagsInclude, exp.TagsExclude)...)
	errs = append(errs, checkMembers("search", out.doc.Strings("search"), exp.SearchInclude, exp.SearchExclude)...)

	for _, key := range sortedKeys(exp.Fields) {
		actual, ok := out.doc[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("field %s: missing", key))
			continue
		}
		if !valuesEqual(exp.Fields[key], actual) {
			errs = append(errs, fmt.Sprintf("field %s: expected %v, got %v", key, exp.Fields[key], actual))
		}
	}
	return errs
}

func collect(docs []ir.Document, f func(ir.Document) string) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = f(doc)
	}
	return out
}

func checkMembers(field string, got, include, exclude []string) []string {
	var errs []string
	for _, want := range include {
		if !slices.Contains(got, want) {
			errs = append(errs, fmt.Sprintf("%s: expected to include %q, got %v", field, want, got))
		}
	}
	for _, reject := range exclude {
		if slices.Contains(got, reject) {
			errs = append(errs, fmt.Sprintf("%s: expected to exclude %q, got %v", field, reject, got))
		}
	}
	return errs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// valuesEqual compares a YAML-decoded expectation with a stored value.
// Numbers compare by value, maps by subset, slices element-wise.
func valuesEqual(expected, actual any) bool {
	if isNumber(expected) && isNumber(actual) {
		e, _ := ir.AsFloat(expected)
		a, _ := ir.AsFloat(actual)
		return e == a
	}
	if em := ir.AsDocument(expected); em != nil {
		am := ir.AsDocument(actual)
		if am == nil {
			return false
		}
		for k, ev := range em {
			av, ok := am[k]
			if !ok || !valuesEqual(ev, av) {
				return false
			}
		}
		return true
	}
	if es, ok := expected.([]any); ok {
		as := toSlice(actual)
		if as == nil || len(as) != len(es) {
			return false
		}
		for i := range es {
			if !valuesEqual(es[i], as[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(expected, actual)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func toSlice(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []ir.Document:
		out := make([]any, len(val))
		for i, d := range val {
			out[i] = d
		}
		return out
	}
	return nil
}
