package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/roach88/kiosk/internal/ir"
)

// ColumnType is the domain type of a primary-table column. It decides how a
// document value is bound on write and how a scanned value is typed on read,
// for every dialect.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeJSON
	// TypeStrings is the aggregated JSON array of a projection table.
	TypeStrings
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeJSON:
		return "json"
	case TypeStrings:
		return "strings"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column is one column of a primary table.
type Column struct {
	Name string
	Type ColumnType
}

// Encode converts a document value to a bind argument. nil stays nil.
func (c Column) Encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case time.Time:
			return FormatTime(s), nil
		}
	case TypeInt:
		if f, ok := ir.AsFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
	case TypeFloat:
		if f, ok := ir.AsFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
	case TypeBool:
		if b, ok := ir.AsBool(v); ok {
			if b {
				return 1, nil
			}
			return 0, nil
		}
	case TypeJSON, TypeStrings:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("column %s: cannot store %T as %s", c.Name, v, c.Type)
}

// Decode types a scanned value. It accepts what database/sql drivers return
// (int64, float64, string, []byte, time.Time) as well as the values found in
// decoded JSON aggregates (float64, bool, string, nested objects).
// A nil result means the key is dropped from the document.
func (c Column) Decode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch c.Type {
	case TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case time.Time:
			return FormatTime(s), nil
		case int64:
			return strconv.FormatInt(s, 10), nil
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), nil
		}
	case TypeInt:
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
		if f, ok := ir.AsFloat(v); ok {
			return int64(f), nil
		}
	case TypeFloat:
		if f, ok := ir.AsFloat(v); ok {
			return f, nil
		}
	case TypeBool:
		if b, ok := ir.AsBool(v); ok {
			return b, nil
		}
	case TypeJSON:
		s, ok := v.(string)
		if !ok {
			return normalizeJSON(v), nil
		}
		if s == "" {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return normalizeJSON(out), nil
	case TypeStrings:
		if s, ok := v.(string); ok {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			v = arr
		}
		strs := ir.AsStrings(v)
		if strs == nil {
			strs = []string{}
		}
		return strs, nil
	}
	return nil, fmt.Errorf("column %s: cannot read %T as %s", c.Name, v, c.Type)
}

// normalizeJSON turns decoded JSON objects into Documents.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(ir.Document, len(val))
		for k, elem := range val {
			out[k] = normalizeJSON(elem)
		}
		return out
	case []any:
		for i, elem := range val {
			val[i] = normalizeJSON(elem)
		}
		return val
	default:
		return v
	}
}
