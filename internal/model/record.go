package model

import (
	"strconv"
	"strings"
)

// Kind discriminates the scalar variants a record field can hold.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

// FieldValue is a tagged scalar: a number, a string, or null. Records are
// built from heterogeneous sources (SQL rows, CSV cells, GeoJSON properties),
// so downstream code checks kind and presence instead of type-asserting raw
// interface values.
type FieldValue struct {
	kind Kind
	num  float64
	str  string
}

// Null is the zero FieldValue.
var Null = FieldValue{}

func Number(f float64) FieldValue { return FieldValue{kind: KindNumber, num: f} }
func String(s string) FieldValue  { return FieldValue{kind: KindString, str: s} }

// FromAny converts a scanned database value or parsed file cell into a
// FieldValue. Unrecognized types are stringified via their string form only
// when they are []byte; everything else collapses to null.
func FromAny(v any) FieldValue {
	switch val := v.(type) {
	case nil:
		return Null
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case bool:
		if val {
			return Number(1)
		}
		return Number(0)
	case string:
		return String(val)
	case []byte:
		return String(string(val))
	default:
		return Null
	}
}

func (v FieldValue) Kind() Kind   { return v.kind }
func (v FieldValue) IsNull() bool { return v.kind == KindNull }

// AsFloat returns the numeric value. Numeric strings coerce; everything else
// reports false.
func (v FieldValue) AsFloat() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Key returns a canonical string form usable as a map key, e.g. for counting
// occurrences per species identifier. Integral numbers render without a
// trailing ".0" so that SQL integer ids and CSV-parsed ids collide correctly.
func (v FieldValue) Key() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// Record is one individual occurrence row: field name to tagged scalar.
type Record map[string]FieldValue

// Has reports whether the field is present, regardless of nullness.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Float returns the field's numeric value, reporting false when the field is
// absent, null, or non-numeric.
func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// NumericFields returns every present, non-null field that carries a numeric
// value. Custom biomass equations are evaluated against this set.
func (r Record) NumericFields() map[string]float64 {
	out := make(map[string]float64, len(r))
	for name, v := range r {
		if v.IsNull() {
			continue
		}
		if f, ok := v.AsFloat(); ok {
			out[name] = f
		}
	}
	return out
}
