package model

// GroupID identifies the aggregation unit (a plot, a shape) a metric is
// computed over. It preserves the caller's scalar form so SQL binding and
// import-file filtering both compare against the right type.
type GroupID struct {
	fv FieldValue
}

func GroupIDFromString(s string) GroupID  { return GroupID{fv: String(s)} }
func GroupIDFromNumber(f float64) GroupID { return GroupID{fv: Number(f)} }

// GroupIDFromAny builds a GroupID from a decoded JSON or config value.
// A nil value yields a nil GroupID, meaning "no group selected".
func GroupIDFromAny(v any) *GroupID {
	fv := FromAny(v)
	if fv.IsNull() {
		return nil
	}
	return &GroupID{fv: fv}
}

// Value returns the driver-friendly form for parameterized queries.
func (g GroupID) Value() any {
	switch g.fv.kind {
	case KindNumber:
		if g.fv.num == float64(int64(g.fv.num)) {
			return int64(g.fv.num)
		}
		return g.fv.num
	default:
		return g.fv.str
	}
}

// Matches compares a record field against the group id. Numeric and string
// forms of the same id match each other, since CSV columns often carry ids
// the database stores as integers.
func (g GroupID) Matches(v FieldValue) bool {
	if v.IsNull() {
		return false
	}
	if g.fv.kind == KindString && v.kind == KindString {
		return g.fv.str == v.str
	}
	gf, gok := g.fv.AsFloat()
	vf, vok := v.AsFloat()
	if gok && vok {
		return gf == vf
	}
	return g.fv.Key() == v.Key()
}

func (g GroupID) String() string { return g.fv.Key() }

// MetricConfig is the dispatcher's payload for one computation.
type MetricConfig struct {
	Plugin  string         `json:"plugin"`
	Params  map[string]any `json:"params"`
	GroupID *GroupID       `json:"-"`
}

// MetricResult is the single output of one metric over one group. It is
// always returned, never panicked: a nil Value or a non-empty Error signals a
// non-fatal computational failure, and Units is populated either way.
type MetricResult struct {
	Value    *float64       `json:"value"`
	Units    string         `json:"units"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Float is a convenience for building result values.
func Float(v float64) *float64 { return &v }

// ImportSource describes a flat-file fallback for one table name: a CSV file
// or a vector (GeoJSON) file, with a path relative to the configuration
// directory root.
type ImportSource struct {
	Type string `json:"type" mapstructure:"type"`
	Path string `json:"path" mapstructure:"path"`
}

const (
	ImportTypeCSV    = "csv"
	ImportTypeVector = "vector"
)
