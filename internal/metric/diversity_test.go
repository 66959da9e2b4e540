package metric

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRows(counts map[string]int64) execResponse {
	resp := execResponse{cols: []string{"taxon_id", "count"}}
	for key, n := range counts {
		resp.rows = append(resp.rows, []any{key, n})
	}
	return resp
}

func TestShannonEvenCommunity(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 10, "B": 10, "C": 10}),
	}}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.Empty(t, res.Error)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 1.099, *res.Value, 1e-9) // ln(3) rounded
	assert.Equal(t, "index", res.Units)
	assert.Equal(t, 3, res.Metadata["species_count"])
	assert.Equal(t, 30, res.Metadata["total_count"])
}

func TestShannonSingleSpeciesIsZero(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 25}),
	}}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.NotNil(t, res.Value)
	assert.Zero(t, *res.Value)
}

func TestShannonSkewedCommunity(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 29, "B": 1}),
	}}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.NotNil(t, res.Value)

	p1, p2 := 29.0/30.0, 1.0/30.0
	want := round3(-(p1*math.Log(p1) + p2*math.Log(p2)))
	assert.InDelta(t, want, *res.Value, 1e-9)
}

func TestShannonEmptyGroup(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{{cols: []string{"taxon_id", "count"}}}}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	assert.Nil(t, res.Value)
	assert.Equal(t, "index", res.Units)
	assert.Equal(t, 0, res.Metadata["species_count"])
}

func TestShannonBelowMinOccurrences(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 2, "B": 1}),
	}}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{"min_occurrences": 10})
	assert.Nil(t, res.Value)
	assert.Equal(t, 3, res.Metadata["total_count"])
}

func TestShannonNilGroupID(t *testing.T) {
	exec := &scriptedExec{}
	calc := NewShannonIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), nil, map[string]any{})
	assert.Nil(t, res.Value)
	assert.Equal(t, "index", res.Units)
	assert.Empty(t, exec.queries)
}

func TestPielouPerfectlyEven(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 10, "B": 10, "C": 10}),
	}}
	calc := NewPielouIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.Empty(t, res.Error)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 1.0, *res.Value, 1e-9)
	assert.Equal(t, 3, res.Metadata["species_count"])
	assert.Equal(t, 30, res.Metadata["total_count"])
	assert.InDelta(t, 1.099, res.Metadata["shannon_index"].(float64), 1e-9)
}

func TestPielouSkewedCommunity(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 29, "B": 1}),
	}}
	calc := NewPielouIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{"min_species": 2})
	require.NotNil(t, res.Value)

	p1, p2 := 29.0/30.0, 1.0/30.0
	h := -(p1*math.Log(p1) + p2*math.Log(p2))
	assert.InDelta(t, round3(h/math.Log(2)), *res.Value, 1e-9)
	assert.Greater(t, *res.Value, 0.0)
	assert.Less(t, *res.Value, 1.0)
}

func TestPielouRange(t *testing.T) {
	// J' stays within [0, 1] for any distribution with at least two species,
	// and equals 1 exactly when all counts are equal.
	distributions := []map[string]int64{
		{"A": 1, "B": 1},
		{"A": 50, "B": 50, "C": 50, "D": 50},
		{"A": 99, "B": 1},
		{"A": 7, "B": 3, "C": 14, "D": 1, "E": 25},
	}
	for _, counts := range distributions {
		exec := &scriptedExec{responses: []execResponse{countRows(counts)}}
		calc := NewPielouIndex(newSource(exec), nil)

		res := calc.Compute(context.Background(), gid(1), map[string]any{})
		require.NotNil(t, res.Value)
		assert.GreaterOrEqual(t, *res.Value, 0.0)
		assert.LessOrEqual(t, *res.Value, 1.0)

		even := true
		var first int64 = -1
		for _, n := range counts {
			if first == -1 {
				first = n
			} else if n != first {
				even = false
			}
		}
		if even {
			assert.InDelta(t, 1.0, *res.Value, 1e-9)
		}
	}
}

func TestPielouBelowMinSpecies(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 40}),
	}}
	calc := NewPielouIndex(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	assert.Nil(t, res.Value)
	assert.Equal(t, "index", res.Units)
	assert.Equal(t, 1, res.Metadata["species_count"])
	assert.NotEmpty(t, res.Metadata["error"])
}

func TestRichness(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 29, "B": 1}),
	}}
	calc := NewSpeciesRichness(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 2.0, *res.Value, 1e-9)
	assert.Equal(t, "count", res.Units)
	assert.Equal(t, 30, res.Metadata["total_count"])
}

func TestRichnessIndependentOfCounts(t *testing.T) {
	for _, counts := range []map[string]int64{
		{"A": 1, "B": 1, "C": 1},
		{"A": 1000, "B": 5, "C": 1},
	} {
		exec := &scriptedExec{responses: []execResponse{countRows(counts)}}
		calc := NewSpeciesRichness(newSource(exec), nil)

		res := calc.Compute(context.Background(), gid(1), map[string]any{})
		require.NotNil(t, res.Value)
		assert.InDelta(t, 3.0, *res.Value, 1e-9)
	}
}

func TestRichnessEmptyGroupIsZero(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{{cols: []string{"taxon_id", "count"}}}}
	calc := NewSpeciesRichness(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{})
	require.NotNil(t, res.Value)
	assert.Zero(t, *res.Value)
	assert.Equal(t, "count", res.Units)
}

func TestRichnessBelowMinOccurrencesIsZero(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 1, "B": 1}),
	}}
	calc := NewSpeciesRichness(newSource(exec), nil)

	res := calc.Compute(context.Background(), gid(12), map[string]any{"min_occurrences": 5})
	require.NotNil(t, res.Value)
	assert.Zero(t, *res.Value)
	assert.Equal(t, 2, res.Metadata["total_count"])
}
