package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecometrics/internal/model"
)

func TestDefaultRegistryNames(t *testing.T) {
	r := DefaultRegistry(newSource(&scriptedExec{}), nil)
	assert.Equal(t,
		[]string{"biomass", "pielou_index", "shannon_index", "species_richness"},
		r.Names())
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	src := newSource(&scriptedExec{})
	require.NoError(t, r.Register(NewBiomass(src, nil)))
	require.Error(t, r.Register(NewBiomass(src, nil)))
}

func TestDispatchUnknownMetric(t *testing.T) {
	r := DefaultRegistry(newSource(&scriptedExec{}), nil)

	res := r.Dispatch(context.Background(), model.MetricConfig{
		Plugin:  "basal_area",
		Params:  map[string]any{"unit": "m2"},
		GroupID: gid(1),
	})
	assert.Nil(t, res.Value)
	assert.Equal(t, "m2", res.Units)
	assert.Contains(t, res.Error, "basal_area")
}

func TestDispatchValidationFailureCarriesUnits(t *testing.T) {
	exec := &scriptedExec{}
	r := DefaultRegistry(newSource(exec), nil)

	res := r.Dispatch(context.Background(), model.MetricConfig{
		Plugin:  "biomass",
		Params:  map[string]any{"unit": "t", "calculation_method": "psychic"},
		GroupID: gid(1),
	})
	assert.Nil(t, res.Value)
	assert.Equal(t, "t", res.Units)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, exec.queries, "validation failure stops before data access")
}

func TestDispatchComputes(t *testing.T) {
	exec := &scriptedExec{responses: []execResponse{
		countRows(map[string]int64{"A": 10, "B": 10, "C": 10}),
	}}
	r := DefaultRegistry(newSource(exec), nil)

	res := r.Dispatch(context.Background(), model.MetricConfig{
		Plugin:  "species_richness",
		Params:  map[string]any{},
		GroupID: gid(12),
	})
	require.NotNil(t, res.Value)
	assert.InDelta(t, 3.0, *res.Value, 1e-9)
}
