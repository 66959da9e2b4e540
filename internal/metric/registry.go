package metric

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ecometrics/internal/model"
	"ecometrics/internal/source"
)

// Registry maps metric names to calculators. It is read-only after
// construction and safe for concurrent dispatch.
type Registry struct {
	log   *zap.Logger
	calcs map[string]Calculator
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log, calcs: make(map[string]Calculator)}
}

// DefaultRegistry registers the four ecological calculators against one
// record source.
func DefaultRegistry(src *source.RecordSource, log *zap.Logger) *Registry {
	r := NewRegistry(log)
	for _, c := range []Calculator{
		NewBiomass(src, log),
		NewShannonIndex(src, log),
		NewPielouIndex(src, log),
		NewSpeciesRichness(src, log),
	} {
		// names are unique by construction
		_ = r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Calculator) error {
	if _, exists := r.calcs[c.Name()]; exists {
		return fmt.Errorf("metric %q already registered", c.Name())
	}
	r.calcs[c.Name()] = c
	return nil
}

func (r *Registry) Get(name string) (Calculator, bool) {
	c, ok := r.calcs[name]
	return c, ok
}

// Names returns the registered metric names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.calcs))
	for name := range r.calcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch validates and computes one metric configuration. Failures become
// error-bearing results, never panics or nils: the batch caller treats every
// outcome uniformly.
func (r *Registry) Dispatch(ctx context.Context, cfg model.MetricConfig) model.MetricResult {
	calc, ok := r.Get(cfg.Plugin)
	if !ok {
		unit, _ := cfg.Params["unit"].(string)
		return errorResult(unit, fmt.Errorf("unknown metric %q", cfg.Plugin))
	}

	normalized, err := calc.Validate(cfg.Params)
	if err != nil {
		r.log.Error("metric configuration rejected",
			zap.String("metric", cfg.Plugin), zap.Error(err))
		return errorResult(calc.Units(cfg.Params), err)
	}

	return calc.Compute(ctx, cfg.GroupID, normalized)
}
