// Package metric implements the per-group ecological summary metrics:
// biomass totals, Shannon diversity, Pielou evenness, and species richness.
// Each calculator follows the same shape: fetch, threshold-guard, aggregate,
// round, optionally normalize, package. Compute is total: it always returns a
// MetricResult and never lets a failure escape, so one group's bad data
// cannot abort a batch.
package metric

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"ecometrics/internal/model"
)

// Calculator computes one metric for one group.
//
// Validate normalizes raw parameters, filling defaults and rejecting
// incoherent configuration before any data access. Compute consumes the
// normalized map; Units reports the unit string a result must carry even when
// validation or computation fails.
type Calculator interface {
	Name() string
	Units(params map[string]any) string
	Validate(params map[string]any) (map[string]any, error)
	Compute(ctx context.Context, groupID *model.GroupID, params map[string]any) model.MetricResult
}

// round3 rounds to the 3 decimal places every metric reports.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// totalCompute runs fn, converting a panic into a best-effort error result
// that still carries the configured units.
func totalCompute(units string, log *zap.Logger, fn func() model.MetricResult) (res model.MetricResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("metric computation panicked", zap.Any("cause", r))
			res = model.MetricResult{Units: units, Error: fmt.Sprintf("%v", r)}
		}
	}()
	return fn()
}

// errorResult packages a validation or computation failure.
func errorResult(units string, err error) model.MetricResult {
	return model.MetricResult{Units: units, Error: err.Error()}
}

// nullResult is the "no group selected" result.
func nullResult(units string) model.MetricResult {
	return model.MetricResult{Units: units}
}
