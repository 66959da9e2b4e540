package metric

import (
	"context"

	"go.uber.org/zap"

	"ecometrics/internal/eval"
	"ecometrics/internal/model"
	"ecometrics/internal/source"
)

// Biomass computes the total biomass of a group. Three calculation methods:
// direct (sum a measured field), allometric (an equation over dbh and
// optionally height and wood density), and custom (an equation over every
// numeric field of the record). Totals can be normalized by a per-group area.
type Biomass struct {
	src *source.RecordSource
	log *zap.Logger
}

func NewBiomass(src *source.RecordSource, log *zap.Logger) *Biomass {
	if log == nil {
		log = zap.NewNop()
	}
	return &Biomass{src: src, log: log}
}

func (b *Biomass) Name() string { return "biomass" }

func (b *Biomass) Units(params map[string]any) string {
	if unit, ok := params["unit"].(string); ok && unit != "" {
		return unit
	}
	return "kg"
}

func (b *Biomass) Validate(params map[string]any) (map[string]any, error) {
	p, err := validateBiomassParams(params)
	if err != nil {
		return nil, err
	}
	return p.asMap(), nil
}

func (b *Biomass) Compute(ctx context.Context, groupID *model.GroupID, params map[string]any) model.MetricResult {
	return totalCompute(b.Units(params), b.log, func() model.MetricResult {
		p, err := validateBiomassParams(params)
		if err != nil {
			return errorResult(b.Units(params), err)
		}
		if groupID == nil {
			return nullResult(p.Unit)
		}

		records, accessErr := b.src.FetchRecords(ctx, p.IndividualsTable, p.GroupField, *groupID, b.neededFields(p))
		if accessErr != nil {
			b.log.Warn("individuals unavailable, treating group as empty",
				zap.String("group_id", groupID.String()), zap.Error(accessErr))
		}
		if len(records) == 0 {
			unit := p.Unit
			if p.AreaNormalization {
				unit = p.Unit + "/" + p.AreaUnit
			}
			return model.MetricResult{Value: model.Float(0), Units: unit}
		}

		var total float64
		switch p.CalculationMethod {
		case methodDirect:
			for _, rec := range records {
				if v, ok := rec.Float(p.BiomassField); ok {
					total += v
				}
			}
		default:
			expr, err := eval.Compile(p.AllometricEquation)
			if err != nil {
				return errorResult(p.Unit, err)
			}
			for _, rec := range records {
				total += b.individualBiomass(expr, rec, p)
			}
		}
		total = round3(total)

		finalUnit := p.Unit
		if p.AreaNormalization && p.AreaField != "" {
			if area := b.areaValue(ctx, *groupID, p); area != nil && *area > 0 {
				total = round3(total / *area)
				finalUnit = p.Unit + "/" + p.AreaUnit
			} else {
				b.log.Warn("could not normalize by area: invalid area value",
					zap.String("group_id", groupID.String()))
			}
		}

		return model.MetricResult{
			Value: model.Float(total),
			Units: finalUnit,
			Metadata: map[string]any{
				"individual_count":   len(records),
				"calculation_method": p.CalculationMethod,
			},
		}
	})
}

// neededFields lists the columns the chosen method reads.
func (b *Biomass) neededFields(p biomassParams) []string {
	fields := []string{p.GroupField}
	if p.CalculationMethod == methodDirect {
		return append(fields, p.BiomassField)
	}
	for _, f := range []string{p.DBHField, p.HeightField, p.WoodDensityField} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// individualBiomass evaluates the equation for one record. A failing record
// contributes 0 to the total rather than poisoning the whole group.
func (b *Biomass) individualBiomass(expr *eval.Expr, rec model.Record, p biomassParams) float64 {
	var vars map[string]float64
	switch p.CalculationMethod {
	case methodAllometric:
		dbh, ok := rec.Float(p.DBHField)
		if !ok {
			return 0
		}
		vars = map[string]float64{"dbh": dbh}
		if p.HeightField != "" {
			if h, ok := rec.Float(p.HeightField); ok {
				vars["height"] = h
			}
		}
		if p.WoodDensityField != "" {
			if wd, ok := rec.Float(p.WoodDensityField); ok {
				vars["wood_density"] = wd
			}
		}
	case methodCustom:
		vars = rec.NumericFields()
	default:
		return 0
	}

	v, err := expr.Eval(vars)
	if err != nil {
		b.log.Debug("individual biomass evaluation failed", zap.Error(err))
		return 0
	}
	return v
}

func (b *Biomass) areaValue(ctx context.Context, groupID model.GroupID, p biomassParams) *float64 {
	areaTable := p.AreaTable
	if areaTable == "" {
		areaTable = p.IndividualsTable
	}
	area, err := b.src.FetchScalar(ctx, areaTable, p.AreaField, p.GroupField, groupID)
	if err != nil {
		b.log.Warn("area value unavailable",
			zap.String("table", areaTable), zap.Error(err))
		return nil
	}
	return area
}
