package metric

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"ecometrics/internal/model"
	"ecometrics/internal/source"
)

// speciesCounts is the occurrence count per distinct species key within one
// group. Rows with a null species key are excluded from both the species set
// and the totals.
type speciesCounts map[string]int

func (sc speciesCounts) species() int { return len(sc) }

func (sc speciesCounts) total() int {
	sum := 0
	for _, n := range sc {
		sum += n
	}
	return sum
}

// shannon computes H' = -Σ pᵢ·ln(pᵢ) over the count distribution, in nats.
func (sc speciesCounts) shannon() float64 {
	total := float64(sc.total())
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, n := range sc {
		if n <= 0 {
			continue
		}
		p := float64(n) / total
		h -= p * math.Log(p)
	}
	return h
}

func fetchSpeciesCounts(ctx context.Context, src *source.RecordSource, log *zap.Logger, p diversityParams, groupID model.GroupID) speciesCounts {
	counts, err := src.FetchGroupedCounts(ctx, p.SpeciesTable, p.SpeciesField, p.GroupField, groupID)
	if err != nil {
		log.Warn("species counts unavailable, treating group as empty",
			zap.String("group_id", groupID.String()), zap.Error(err))
		return nil
	}
	return counts
}

// ---- Shannon diversity index ----

// ShannonIndex measures both species richness and evenness; a higher value
// indicates more diversity.
type ShannonIndex struct {
	src *source.RecordSource
	log *zap.Logger
}

func NewShannonIndex(src *source.RecordSource, log *zap.Logger) *ShannonIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShannonIndex{src: src, log: log}
}

func (s *ShannonIndex) Name() string                { return "shannon_index" }
func (s *ShannonIndex) Units(map[string]any) string { return "index" }

func (s *ShannonIndex) Validate(params map[string]any) (map[string]any, error) {
	p, err := validateDiversityParams(params, false)
	if err != nil {
		return nil, err
	}
	return p.asMap(false), nil
}

func (s *ShannonIndex) Compute(ctx context.Context, groupID *model.GroupID, params map[string]any) model.MetricResult {
	return totalCompute("index", s.log, func() model.MetricResult {
		p, err := validateDiversityParams(params, false)
		if err != nil {
			return errorResult("index", err)
		}
		if groupID == nil {
			return nullResult("index")
		}

		counts := fetchSpeciesCounts(ctx, s.src, s.log, p, *groupID)
		if len(counts) == 0 {
			return model.MetricResult{
				Units:    "index",
				Metadata: map[string]any{"species_count": 0},
			}
		}

		total := counts.total()
		if total < p.MinOccurrences {
			return model.MetricResult{
				Units:    "index",
				Metadata: map[string]any{"total_count": total},
			}
		}

		h := round3(counts.shannon())
		return model.MetricResult{
			Value: model.Float(h),
			Units: "index",
			Metadata: map[string]any{
				"species_count": counts.species(),
				"total_count":   total,
				"formula":       "H' = -sum(pi * ln(pi))",
			},
		}
	})
}

// ---- Pielou evenness index ----

// PielouIndex quantifies how numerically equal the community is: Shannon's
// index divided by its maximum possible value ln(S). Ranges from 0
// (completely uneven) to 1 (completely even).
type PielouIndex struct {
	src *source.RecordSource
	log *zap.Logger
}

func NewPielouIndex(src *source.RecordSource, log *zap.Logger) *PielouIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &PielouIndex{src: src, log: log}
}

func (p *PielouIndex) Name() string                { return "pielou_index" }
func (p *PielouIndex) Units(map[string]any) string { return "index" }

func (p *PielouIndex) Validate(params map[string]any) (map[string]any, error) {
	dp, err := validateDiversityParams(params, true)
	if err != nil {
		return nil, err
	}
	return dp.asMap(true), nil
}

func (p *PielouIndex) Compute(ctx context.Context, groupID *model.GroupID, params map[string]any) model.MetricResult {
	return totalCompute("index", p.log, func() model.MetricResult {
		dp, err := validateDiversityParams(params, true)
		if err != nil {
			return errorResult("index", err)
		}
		if groupID == nil {
			return nullResult("index")
		}

		counts := fetchSpeciesCounts(ctx, p.src, p.log, dp, *groupID)

		species := counts.species()
		if species < dp.MinSpecies {
			return model.MetricResult{
				Units: "index",
				Metadata: map[string]any{
					"species_count": species,
					"error":         fmt.Sprintf("need at least %d species for evenness", dp.MinSpecies),
				},
			}
		}

		total := counts.total()
		if total < dp.MinOccurrences {
			return model.MetricResult{
				Units:    "index",
				Metadata: map[string]any{"total_count": total},
			}
		}

		shannon := counts.shannon()
		evenness := round3(shannon / math.Log(float64(species)))
		return model.MetricResult{
			Value: model.Float(evenness),
			Units: "index",
			Metadata: map[string]any{
				"species_count": species,
				"total_count":   total,
				"shannon_index": round3(shannon),
				"formula":       "J' = H' / ln(S)",
			},
		}
	})
}

// ---- species richness ----

// SpeciesRichness counts the distinct species present in a group, the most
// straightforward measure of biodiversity.
type SpeciesRichness struct {
	src *source.RecordSource
	log *zap.Logger
}

func NewSpeciesRichness(src *source.RecordSource, log *zap.Logger) *SpeciesRichness {
	if log == nil {
		log = zap.NewNop()
	}
	return &SpeciesRichness{src: src, log: log}
}

func (r *SpeciesRichness) Name() string                { return "species_richness" }
func (r *SpeciesRichness) Units(map[string]any) string { return "count" }

func (r *SpeciesRichness) Validate(params map[string]any) (map[string]any, error) {
	p, err := validateDiversityParams(params, false)
	if err != nil {
		return nil, err
	}
	return p.asMap(false), nil
}

func (r *SpeciesRichness) Compute(ctx context.Context, groupID *model.GroupID, params map[string]any) model.MetricResult {
	return totalCompute("count", r.log, func() model.MetricResult {
		p, err := validateDiversityParams(params, false)
		if err != nil {
			return errorResult("count", err)
		}
		if groupID == nil {
			return nullResult("count")
		}

		counts := fetchSpeciesCounts(ctx, r.src, r.log, p, *groupID)
		if len(counts) == 0 {
			return model.MetricResult{Value: model.Float(0), Units: "count"}
		}

		total := counts.total()
		if total < p.MinOccurrences {
			return model.MetricResult{
				Value:    model.Float(0),
				Units:    "count",
				Metadata: map[string]any{"total_count": total},
			}
		}

		return model.MetricResult{
			Value: model.Float(float64(counts.species())),
			Units: "count",
			Metadata: map[string]any{
				"total_count": total,
				"description": "Number of distinct species",
			},
		}
	})
}
