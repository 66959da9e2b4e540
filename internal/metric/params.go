package metric

import (
	"fmt"
	"strconv"
	"strings"

	"ecometrics/internal/model"
)

// Parameter normalization. Every recognized key missing from the raw map is
// filled with its documented default; present keys are type-checked and
// coerced. Null values count as unset.

func optString(raw map[string]any, key, def string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return def, nil
	}
	if v == nil {
		// an explicit null clears the field; defaults fill only missing keys
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &model.ConfigError{Field: key, Msg: "must be a string or null"}
	}
	return s, nil
}

func optInt(raw map[string]any, key string, def int) (int, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case float32:
		return int(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, &model.ConfigError{Field: key, Msg: "must be an integer"}
		}
		return i, nil
	default:
		return 0, &model.ConfigError{Field: key, Msg: "must be an integer"}
	}
}

// optBool coerces loosely typed flag values: booleans, numeric zero/non-zero,
// and the strings strconv.ParseBool accepts.
func optBool(raw map[string]any, key string, def bool) (bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(b)))
		if err != nil {
			return false, &model.ConfigError{Field: key, Msg: "must be a boolean"}
		}
		return parsed, nil
	default:
		return false, &model.ConfigError{Field: key, Msg: "must be a boolean"}
	}
}

// ---- biomass ----

const defaultAllometricEquation = "0.0673 * (dbh ** 2.079)"

const (
	methodDirect     = "direct"
	methodAllometric = "allometric"
	methodCustom     = "custom"
)

type biomassParams struct {
	IndividualsTable   string
	BiomassField       string
	GroupField         string
	CalculationMethod  string
	DBHField           string
	HeightField        string
	WoodDensityField   string
	AllometricEquation string
	Unit               string
	AreaNormalization  bool
	AreaField          string
	AreaTable          string
	AreaUnit           string
}

func validateBiomassParams(raw map[string]any) (biomassParams, error) {
	var p biomassParams
	var err error

	stringDefaults := []struct {
		key  string
		dst  *string
		def  string
	}{
		{"individuals_table", &p.IndividualsTable, "trees"},
		{"biomass_field", &p.BiomassField, "biomass"},
		{"group_field", &p.GroupField, "plot_id"},
		{"calculation_method", &p.CalculationMethod, methodDirect},
		{"dbh_field", &p.DBHField, "dbh"},
		{"height_field", &p.HeightField, ""},
		{"wood_density_field", &p.WoodDensityField, ""},
		{"allometric_equation", &p.AllometricEquation, defaultAllometricEquation},
		{"unit", &p.Unit, "kg"},
		{"area_field", &p.AreaField, ""},
		{"area_table", &p.AreaTable, ""},
		{"area_unit", &p.AreaUnit, "ha"},
	}
	for _, f := range stringDefaults {
		if *f.dst, err = optString(raw, f.key, f.def); err != nil {
			return biomassParams{}, err
		}
	}

	switch p.CalculationMethod {
	case methodDirect, methodAllometric, methodCustom:
	default:
		return biomassParams{}, &model.ConfigError{
			Field: "calculation_method",
			Msg:   fmt.Sprintf("must be one of [%s %s %s]", methodDirect, methodAllometric, methodCustom),
		}
	}

	if p.CalculationMethod == methodAllometric && p.DBHField == "" {
		return biomassParams{}, &model.ConfigError{
			Field: "dbh_field",
			Msg:   "required for allometric calculations",
		}
	}

	if p.AreaNormalization, err = optBool(raw, "area_normalization", false); err != nil {
		return biomassParams{}, err
	}
	if p.AreaNormalization && p.AreaField == "" {
		return biomassParams{}, &model.ConfigError{
			Field: "area_field",
			Msg:   "required when area_normalization is true",
		}
	}

	return p, nil
}

func (p biomassParams) asMap() map[string]any {
	return map[string]any{
		"individuals_table":   p.IndividualsTable,
		"biomass_field":       p.BiomassField,
		"group_field":         p.GroupField,
		"calculation_method":  p.CalculationMethod,
		"dbh_field":           p.DBHField,
		"height_field":        p.HeightField,
		"wood_density_field":  p.WoodDensityField,
		"allometric_equation": p.AllometricEquation,
		"unit":                p.Unit,
		"area_normalization":  p.AreaNormalization,
		"area_field":          p.AreaField,
		"area_table":          p.AreaTable,
		"area_unit":           p.AreaUnit,
	}
}

// ---- diversity (shannon, pielou, richness) ----

// minSpeciesFloor is the smallest species count evenness is defined for.
const minSpeciesFloor = 2

type diversityParams struct {
	SpeciesTable   string
	SpeciesField   string
	GroupField     string
	MinOccurrences int
	MinSpecies     int
}

func validateDiversityParams(raw map[string]any, withMinSpecies bool) (diversityParams, error) {
	var p diversityParams
	var err error

	if p.SpeciesTable, err = optString(raw, "species_table", "occurrences"); err != nil {
		return diversityParams{}, err
	}
	if p.SpeciesField, err = optString(raw, "species_field", "taxon_id"); err != nil {
		return diversityParams{}, err
	}
	if p.GroupField, err = optString(raw, "group_field", "plot_id"); err != nil {
		return diversityParams{}, err
	}
	if p.MinOccurrences, err = optInt(raw, "min_occurrences", 1); err != nil {
		return diversityParams{}, err
	}
	if withMinSpecies {
		if p.MinSpecies, err = optInt(raw, "min_species", minSpeciesFloor); err != nil {
			return diversityParams{}, err
		}
		// evenness is undefined for fewer than two species
		if p.MinSpecies < minSpeciesFloor {
			p.MinSpecies = minSpeciesFloor
		}
	}

	return p, nil
}

func (p diversityParams) asMap(withMinSpecies bool) map[string]any {
	m := map[string]any{
		"species_table":   p.SpeciesTable,
		"species_field":   p.SpeciesField,
		"group_field":     p.GroupField,
		"min_occurrences": p.MinOccurrences,
	}
	if withMinSpecies {
		m["min_species"] = p.MinSpecies
	}
	return m
}
