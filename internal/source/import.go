package source

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ecometrics/internal/model"
	"ecometrics/pkg/utils"
)

// importCache holds fully parsed import tables keyed by source name. Batch
// runs compute many groups against the same file; without the cache every
// fallback would re-read it.
type importCache struct {
	mu     sync.RWMutex
	tables map[string][]model.Record
}

func newImportCache() *importCache {
	return &importCache{tables: make(map[string][]model.Record)}
}

func (c *importCache) load(name string, src model.ImportSource, configDir string) ([]model.Record, error) {
	c.mu.RLock()
	rows, ok := c.tables[name]
	c.mu.RUnlock()
	if ok {
		return rows, nil
	}

	rows, err := loadImportFile(src, configDir)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tables[name] = rows
	c.mu.Unlock()
	return rows, nil
}

func loadImportFile(src model.ImportSource, configDir string) ([]model.Record, error) {
	path := src.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}

	switch strings.ToLower(src.Type) {
	case model.ImportTypeCSV:
		return loadCSV(path)
	case model.ImportTypeVector:
		return loadGeoJSON(path)
	default:
		return nil, fmt.Errorf("unsupported import type %q", src.Type)
	}
}

func loadCSV(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	rawHeaders, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	headers := make([]string, len(rawHeaders))
	for i, h := range rawHeaders {
		headers[i] = utils.CleanHeader(h)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV read error: %w", err)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(model.Record, len(headers))
		for i, h := range headers {
			if i >= len(row) {
				break
			}
			rec[h] = cellValue(row[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

// geoJSON is the subset of the format the fallback needs: feature properties
// are the record fields, geometry is never consumed by any metric.
type geoJSON struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func loadGeoJSON(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector file: %w", err)
	}

	var parsed geoJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode vector file: %w", err)
	}

	records := make([]model.Record, 0, len(parsed.Features))
	for _, feature := range parsed.Features {
		rec := make(model.Record, len(feature.Properties))
		for name, v := range feature.Properties {
			rec[name] = model.FromAny(v)
		}
		records = append(records, rec)
	}
	return records, nil
}

// cellValue coerces a raw CSV cell. Empty cells are null, matching how the
// store reports missing values.
func cellValue(cell string) model.FieldValue {
	if strings.TrimSpace(cell) == "" {
		return model.Null
	}
	return model.FromAny(utils.ParseValue(cell))
}
