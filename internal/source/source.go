// Package source resolves "group id → individual records" and "group id →
// scalar field value" against a relational store, transparently falling back
// to registered flat import files (CSV or vector) when the store cannot serve
// a table. A single group's computation degrades to "no data" instead of
// aborting the batch.
package source

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ecometrics/internal/model"
)

// RecordSource is safe for concurrent use: the import registry is read-only
// and the parsed-table cache is guarded internally.
type RecordSource struct {
	exec      QueryExecutor
	imports   map[string]model.ImportSource
	configDir string
	log       *zap.Logger
	cache     *importCache
}

// New builds a RecordSource. The executor handle and import registry are
// injected explicitly; paths in the registry resolve relative to configDir.
func New(exec QueryExecutor, imports map[string]model.ImportSource, configDir string, log *zap.Logger) *RecordSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordSource{
		exec:      exec,
		imports:   imports,
		configDir: configDir,
		log:       log,
		cache:     newImportCache(),
	}
}

// FetchRecords returns the individual records of one group, projected onto
// neededFields. It never fails past its own boundary: when both the store and
// the import fallback are unusable it returns no records alongside a
// DataAccessError that callers may log but must not surface.
func (s *RecordSource) FetchRecords(ctx context.Context, table, groupField string, groupID model.GroupID, neededFields []string) ([]model.Record, error) {
	columns, rows, err := s.exec.Select(ctx, selectQuery(table, groupField, neededFields, false), groupID.Value())
	if err == nil {
		records := make([]model.Record, 0, len(rows))
		for _, row := range rows {
			rec := make(model.Record, len(columns))
			for i, col := range columns {
				if i < len(row) {
					rec[col] = model.FromAny(row[i])
				}
			}
			records = append(records, rec)
		}
		return records, nil
	}

	s.log.Warn("store query failed, trying import fallback",
		zap.String("table", table), zap.Error(err))

	records, fbErr := s.fallbackRecords(table, groupField, groupID, neededFields)
	if fbErr != nil {
		return nil, &model.DataAccessError{Op: "fetch records", Table: table, Err: fbErr}
	}
	return records, nil
}

// FetchScalar returns a single numeric field value for the group, or nil when
// no usable value exists anywhere.
func (s *RecordSource) FetchScalar(ctx context.Context, table, field, groupField string, groupID model.GroupID) (*float64, error) {
	_, rows, err := s.exec.Select(ctx, selectQuery(table, groupField, []string{field}, true), groupID.Value())
	if err == nil {
		if len(rows) == 0 || len(rows[0]) == 0 {
			return nil, nil
		}
		if f, ok := model.FromAny(rows[0][0]).AsFloat(); ok {
			return &f, nil
		}
		return nil, nil
	}

	s.log.Warn("store query failed, trying import fallback",
		zap.String("table", table), zap.String("field", field), zap.Error(err))

	records, fbErr := s.fallbackRecords(table, groupField, groupID, []string{field})
	if fbErr != nil {
		return nil, &model.DataAccessError{Op: "fetch scalar", Table: table, Err: fbErr}
	}
	for _, rec := range records {
		if f, ok := rec.Float(field); ok {
			return &f, nil
		}
	}
	return nil, nil
}

// FetchGroupedCounts counts rows per distinct value of keyField within the
// group. Null keys are excluded. The primary path pushes the counting into
// the store with GROUP BY; the fallback counts filtered import rows.
func (s *RecordSource) FetchGroupedCounts(ctx context.Context, table, keyField, groupField string, groupID model.GroupID) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM %s WHERE %s = ? GROUP BY %s`,
		quoteIdent(keyField), quoteIdent(table), quoteIdent(groupField), quoteIdent(keyField))

	_, rows, err := s.exec.Select(ctx, query, groupID.Value())
	if err == nil {
		counts := make(map[string]int, len(rows))
		for _, row := range rows {
			if len(row) < 2 {
				continue
			}
			key := model.FromAny(row[0])
			if key.IsNull() {
				continue
			}
			if n, ok := model.FromAny(row[1]).AsFloat(); ok {
				counts[key.Key()] += int(n)
			}
		}
		return counts, nil
	}

	s.log.Warn("store query failed, trying import fallback",
		zap.String("table", table), zap.String("field", keyField), zap.Error(err))

	records, fbErr := s.fallbackRecords(table, groupField, groupID, []string{keyField})
	if fbErr != nil {
		return nil, &model.DataAccessError{Op: "count by field", Table: table, Err: fbErr}
	}
	counts := make(map[string]int)
	for _, rec := range records {
		key, ok := rec[keyField]
		if !ok || key.IsNull() {
			continue
		}
		counts[key.Key()]++
	}
	return counts, nil
}

// fallbackRecords serves a table from its registered import file: load the
// whole file (cached per source name), filter on the group key, and project
// onto the needed fields that exist as columns. An unregistered source or an
// unsupported type yields an empty result, not an error.
func (s *RecordSource) fallbackRecords(table, groupField string, groupID model.GroupID, neededFields []string) ([]model.Record, error) {
	src, ok := s.imports[table]
	if !ok {
		s.log.Debug("no import source registered", zap.String("table", table))
		return nil, nil
	}
	if t := strings.ToLower(src.Type); t != model.ImportTypeCSV && t != model.ImportTypeVector {
		s.log.Error("unsupported import type",
			zap.String("table", table), zap.String("type", src.Type))
		return nil, nil
	}

	rows, err := s.cache.load(table, src, s.configDir)
	if err != nil {
		return nil, err
	}

	var out []model.Record
	for _, row := range rows {
		key, ok := row[groupField]
		if !ok || !groupID.Matches(key) {
			continue
		}
		rec := make(model.Record, len(neededFields))
		for _, field := range neededFields {
			if v, present := row[field]; present {
				rec[field] = v
			}
		}
		out = append(out, rec)
	}
	s.log.Debug("served records from import",
		zap.String("table", table), zap.String("group_id", groupID.String()), zap.Int("records", len(out)))
	return out, nil
}

func selectQuery(table, groupField string, fields []string, limitOne bool) string {
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			quoted = append(quoted, quoteIdent(f))
		}
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		strings.Join(quoted, ", "), quoteIdent(table), quoteIdent(groupField))
	if limitOne {
		q += " LIMIT 1"
	}
	return q
}

// quoteIdent double-quotes a table or column name. Identifiers are not
// otherwise escaped; configuration is trusted input.
func quoteIdent(name string) string {
	return `"` + name + `"`
}
