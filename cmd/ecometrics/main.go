package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"ecometrics/internal/config"
	"ecometrics/internal/metric"
	"ecometrics/internal/model"
	"ecometrics/internal/source"
	"ecometrics/pkg/logger"
)

// jobSpec is the declarative description of one batch run: which metrics to
// compute over which groups.
type jobSpec struct {
	Groups  []any        `json:"groups"`
	Metrics []metricSpec `json:"metrics"`
	Output  string       `json:"output,omitempty"`
}

type metricSpec struct {
	Plugin string         `json:"plugin"`
	Params map[string]any `json:"params"`
}

func main() {
	configDir := flag.String("config", "./config", "configuration directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ecometrics [-config dir] <job.json>")
		os.Exit(2)
	}

	if err := run(*configDir, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configDir, jobPath string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	job, err := loadJob(jobPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return fmt.Errorf("cannot open store: %w", err)
	}
	defer db.Close()

	src := source.New(source.NewSQLExecutor(db), cfg.Imports, cfg.ConfigDir, log)
	registry := metric.DefaultRegistry(src, log)

	runID := uuid.NewString()
	log.Info("starting metrics run",
		zap.String("run_id", runID),
		zap.Int("groups", len(job.Groups)),
		zap.Int("metrics", len(job.Metrics)))

	ctx := context.Background()
	results := make(map[string]map[string]model.MetricResult, len(job.Groups))
	for _, rawID := range job.Groups {
		groupID := model.GroupIDFromAny(rawID)
		key := "null"
		if groupID != nil {
			key = groupID.String()
		}

		perGroup := make(map[string]model.MetricResult, len(job.Metrics))
		for _, m := range job.Metrics {
			res := registry.Dispatch(ctx, model.MetricConfig{
				Plugin:  m.Plugin,
				Params:  m.Params,
				GroupID: groupID,
			})
			if res.Error != "" {
				log.Warn("metric failed",
					zap.String("run_id", runID),
					zap.String("metric", m.Plugin),
					zap.String("group_id", key),
					zap.String("cause", res.Error))
			}
			perGroup[m.Plugin] = res
		}
		results[key] = perGroup
	}

	log.Info("metrics run finished", zap.String("run_id", runID))
	return writeResults(job.Output, results)
}

func loadJob(path string) (*jobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read job file: %w", err)
	}
	var job jobSpec
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("cannot parse job file: %w", err)
	}
	if len(job.Metrics) == 0 {
		return nil, fmt.Errorf("job defines no metrics")
	}
	return &job, nil
}

func writeResults(path string, results map[string]map[string]model.MetricResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
