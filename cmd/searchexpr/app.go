package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sandrolain/searchexpr/internal/config"
	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/provider"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// app bundles what every command needs to evaluate queries.
type app struct {
	eval     *evaluator.Evaluator
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	closers  []io.Closer
}

func (rt *app) Close() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
}

// newApp builds the providers and the evaluator from c.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	rt := &app{registry: prometheus.NewRegistry()}
	rt.metrics = metrics.New(rt.registry)
	log := slog.Default()

	set := provider.NewSet(nil, provider.WithMetrics(rt.metrics), provider.WithLogger(log))

	if c.Provider.Dataset != "" {
		ds, err := datasetLoader(c)
		if err != nil {
			return nil, err
		}
		records, err := ds.Load(c.Provider.Dataset)
		if err != nil {
			return nil, err
		}
		set.Add(provider.NewMemory("dataset", records...))
		log.Debug("dataset loaded", "path", c.Provider.Dataset, "records", len(records))
	}

	if c.Provider.SQLite != "" {
		db, err := provider.OpenSQLite("sqlite", c.Provider.SQLite)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, db)
		set.Add(db)
		if n, err := db.Count(ctx); err == nil {
			log.Debug("sqlite opened", "path", c.Provider.SQLite, "records", n)
		}
	}

	opts := []evaluator.EvalOption{
		evaluator.WithSource(set),
		evaluator.WithMetrics(rt.metrics),
		evaluator.WithLogger(log),
		evaluator.WithDebug(c.Eval.Debug),
		evaluator.WithTimeout(c.Eval.Timeout),
		evaluator.WithCaching(c.Eval.CacheSize > 0),
		evaluator.WithCacheSize(c.Eval.CacheSize),
	}
	if c.Eval.MaxDepth > 0 {
		opts = append(opts, evaluator.WithMaxDepth(c.Eval.MaxDepth))
	}
	if c.Eval.Seed != 0 {
		opts = append(opts, evaluator.WithSeed(c.Eval.Seed))
	}
	rt.eval = evaluator.New(opts...)
	return rt, nil
}

func datasetLoader(c *config.Config) (*provider.Dataset, error) {
	if c.Provider.Schema != "" {
		return provider.NewDatasetFromFile(c.Provider.Schema)
	}
	return provider.NewDataset("")
}

// parseBindings reads key=value pairs. Values that parse as JSON keep their
// JSON type; everything else is text.
func parseBindings(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("invalid binding %q, expected name=value", p)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// writeRecords prints records as JSON lines or as text.
func writeRecords(w io.Writer, records []*types.Record, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return errors.Wrap(err, "failed to encode record")
			}
		}
		return nil
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.ID, r); err != nil {
			return err
		}
	}
	return nil
}
