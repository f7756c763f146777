package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Evaluate one query per line concurrently",
	Long: `Reads one query per line from file (or stdin) and evaluates the queries on
a worker pool. Results are printed in input order as
"<line>\t<count>" followed by the records. Lines starting with '#' are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		if !cmd.Flags().Changed("workers") {
			workers = cfg.Batch.Workers
		}
		format, _ := cmd.Flags().GetString("format")

		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to open %s", args[0])
			}
			defer f.Close()
			in = f
		}

		rt, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		return runBatch(cmd.Context(), rt.eval, in, cmd.OutOrStdout(), workers, format)
	},
}

func init() {
	batchCmd.Flags().Int("workers", 4, "number of concurrent evaluations")
	batchCmd.Flags().String("format", "text", "output format: text or json")
}

// runBatch parses the input with EvalLines when a single worker is
// requested and fans queries out to an ants pool otherwise.
func runBatch(ctx context.Context, ev *evaluator.Evaluator, in io.Reader, out io.Writer, workers int, format string) error {
	if workers <= 1 {
		failed := 0
		for res := range ev.EvalLines(ctx, in) {
			if res.Query == "" && res.Err != nil {
				return errors.Wrap(res.Err, "failed to read queries")
			}
			if err := writeLineResult(out, res, format); err != nil {
				return err
			}
			if res.Err != nil {
				failed++
			}
		}
		return batchError(failed)
	}

	queries, err := readQueries(in)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		slog.Error("batch worker panic", "panic", v)
	}))
	if err != nil {
		return errors.Wrap(err, "failed to create worker pool")
	}
	defer pool.Release()

	results := make([]evaluator.LineResult, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			res := q
			seq, err := ev.EvalString(ctx, q.Query)
			if err == nil {
				res.Records, err = seq.Drain(ctx)
			}
			res.Err = err
			results[i] = res
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = evaluator.LineResult{Line: q.Line, Query: q.Query, Err: err}
		}
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if err := writeLineResult(out, res, format); err != nil {
			return err
		}
		if res.Err != nil {
			failed++
		}
	}
	return batchError(failed)
}

// readQueries collects the non-empty query lines of in.
func readQueries(in io.Reader) ([]evaluator.LineResult, error) {
	var out []evaluator.LineResult
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		q := strings.TrimSpace(scanner.Text())
		if q == "" || strings.HasPrefix(q, "#") {
			continue
		}
		out = append(out, evaluator.LineResult{Line: line, Query: q})
	}
	return out, errors.Wrap(scanner.Err(), "failed to read queries")
}

func writeLineResult(w io.Writer, res evaluator.LineResult, format string) error {
	if res.Err != nil {
		_, err := fmt.Fprintf(w, "%d\terror\t%v\n", res.Line, res.Err)
		return err
	}
	if _, err := fmt.Fprintf(w, "%d\t%d\n", res.Line, len(res.Records)); err != nil {
		return err
	}
	return writeRecords(w, res.Records, format)
}

func batchError(failed int) error {
	if failed > 0 {
		return errors.Errorf("%d queries failed", failed)
	}
	return nil
}
