package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/types"
)

const historyFile = ".searchexpr_history"

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Evaluate queries interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		rt, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		line.SetCompleter(completer(rt.eval))

		history := historyPath()
		if f, err := os.Open(history); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(history); err == nil {
				_, _ = line.WriteHistory(f)
				f.Close()
			}
		}()

		out := cmd.OutOrStdout()
		for {
			input, err := line.Prompt("searchexpr> ")
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "failed to read input")
			}
			input = strings.TrimSpace(input)
			switch input {
			case "":
				continue
			case ":q", ":quit", "exit":
				return nil
			}
			line.AppendHistory(input)

			if err := replEval(cmd, rt.eval, out, input, format, limit); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
		}
	},
}

func init() {
	replCmd.Flags().String("format", "text", "output format: text or json")
	replCmd.Flags().Int("limit", 50, "maximum records printed per query")
}

func replEval(cmd *cobra.Command, ev *evaluator.Evaluator, out io.Writer, query, format string, limit int) error {
	seq, err := ev.EvalString(cmd.Context(), query)
	if err != nil {
		return err
	}
	n := 0
	for r, err := range seq.Records() {
		if err != nil {
			return err
		}
		if limit > 0 && n >= limit {
			fmt.Fprintln(out, "...")
			break
		}
		if err := writeRecords(out, []*types.Record{r}, format); err != nil {
			return err
		}
		n++
	}
	return nil
}

// completer completes the evaluator name being typed before a '{'.
func completer(ev *evaluator.Evaluator) liner.Completer {
	var names []string
	for _, info := range ev.Evaluators() {
		names = append(names, info.Name)
	}
	sort.Strings(names)

	return func(input string) []string {
		start := strings.LastIndexAny(input, "{, ") + 1
		prefix := strings.ToLower(input[start:])
		var out []string
		for _, name := range names {
			if strings.HasPrefix(strings.ToLower(name), prefix) {
				out = append(out, input[:start]+name+"{")
			}
		}
		return out
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}
