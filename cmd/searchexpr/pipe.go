package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// pipeRequest is one line of pipe input.
type pipeRequest struct {
	Query    string                 `json:"query"`
	Bindings map[string]interface{} `json:"bindings,omitempty"`
}

// pipeResponse is one line of pipe output.
type pipeResponse struct {
	Records []*types.Record `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Answer JSON requests read line by line from stdin",
	Long: `Reads one JSON object per line from stdin and writes one JSON object per
line to stdout:

  stdin:  {"query": "<expression>", "bindings": {...}}
  stdout: {"records": [...]}   on success
          {"error": "<message>", "code": "<code>"}   on failure

A failed request does not stop the pipe.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()
		return runPipe(cmd.Context(), rt.eval, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runPipe(ctx context.Context, ev *evaluator.Evaluator, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp pipeResponse
		var req pipeRequest
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = "invalid request JSON: " + err.Error()
		} else if records, err := answer(ctx, ev, req); err != nil {
			resp.Error = err.Error()
			var xe *types.Error
			if errors.As(err, &xe) {
				resp.Code = string(xe.Code)
			}
		} else {
			resp.Records = records
		}
		if err := enc.Encode(resp); err != nil {
			return errors.Wrap(err, "failed to write response")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "failed to read requests")
}

func answer(ctx context.Context, ev *evaluator.Evaluator, req pipeRequest) ([]*types.Record, error) {
	node, err := ev.Compile(req.Query)
	if err != nil {
		return nil, err
	}
	seq, err := ev.ExecuteWithBindings(ctx, node, req.Bindings)
	if err != nil {
		return nil, err
	}
	return seq.Drain(ctx)
}
