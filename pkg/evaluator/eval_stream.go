package evaluator

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// StreamResult holds one step of a streaming evaluation.
type StreamResult struct {
	// Record is the produced record, or nil when Err is set.
	Record *types.Record
	// Err terminates the stream of one query.
	Err error
}

// Stream executes node on a goroutine and sends its records on the returned
// channel. Pending elements are not sent. The channel is closed when the
// sequence is exhausted, fails, or ctx is cancelled.
//
// It is the caller's responsibility to drain the channel or cancel the
// context to avoid goroutine leaks.
func (e *Evaluator) Stream(ctx context.Context, node *types.Node) (<-chan StreamResult, error) {
	seq, err := e.Execute(ctx, node)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamResult, 16)
	go func() {
		defer close(ch)
		for r, err := range seq.Records() {
			select {
			case ch <- StreamResult{Record: r, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// LineResult is the outcome of one query line of EvalLines.
type LineResult struct {
	// Line is the 1-based input line number.
	Line    int
	Query   string
	Records []*types.Record
	Err     error
}

// EvalLines reads one query per line from r and evaluates each in turn.
// Blank lines and lines starting with '#' are skipped. Per-query errors are
// reported in their LineResult and the stream continues; a read error is
// sent last and closes the channel.
func (e *Evaluator) EvalLines(ctx context.Context, r io.Reader) <-chan LineResult {
	ch := make(chan LineResult, 16)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			query := strings.TrimSpace(scanner.Text())
			if query == "" || strings.HasPrefix(query, "#") {
				continue
			}
			if err := ctx.Err(); err != nil {
				sendLine(ctx, ch, LineResult{Line: line, Query: query, Err: err})
				return
			}

			res := LineResult{Line: line, Query: query}
			var seq types.Sequence
			if seq, res.Err = e.EvalString(ctx, query); res.Err == nil {
				res.Records, res.Err = seq.Drain(ctx)
			}
			if !sendLine(ctx, ch, res) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sendLine(ctx, ch, LineResult{Line: line, Err: err})
		}
	}()

	return ch
}

// sendLine delivers res unless ctx ends first. A result that fits the buffer is
// still delivered after cancellation.
func sendLine(ctx context.Context, ch chan<- LineResult, res LineResult) bool {
	select {
	case ch <- res:
		return true
	default:
	}
	select {
	case ch <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
