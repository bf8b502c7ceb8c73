package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrSkipped marks a node that did not run because an upstream node failed
var ErrSkipped = errors.New("skipped")

// Result is the outcome of one node in a chain run
type Result struct {
	Node     string
	Outputs  Outputs
	Err      error
	Skipped  bool
	Duration time.Duration
}

// RunMsg carries a finished chain run back to the event loop
type RunMsg struct {
	Results []Result
	Err     error
}

// Chain runs nodes in order, feeding each node's outputs to the next
type Chain struct {
	nodes  []Node
	logger *slog.Logger
}

// NewChain creates a chain of nodes
func NewChain(logger *slog.Logger, nodes ...Node) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{nodes: nodes, logger: logger.With("component", "chain")}
}

// Nodes returns the nodes in execution order
func (c *Chain) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// Run executes every node. The first failure stops the chain and the
// remaining nodes are reported as skipped. The returned error wraps the
// failing node's error.
func (c *Chain) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(c.nodes))
	var in Inputs
	var failed string
	var rootCause error

	for _, n := range c.nodes {
		if rootCause != nil {
			err := fmt.Errorf("%w due to upstream failure of '%s'", ErrSkipped, failed)
			results = append(results, Result{Node: n.Name(), Err: err, Skipped: true})
			record(n, "", err)
			continue
		}
		if err := ctx.Err(); err != nil {
			rootCause, failed = err, n.Name()
			results = append(results, Result{Node: n.Name(), Err: err})
			record(n, "", err)
			continue
		}

		start := time.Now()
		out, err := n.OnExecute(ctx, in)
		res := Result{Node: n.Name(), Outputs: out, Err: err, Duration: time.Since(start)}
		results = append(results, res)
		record(n, out.Info, err)

		if err != nil {
			c.logger.Error("node failed", "node", n.Name(), "error", err)
			rootCause, failed = err, n.Name()
			continue
		}
		c.logger.Debug("node executed", "node", n.Name(), "duration", res.Duration)

		if out.Session != nil {
			in.Session = out.Session
		}
		if out.Context != nil {
			in.Context = out.Context
		}
	}

	if rootCause != nil {
		return results, fmt.Errorf("execution failed for %s: %w", failed, rootCause)
	}
	return results, nil
}

// RunCmd runs the chain as a command
func (c *Chain) RunCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		results, err := c.Run(ctx)
		return RunMsg{Results: results, Err: err}
	}
}

// Summary renders a one-line outcome of a run
func Summary(results []Result) string {
	var ok, skipped int
	var failed []string
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Err != nil:
			failed = append(failed, r.Node)
		default:
			ok++
		}
	}
	if len(failed) == 0 {
		return fmt.Sprintf("%d nodes executed", ok)
	}
	return fmt.Sprintf("%d ok, failed: %s, %d skipped", ok, strings.Join(failed, ", "), skipped)
}

// IsSkipped reports whether err marks a node skipped after an upstream failure
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}

func record(n Node, info string, err error) {
	if r, ok := n.(Reporter); ok {
		r.Report(info, err)
	}
}
