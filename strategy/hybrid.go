package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/tokens"
	"github.com/BaSui01/agentorch/trace"
)

const defaultSummaryThreshold = 4000

// Hybrid runs the dynamic handoff loop behind a compacting prompt window:
// once the rendered transcript exceeds the domain's token threshold, older
// turns are summarized by the summarizer agent and only the summary plus
// the most recent turns are shown to subsequent agents. Compaction touches
// the prompt window only; every original step stays in the ledger, and each
// summarization is itself recorded as a step.
type Hybrid struct {
	Dynamic
	counter tokens.Counter
}

// NewHybrid 创建摘要压缩混合策略
func NewHybrid(opts Options) *Hybrid {
	counter := opts.Tokens
	if counter == nil {
		counter = tokens.EstimateCounter{}
	}
	return &Hybrid{
		Dynamic: Dynamic{
			base:   newBase(opts, "hybrid_strategy"),
			router: opts.Router,
		},
		counter: counter,
	}
}

func (s *Hybrid) Name() string { return NameHybrid }

func (s *Hybrid) Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error) {
	threshold := d.SummaryTokenThreshold
	if threshold <= 0 {
		threshold = defaultSummaryThreshold
	}
	preserve := d.PreserveRecent
	if preserve < 1 {
		preserve = 2
	}

	win := &summaryWindow{
		exec:       s.exec,
		counter:    s.counter,
		domain:     d,
		summarizer: agents[d.SummarizerAgentID],
		threshold:  threshold,
		preserve:   preserve,
		logger:     s.logger,
	}
	return s.run(ctx, d, agents, withHistory(task, history), win, NameHybrid)
}

// summaryWindow is the per-run compacting prompt window. It tracks which
// ledger prefix the rolling summary already covers, so each compaction only
// summarizes the turns added since the last one.
type summaryWindow struct {
	exec       agent.Executor
	counter    tokens.Counter
	domain     *agent.Domain
	summarizer agent.Agent
	threshold  int
	preserve   int
	logger     *zap.Logger

	summary        string
	coveredThrough int // ledger index the summary covers, exclusive
}

func (w *summaryWindow) next(ctx context.Context, rec *trace.Recorder, task string) (string, error) {
	steps := rec.Snapshot()
	prompt := renderTranscript(task, w.summary, steps, w.coveredThrough)

	count, err := w.counter.Count(prompt)
	if err != nil {
		// A counter failure leaves the window uncompacted.
		return prompt, nil
	}
	if count <= w.threshold {
		return prompt, nil
	}

	cutoff := w.compactionCutoff(steps)
	if cutoff <= w.coveredThrough {
		return prompt, nil
	}

	if err := w.compact(ctx, rec, steps, cutoff); err != nil {
		w.logger.Warn("summarization failed, keeping full window", zap.Error(err))
		return prompt, nil
	}
	return renderTranscript(task, w.summary, rec.Snapshot(), w.coveredThrough), nil
}

// compactionCutoff finds the ledger index up to which turns can be folded
// into the summary, keeping the most recent agent turns verbatim.
func (w *summaryWindow) compactionCutoff(steps []trace.Step) int {
	kept := 0
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.IsRouter() || s.Summary || s.Status != trace.StatusSuccess {
			continue
		}
		kept++
		if kept >= w.preserve {
			return s.Index
		}
	}
	return 0
}

// compact summarizes steps[coveredThrough:cutoff] through the summarizer
// agent, records the summarization as a ledger step, and advances the
// window state.
func (w *summaryWindow) compact(ctx context.Context, rec *trace.Recorder, steps []trace.Step, cutoff int) error {
	var b strings.Builder
	b.WriteString("Condense the following conversation turns into a brief summary. ")
	b.WriteString("Keep every decision, fact, and open question.\n")
	if w.summary != "" {
		b.WriteString("\nExisting summary:\n")
		b.WriteString(w.summary)
		b.WriteString("\n")
	}
	for _, s := range steps {
		if s.Index < w.coveredThrough || s.Index >= cutoff {
			continue
		}
		if s.IsRouter() || s.Summary || s.Status != trace.StatusSuccess {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]: %s", s.AgentID, s.Output)
	}

	start := time.Now()
	summary, err := w.exec.Invoke(ctx, w.summarizer, b.String())
	if err != nil {
		return fmt.Errorf("summarizer %s: %w", w.summarizer.ID, err)
	}

	step := trace.Step{
		AgentID:   w.summarizer.ID,
		Input:     b.String(),
		Output:    summary,
		Status:    trace.StatusSuccess,
		Timestamp: start,
		Duration:  time.Since(start),
		Summary:   true,
	}
	if _, err := rec.Append(step); err != nil {
		return err
	}

	w.summary = summary
	w.coveredThrough = cutoff
	w.logger.Info("prompt window compacted",
		zap.Int("covered_through", cutoff),
		zap.Int("summary_chars", len(summary)),
	)
	return nil
}
