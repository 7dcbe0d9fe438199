package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

// Parallel fans the task out to every agent in the domain at once and, when
// at least Quorum branches succeed, appends one synthesis step merging the
// successful outputs. Branch steps land in the ledger in completion order;
// the synthesis step is always last.
type Parallel struct {
	base
}

// NewParallel 创建并行扇出策略
func NewParallel(opts Options) *Parallel {
	return &Parallel{base: newBase(opts, "parallel_strategy")}
}

func (p *Parallel) Name() string { return NameParallel }

func (p *Parallel) Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error) {
	rec := trace.NewRecorder(d.MaxIterations)
	meta := newMetadata(d, NameParallel)
	task = withHistory(task, history)

	quorum := d.Quorum
	if quorum < 1 {
		quorum = 1
	}

	p.logger.Info("parallel run started",
		zap.String("run_id", meta.RunID),
		zap.String("domain", d.ID),
		zap.Int("agents", len(d.AgentIDs)),
		zap.Int("quorum", quorum),
	)

	var ledgerFull atomic.Bool

	// Branches never cancel each other: one failed agent must not abort its
	// siblings, quorum decides afterwards.
	var g errgroup.Group
	for _, id := range d.AgentIDs {
		a := agents[id]
		g.Go(func() error {
			var step trace.Step
			if proceed, gateStep := p.approve(ctx, a, meta.RunID, task); !proceed {
				step = gateStep
			} else {
				step = p.invoke(ctx, d, a, task)
			}
			if _, err := rec.Append(step); err != nil {
				ledgerFull.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return finish(rec, meta, ReasonCancelled, true), ctx.Err()
	}
	if ledgerFull.Load() {
		return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
	}

	outputs := successOutputs(rec.Snapshot())
	if len(outputs) < quorum {
		p.logger.Warn("quorum not met",
			zap.String("run_id", meta.RunID),
			zap.Int("required", quorum),
			zap.Int("succeeded", len(outputs)),
		)
		return finish(rec, meta, ReasonQuorumNotMet, true),
			&agent.QuorumError{Required: quorum, Succeeded: len(outputs)}
	}

	synth := p.synthesize(ctx, d, agents, task, outputs)
	if _, err := rec.Append(synth); err != nil {
		return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
	}
	if synth.Status != trace.StatusSuccess {
		if synth.Status == trace.StatusCancelled {
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		}
		return finish(rec, meta, ReasonAgentFailure, true),
			fmt.Errorf("synthesis failed: %s", synth.Error)
	}

	return finish(rec, meta, ReasonCompleted, false), nil
}

// synthesize merges the successful branch outputs through the domain's
// default agent and records the result under the synthesizer sentinel id.
func (p *Parallel) synthesize(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, outputs map[string]string) trace.Step {
	merged, _ := json.Marshal(outputs)

	synthAgent := agents[d.DefaultAgent()]
	prompt := buildSynthesisPrompt(task, outputs)

	step := p.invoke(ctx, d, synthAgent, prompt)
	step.AgentID = trace.SynthesizerAgentID
	step.Input = string(merged)
	return step
}

// successOutputs collects branch outputs keyed by agent id, successes only.
func successOutputs(steps []trace.Step) map[string]string {
	outputs := make(map[string]string, len(steps))
	for _, s := range steps {
		if s.Status == trace.StatusSuccess && !s.IsRouter() {
			outputs[s.AgentID] = s.Output
		}
	}
	return outputs
}

func buildSynthesisPrompt(task string, outputs map[string]string) string {
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Synthesize the following answers into a single coherent response.\n")
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "\n--- Answer from %s ---\n%s\n", id, outputs[id])
	}
	return b.String()
}
