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

// Consensus polls every agent in the domain concurrently and elects the
// majority answer. Votes are compared after whitespace trimming and case
// folding, so "Paris" and "paris " agree. Ties go to the configured
// tie-breaker agent when one exists, otherwise to the tied answer cast by
// the earliest agent in the domain's listing order.
type Consensus struct {
	base
}

// NewConsensus 创建共识投票策略
func NewConsensus(opts Options) *Consensus {
	return &Consensus{base: newBase(opts, "consensus_strategy")}
}

func (c *Consensus) Name() string { return NameConsensus }

func (c *Consensus) Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error) {
	rec := trace.NewRecorder(d.MaxIterations)
	meta := newMetadata(d, NameConsensus)
	task = withHistory(task, history)

	quorum := d.Quorum
	if quorum < 1 {
		quorum = 1
	}

	c.logger.Info("consensus run started",
		zap.String("run_id", meta.RunID),
		zap.String("domain", d.ID),
		zap.Int("voters", len(d.AgentIDs)),
		zap.Int("quorum", quorum),
	)

	var ledgerFull atomic.Bool
	var g errgroup.Group
	for _, id := range d.AgentIDs {
		a := agents[id]
		g.Go(func() error {
			var step trace.Step
			if proceed, gateStep := c.approve(ctx, a, meta.RunID, task); !proceed {
				step = gateStep
			} else {
				step = c.invoke(ctx, d, a, task)
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

	poll := countVotes(d, rec.Snapshot())
	if poll.cast < quorum {
		return finish(rec, meta, ReasonQuorumNotMet, true),
			&agent.QuorumError{Required: quorum, Succeeded: poll.cast}
	}

	winners := poll.leaders()

	var winner string
	if len(winners) == 1 {
		winner = winners[0]
	} else {
		w, step, err := c.breakTie(ctx, d, agents, task, winners, poll)
		if step != nil {
			if _, aerr := rec.Append(*step); aerr != nil {
				return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
			}
		}
		if err != nil {
			return finish(rec, meta, ReasonAgentFailure, true), err
		}
		winner = w
	}

	tallyJSON, _ := json.Marshal(poll.tally)
	elected := trace.Step{
		AgentID: trace.SynthesizerAgentID,
		Input:   string(tallyJSON),
		Output:  poll.answers[winner].original,
		Status:  trace.StatusSuccess,
	}
	if _, err := rec.Append(elected); err != nil {
		return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
	}

	c.logger.Info("consensus reached",
		zap.String("run_id", meta.RunID),
		zap.Int("votes", poll.tally[winner]),
		zap.Int("cast", poll.cast),
	)
	return finish(rec, meta, ReasonCompleted, false), nil
}

// breakTie asks the tie-breaker agent to choose among the tied answers, or
// falls back to domain listing order when none is configured. The returned
// step, when non-nil, records the tie-breaker invocation.
func (c *Consensus) breakTie(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, tied []string, poll ballot) (string, *trace.Step, error) {
	if d.TieBreakerAgentID == "" {
		return poll.firstByListing(tied), nil, nil
	}

	tb := agents[d.TieBreakerAgentID]
	var b strings.Builder
	b.WriteString("Several answers to the task below received equal support. ")
	b.WriteString("Pick the best one and repeat it verbatim.\n")
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n")
	for i, key := range tied {
		fmt.Fprintf(&b, "\nOption %d:\n%s\n", i+1, poll.answers[key].original)
	}

	step := c.invoke(ctx, d, tb, b.String())
	if step.Status != trace.StatusSuccess {
		return "", &step, fmt.Errorf("tie-breaker %s: %s", tb.ID, step.Error)
	}

	choice := normalizeVote(step.Output)
	for _, key := range tied {
		if choice == key || strings.Contains(choice, key) {
			return key, &step, nil
		}
	}
	// Unrecognizable choice falls back to listing order rather than failing
	// the run over a formatting quirk.
	return poll.firstByListing(tied), &step, nil
}

// ballot holds the counted votes of one poll, keyed by normalized answer.
type ballot struct {
	tally   map[string]int
	answers map[string]answer
	cast    int
	listing map[string]int
}

// answer keeps the original text of a normalized answer plus the listing
// position of its earliest caster, for deterministic tie resolution.
type answer struct {
	original  string
	casterPos int
}

func normalizeVote(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// countVotes tallies one vote per successful voter step.
func countVotes(d *agent.Domain, steps []trace.Step) ballot {
	poll := ballot{
		tally:   make(map[string]int),
		answers: make(map[string]answer),
		listing: make(map[string]int, len(d.AgentIDs)),
	}
	for i, id := range d.AgentIDs {
		poll.listing[id] = i
	}

	for _, s := range steps {
		if s.Status != trace.StatusSuccess || s.IsRouter() || s.AgentID == trace.SynthesizerAgentID {
			continue
		}
		key := normalizeVote(s.Output)
		if key == "" {
			continue
		}
		poll.cast++
		poll.tally[key]++

		pos, ok := poll.listing[s.AgentID]
		if !ok {
			pos = len(d.AgentIDs)
		}
		if prev, seen := poll.answers[key]; !seen || pos < prev.casterPos {
			poll.answers[key] = answer{original: s.Output, casterPos: pos}
		}
	}
	return poll
}

// leaders returns the answers holding the highest vote count, sorted for
// stable iteration.
func (p ballot) leaders() []string {
	best := -1
	for _, n := range p.tally {
		if n > best {
			best = n
		}
	}
	var leaders []string
	for key, n := range p.tally {
		if n == best {
			leaders = append(leaders, key)
		}
	}
	sort.Strings(leaders)
	return leaders
}

// firstByListing picks the tied answer whose earliest caster appears first
// in the domain's agent listing.
func (p ballot) firstByListing(tied []string) string {
	bestKey := tied[0]
	bestPos := p.answers[bestKey].casterPos
	for _, key := range tied[1:] {
		if p.answers[key].casterPos < bestPos {
			bestKey, bestPos = key, p.answers[key].casterPos
		}
	}
	return bestKey
}
