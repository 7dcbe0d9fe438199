package trace

import (
	"errors"
	"sync"
	"time"
)

// ErrLedgerFull is returned by Append once the run has recorded its maximum
// number of steps. The cap is the domain's max_iterations and is enforced
// here, independently of any routing or content decision.
var ErrLedgerFull = errors.New("step ledger full")

// ErrRecorderClosed is returned by Append after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// Recorder sequences completed steps into the ledger. A single owning
// goroutine consumes appends from a channel, so concurrent branches can
// record steps in completion order without interleaved writes or index gaps.
type Recorder struct {
	appendCh   chan appendReq
	snapshotCh chan chan []Step
	closeCh    chan chan []Step
	done       chan struct{}

	closeOnce sync.Once
	final     []Step
}

type appendReq struct {
	step  Step
	reply chan appendReply
}

type appendReply struct {
	index int
	err   error
}

// NewRecorder creates a ledger capped at maxSteps and starts its owning
// goroutine. maxSteps < 1 is treated as 1.
func NewRecorder(maxSteps int) *Recorder {
	if maxSteps < 1 {
		maxSteps = 1
	}
	r := &Recorder{
		appendCh:   make(chan appendReq),
		snapshotCh: make(chan chan []Step),
		closeCh:    make(chan chan []Step),
		done:       make(chan struct{}),
	}
	go r.run(maxSteps)
	return r
}

func (r *Recorder) run(maxSteps int) {
	steps := make([]Step, 0, maxSteps)
	for {
		select {
		case req := <-r.appendCh:
			if len(steps) >= maxSteps {
				req.reply <- appendReply{index: -1, err: ErrLedgerFull}
				continue
			}
			step := req.step
			step.Index = len(steps)
			if step.Timestamp.IsZero() {
				step.Timestamp = time.Now()
			}
			steps = append(steps, step)
			req.reply <- appendReply{index: step.Index}

		case reply := <-r.snapshotCh:
			snap := make([]Step, len(steps))
			copy(snap, steps)
			reply <- snap

		case reply := <-r.closeCh:
			reply <- steps
			return
		}
	}
}

// Append sequences a completed step and returns its assigned index. It
// blocks until the owning goroutine has written the step, so a caller that
// sees Append return observes its step in every later snapshot.
func (r *Recorder) Append(step Step) (int, error) {
	reply := make(chan appendReply, 1)
	select {
	case r.appendCh <- appendReq{step: step, reply: reply}:
		res := <-reply
		return res.index, res.err
	case <-r.done:
		return -1, ErrRecorderClosed
	}
}

// Snapshot returns a copy of the ledger as recorded so far.
func (r *Recorder) Snapshot() []Step {
	reply := make(chan []Step, 1)
	select {
	case r.snapshotCh <- reply:
		return <-reply
	case <-r.done:
		snap := make([]Step, len(r.final))
		copy(snap, r.final)
		return snap
	}
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int { return len(r.Snapshot()) }

// Close stops the owning goroutine and returns the final ledger. Append
// calls racing with Close receive ErrRecorderClosed.
func (r *Recorder) Close() []Step {
	r.closeOnce.Do(func() {
		reply := make(chan []Step, 1)
		r.closeCh <- reply
		r.final = <-reply
		close(r.done)
	})
	snap := make([]Step, len(r.final))
	copy(snap, r.final)
	return snap
}
