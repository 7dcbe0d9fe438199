// Package hitl implements the human-in-the-loop approval gate. Strategies
// suspend before a side-effecting agent step and resume only when an
// external approve/reject signal arrives; a reject carries its reason into
// the trace as a failure step rather than being dropped.
package hitl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request describes a pending approval for one side-effecting step.
type Request struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	AgentID   string    `json:"agent_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision is the external approve/reject signal.
type Decision struct {
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

type pendingRequest struct {
	req        Request
	responseCh chan Decision
}

// Gate holds pending approval requests and blocks the requesting strategy
// goroutine until each is resolved or times out.
type Gate struct {
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewGate 创建审批门，timeout 为单个审批请求的最长等待时间
func NewGate(timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		timeout: timeout,
		logger:  logger.With(zap.String("component", "approval_gate")),
		pending: make(map[string]*pendingRequest),
	}
}

// RequestApproval registers the request and blocks until it is approved,
// rejected, times out, or ctx is cancelled. Timeout and cancellation are
// reported as errors; an explicit reject is a valid Decision, not an error.
func (g *Gate) RequestApproval(ctx context.Context, req Request) (Decision, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	p := &pendingRequest{req: req, responseCh: make(chan Decision, 1)}

	g.mu.Lock()
	g.pending[req.ID] = p
	g.mu.Unlock()

	g.logger.Info("approval requested",
		zap.String("id", req.ID),
		zap.String("run_id", req.RunID),
		zap.String("agent_id", req.AgentID),
	)

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case decision := <-p.responseCh:
		return decision, nil
	case <-timer.C:
		return Decision{}, fmt.Errorf("approval %s timed out after %s", req.ID, g.timeout)
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Approve resolves a pending request positively.
func (g *Gate) Approve(id string) error {
	return g.resolve(id, Decision{Approved: true, DecidedAt: time.Now()})
}

// Reject resolves a pending request negatively with a reason. The reason is
// recorded on the resulting failure step.
func (g *Gate) Reject(id, reason string) error {
	return g.resolve(id, Decision{Approved: false, Reason: reason, DecidedAt: time.Now()})
}

func (g *Gate) resolve(id string, decision Decision) error {
	g.mu.Lock()
	p, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("approval not found or already resolved: %s", id)
	}

	g.logger.Info("approval resolved",
		zap.String("id", id),
		zap.Bool("approved", decision.Approved),
	)

	p.responseCh <- decision
	return nil
}

// Pending returns a snapshot of open requests, newest last.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Request, 0, len(g.pending))
	for _, p := range g.pending {
		out = append(out, p.req)
	}
	return out
}
