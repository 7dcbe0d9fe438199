package checkpoint

import (
	"context"
	"sync"

	"github.com/BaSui01/agentorch/trace"
)

// MemoryStore is an in-process Store for tests and single-node use.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string][]*trace.Result
}

// NewMemoryStore 创建内存结果存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string][]*trace.Result)}
}

func (s *MemoryStore) SaveResult(ctx context.Context, conversationID string, res *trace.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[conversationID] = append(s.results[conversationID], res)
	return nil
}

func (s *MemoryStore) LoadLatest(ctx context.Context, conversationID string) (*trace.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.results[conversationID]
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return runs[len(runs)-1], nil
}

func (s *MemoryStore) History(ctx context.Context, conversationID string) ([]*trace.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := s.results[conversationID]
	out := make([]*trace.Result, len(runs))
	copy(out, runs)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
