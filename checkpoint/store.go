// Package checkpoint is the persistence boundary for completed runs. The
// engine itself holds no cross-call state: multi-turn conversations are
// resumed by storing each run's Result under a caller-supplied conversation
// id and replaying it as history on the next call.
package checkpoint

import (
	"context"
	"errors"

	"github.com/BaSui01/agentorch/trace"
)

// ErrNotFound 指定会话没有已保存的运行结果
var ErrNotFound = errors.New("no stored result")

// Store persists one Result per completed run, keyed by conversation id.
type Store interface {
	// SaveResult appends a completed run to the conversation's history.
	SaveResult(ctx context.Context, conversationID string, res *trace.Result) error

	// LoadLatest returns the most recently saved result, or ErrNotFound.
	LoadLatest(ctx context.Context, conversationID string) (*trace.Result, error)

	// History returns all saved results for the conversation, oldest first.
	History(ctx context.Context, conversationID string) ([]*trace.Result, error)

	Close() error
}
