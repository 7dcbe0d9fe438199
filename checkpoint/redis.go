package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/agentorch/trace"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"` // 0 = keep forever
}

// RedisStore is a Redis-based Store for distributed deployments. Results
// are stored as JSON blobs; a sorted set per conversation indexes them by
// run start time.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore 创建 Redis 结果存储并验证连接
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "agentorch:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "run:",
		ttl:       cfg.TTL,
	}, nil
}

func (s *RedisStore) dataKey(runID string) string {
	return s.keyPrefix + "data:" + runID
}

func (s *RedisStore) conversationKey(conversationID string) string {
	return s.keyPrefix + "conv:" + conversationID
}

func (s *RedisStore) SaveResult(ctx context.Context, conversationID string, res *trace.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}

	runID := res.Metadata.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	score := float64(res.Metadata.StartedAt.UnixNano())
	if res.Metadata.StartedAt.IsZero() {
		score = float64(time.Now().UnixNano())
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(runID), data, s.ttl)
	pipe.ZAdd(ctx, s.conversationKey(conversationID), redis.Z{Score: score, Member: runID})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.conversationKey(conversationID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadLatest(ctx context.Context, conversationID string) (*trace.Result, error) {
	ids, err := s.client.ZRevRange(ctx, s.conversationKey(conversationID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation index: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.load(ctx, ids[0])
}

func (s *RedisStore) History(ctx context.Context, conversationID string) ([]*trace.Result, error) {
	ids, err := s.client.ZRange(ctx, s.conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation index: %w", err)
	}

	out := make([]*trace.Result, 0, len(ids))
	for _, id := range ids {
		res, err := s.load(ctx, id)
		if err == ErrNotFound {
			// Data key expired while the index entry survived.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *RedisStore) load(ctx context.Context, runID string) (*trace.Result, error) {
	data, err := s.client.Get(ctx, s.dataKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", runID, err)
	}
	var res trace.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", runID, err)
	}
	return &res, nil
}

// Ping checks store health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
