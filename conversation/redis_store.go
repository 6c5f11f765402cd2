package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/scriptflow/tokenizer"
	"github.com/BaSui01/scriptflow/types"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	// TTL expires idle conversations; zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`
}

// RedisStore keeps conversation history in Redis lists, one list per
// conversation, messages JSON-encoded. Suitable for deployments where
// turns for the same conversation may land on different processes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	tok       tokenizer.Tokenizer
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, tok tokenizer.Tokenizer) (*RedisStore, error) {
	if tok == nil {
		tok = tokenizer.NewEstimate()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "scriptflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix + "conv:",
		ttl:       cfg.TTL,
		tok:       tok,
	}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks store health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(conversationID string) string {
	return s.keyPrefix + conversationID
}

// Get returns the full ordered history.
func (s *RedisStore) Get(ctx context.Context, conversationID string) ([]types.Message, error) {
	raw, err := s.client.LRange(ctx, s.key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", conversationID, err)
	}
	msgs := make([]types.Message, 0, len(raw))
	for _, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message in conversation %s: %w", conversationID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// AddMessage appends one message.
func (s *RedisStore) AddMessage(ctx context.Context, conversationID string, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.key(conversationID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(conversationID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to conversation %s: %w", conversationID, err)
	}
	return nil
}

// MessagesForContext returns the newest messages fitting the budget.
func (s *RedisStore) MessagesForContext(ctx context.Context, conversationID string, maxTokens int) ([]types.Message, error) {
	msgs, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimToBudget(msgs, maxTokens, s.tok), nil
}

// Clear removes the conversation.
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, s.key(conversationID)).Err()
}
