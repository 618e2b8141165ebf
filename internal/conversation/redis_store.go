package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

type Store interface {
	Load(ctx context.Context, userID uint, id string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, userID uint, id string) error
}

// RedisStore keeps each conversation as one JSON value whose TTL is
// refreshed on every save.
type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Load returns ErrConversationAbsent when the key is missing or expired.
func (s *RedisStore) Load(ctx context.Context, userID uint, id string) (*Conversation, error) {
	raw, err := s.client.Get(ctx, key(userID, id)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, ErrConversationAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("redis get conversation failed: %w", err)
	}

	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal conversation failed: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Conversation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation failed: %w", err)
	}
	if err := s.client.Set(ctx, key(c.UserID, c.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set conversation failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID uint, id string) error {
	if err := s.client.Del(ctx, key(userID, id)).Err(); err != nil {
		return fmt.Errorf("redis delete conversation failed: %w", err)
	}
	return nil
}

func key(userID uint, id string) string {
	return fmt.Sprintf("chat:conversation:%d:%s", userID, id)
}
