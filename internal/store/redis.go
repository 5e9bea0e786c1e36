package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openclaw/interview-server-go/internal/model"
	redisclient "github.com/openclaw/interview-server-go/internal/redis"
)

// RedisStore keeps sessions as JSON strings so any server process can bind a
// connection to a session created elsewhere.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, session *model.InterviewSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisclient.SessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, session *model.InterviewSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	updated, err := s.client.SetXX(ctx, redisclient.SessionKey(session.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !updated {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*model.InterviewSession, error) {
	data, err := s.client.Get(ctx, redisclient.SessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session model.InterviewSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Remove(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisclient.SessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
