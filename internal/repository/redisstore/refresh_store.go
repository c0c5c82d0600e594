// Package redisstore keeps refresh sessions in redis so several API
// instances can share rotation and revocation state.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RefreshTokenStore stores one key per session plus a per-user index set.
type RefreshTokenStore struct {
	client *redis.Client
	now    func() time.Time
}

// Connect dials redis and verifies the connection.
func Connect(ctx context.Context, opts Options) (*RefreshTokenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client), nil
}

func New(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client, now: time.Now}
}

func (s *RefreshTokenStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string { return "refresh:" + id }

func userKey(userID string) string { return "refresh:user:" + userID }

func (s *RefreshTokenStore) Save(ctx context.Context, session domain.RefreshSession) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), session.UserID, ttl)
		pipe.SAdd(ctx, userKey(session.UserID), session.ID)
		pipe.Expire(ctx, userKey(session.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save refresh session: %w", err)
	}
	return nil
}

// Consume uses GETDEL so concurrent refreshes with the same token id
// cannot both succeed.
func (s *RefreshTokenStore) Consume(ctx context.Context, id string) (string, error) {
	userID, err := s.client.GetDel(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("refresh token %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("redis consume refresh session: %w", err)
	}
	if err := s.client.SRem(ctx, userKey(userID), id).Err(); err != nil {
		return "", fmt.Errorf("redis unindex refresh session: %w", err)
	}
	return userID, nil
}

func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("redis list refresh sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis revoke refresh sessions: %w", err)
	}
	return nil
}

var _ repository.RefreshTokenStore = (*RefreshTokenStore)(nil)
