// Package presence tracks which users currently hold a live relay connection.
// State lives in Redis under a short TTL so a crashed server's entries age out
// on their own; the heartbeat sweep refreshes the TTL for connections that are
// still alive.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for all presence hashes.
	KeyPrefix = "presence:"

	// TTL is the time-to-live for presence keys. It must exceed the heartbeat
	// interval or live users will flicker offline between sweeps.
	TTL = 2 * time.Minute
)

// Entry is a user's presence record.
type Entry struct {
	UserID     string `redis:"user_id"`
	ConnID     string `redis:"conn_id"`
	Server     string `redis:"server"`
	LastActive int64  `redis:"last_active"` // unix timestamp
}

// Store manages presence state in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore connects to Redis and returns a presence store tagged with this
// server instance's name.
func NewStore(redisAddr string, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// MarkOnline records that the user has an active connection on this server.
func (s *Store) MarkOnline(ctx context.Context, userID, connID string) error {
	key := KeyPrefix + userID

	entry := map[string]interface{}{
		"user_id":     userID,
		"conn_id":     connID,
		"server":      s.serverName,
		"last_active": time.Now().Unix(),
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, entry)
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// MarkOffline removes the user's presence record, but only if it still points
// at the given connection. A user who reconnected keeps the newer record.
func (s *Store) MarkOffline(ctx context.Context, userID, connID string) error {
	key := KeyPrefix + userID

	current, err := s.client.HGet(ctx, key, "conn_id").Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if current != connID {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// Refresh extends the presence TTL and bumps the activity timestamp. Called by
// the heartbeat sweep for each connection that answered its ping window.
func (s *Store) Refresh(ctx context.Context, userID string) error {
	key := KeyPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
