// Package redis holds the Redis-backed collaborators of the engine: the
// pending-sale context store and the client constructor shared with the
// scanner's leader election.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingTTL bounds how long a recorded sale waits for its delivery event.
// Undelivered orders older than this no longer start a post-sale sequence.
const pendingTTL = 60 * 24 * time.Hour

func pendingKey(contactID string) string { return "followup:pending_sale:" + contactID }

// PendingSaleStore records sale context between the "sale completed" event
// and the "order delivered" event that actually starts the post-sale
// sequence. The delivery adapter consumes the context; the stage-change
// adapter only peeks at it for best-effort lookups.
type PendingSaleStore interface {
	Record(ctx context.Context, contactID string, saleCtx map[string]any) error
	Peek(ctx context.Context, contactID string) (map[string]any, error)
	Take(ctx context.Context, contactID string) (map[string]any, error)
}

type pendingSaleStore struct {
	client *redis.Client
}

// NewPendingSaleStore creates a Redis-backed PendingSaleStore.
func NewPendingSaleStore(client *redis.Client) PendingSaleStore {
	return &pendingSaleStore{client: client}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (s *pendingSaleStore) Record(ctx context.Context, contactID string, saleCtx map[string]any) error {
	data, err := json.Marshal(saleCtx)
	if err != nil {
		return fmt.Errorf("marshal pending sale for %s: %w", contactID, err)
	}
	if err := s.client.Set(ctx, pendingKey(contactID), data, pendingTTL).Err(); err != nil {
		return fmt.Errorf("redis set pending sale for %s: %w", contactID, err)
	}
	return nil
}

func (s *pendingSaleStore) Peek(ctx context.Context, contactID string) (map[string]any, error) {
	data, err := s.client.Get(ctx, pendingKey(contactID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get pending sale for %s: %w", contactID, err)
	}
	return decodePending(contactID, data)
}

// Take returns and deletes the pending sale context, so a second delivery
// event for the same contact starts from a clean slate.
func (s *pendingSaleStore) Take(ctx context.Context, contactID string) (map[string]any, error) {
	data, err := s.client.GetDel(ctx, pendingKey(contactID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis getdel pending sale for %s: %w", contactID, err)
	}
	return decodePending(contactID, data)
}

func decodePending(contactID string, data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal pending sale for %s: %w", contactID, err)
	}
	return out, nil
}
