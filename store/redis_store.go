package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"queueless/internal/status"
	"queueless/models"
)

const (
	queueKeyPrefix   = "queue:"
	allQueuesKey     = "queues:all"
	providerIndexFmt = "queues:provider:%s"
	placeIndexFmt    = "queues:place:%s"
	serviceIndexFmt  = "queues:service:%s"
)

// RedisStore persists each queue as a single JSON document plus secondary
// index sets for provider/place/service lookups. A queue document is the unit
// of atomicity; there are no cross-queue transactions.
type RedisStore struct {
	Redis redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{Redis: client}
}

func queueKey(queueID string) string {
	return queueKeyPrefix + queueID
}

func (s *RedisStore) Load(ctx context.Context, queueID string) (*models.Queue, error) {
	data, err := s.Redis.Get(ctx, queueKey(queueID)).Result()
	if err == redis.Nil {
		return nil, status.ErrQueueNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load queue %s: %w", queueID, err)
	}

	var queue models.Queue
	if err := json.Unmarshal([]byte(data), &queue); err != nil {
		return nil, fmt.Errorf("unmarshal queue %s: %w", queueID, err)
	}

	return &queue, nil
}

func (s *RedisStore) Save(ctx context.Context, queue *models.Queue) (*models.Queue, error) {
	data, err := json.Marshal(queue)
	if err != nil {
		return nil, fmt.Errorf("marshal queue %s: %w", queue.ID, err)
	}

	if err := s.Redis.Set(ctx, queueKey(queue.ID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("save queue %s: %w", queue.ID, err)
	}

	// Maintain lookup indexes. Index writes after the document write: a
	// dangling index entry is skipped on read, a missing one loses lookups,
	// so the document is written first.
	s.Redis.SAdd(ctx, allQueuesKey, queue.ID)
	if queue.ProviderID != "" {
		s.Redis.SAdd(ctx, fmt.Sprintf(providerIndexFmt, queue.ProviderID), queue.ID)
	}
	if queue.PlaceID != "" {
		s.Redis.SAdd(ctx, fmt.Sprintf(placeIndexFmt, queue.PlaceID), queue.ID)
	}
	if queue.ServiceID != "" {
		s.Redis.SAdd(ctx, fmt.Sprintf(serviceIndexFmt, queue.ServiceID), queue.ID)
	}

	return queue, nil
}

func (s *RedisStore) FindAll(ctx context.Context) ([]*models.Queue, error) {
	ids, err := s.Redis.SMembers(ctx, allQueuesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) FindByProviderID(ctx context.Context, providerID string) ([]*models.Queue, error) {
	ids, err := s.Redis.SMembers(ctx, fmt.Sprintf(providerIndexFmt, providerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list queues for provider %s: %w", providerID, err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) FindByPlaceID(ctx context.Context, placeID string) ([]*models.Queue, error) {
	ids, err := s.Redis.SMembers(ctx, fmt.Sprintf(placeIndexFmt, placeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list queues for place %s: %w", placeID, err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) FindByServiceID(ctx context.Context, serviceID string) ([]*models.Queue, error) {
	ids, err := s.Redis.SMembers(ctx, fmt.Sprintf(serviceIndexFmt, serviceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list queues for service %s: %w", serviceID, err)
	}
	return s.loadMany(ctx, ids)
}

func (s *RedisStore) FindActive(ctx context.Context) ([]*models.Queue, error) {
	queues, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	active := queues[:0]
	for _, q := range queues {
		if q.IsActive {
			active = append(active, q)
		}
	}
	return active, nil
}

func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*models.Queue, error) {
	queues := make([]*models.Queue, 0, len(ids))
	for _, id := range ids {
		queue, err := s.Load(ctx, id)
		if errors.Is(err, status.ErrQueueNotFound) {
			// Stale index entry, skip.
			continue
		} else if err != nil {
			return nil, err
		}
		queues = append(queues, queue)
	}
	return queues, nil
}
