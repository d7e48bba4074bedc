package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/port"
)

const (
	inventoryKeyPrefix = "inventory:"
	partsKey           = "inventory:parts"
	containerIndexKey  = "container:index"

	defaultLockTTL   = 10 * time.Second
	lockRetryBackoff = 20 * time.Millisecond
)

var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter stores one JSON inventory record per part plus a hash from
// container serial to part number. Updates are optimistic: the record is
// watched and only written if its version still matches.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

var _ port.InventoryRepository = (*RedisAdapter)(nil)

func (r *RedisAdapter) GetInventory(ctx context.Context, partNumber string) (*domain.Inventory, error) {
	raw, err := r.client.Get(ctx, inventoryKeyPrefix+partNumber).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInventoryNotFound, partNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("get inventory %s: %w", partNumber, err)
	}

	var inv domain.Inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode inventory %s: %w", partNumber, err)
	}
	return &inv, nil
}

func (r *RedisAdapter) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	parts, err := r.client.SMembers(ctx, partsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	if len(parts) == 0 {
		return []domain.Inventory{}, nil
	}
	sort.Strings(parts)

	keys := make([]string, len(parts))
	for i, pn := range parts {
		keys[i] = inventoryKeyPrefix + pn
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}

	out := make([]domain.Inventory, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var inv domain.Inventory
		if err := json.Unmarshal([]byte(s), &inv); err != nil {
			return nil, fmt.Errorf("decode inventory %s: %w", parts[i], err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *RedisAdapter) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	key := inventoryKeyPrefix + inv.PartNumber

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", domain.ErrInventoryNotFound, inv.PartNumber)
		}
		if err != nil {
			return err
		}

		var current domain.Inventory
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode inventory %s: %w", inv.PartNumber, err)
		}
		if current.Version != inv.Version {
			return domain.ErrOptimisticLock
		}

		next := inv.Clone()
		next.Version++
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			for _, c := range current.Containers {
				if next.IndexOf(c.SerialNumber) < 0 {
					pipe.HDel(ctx, containerIndexKey, c.SerialNumber)
				}
			}
			if fields := indexFields(next); len(fields) > 0 {
				pipe.HSet(ctx, containerIndexKey, fields...)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrOptimisticLock
	}
	return err
}

func (r *RedisAdapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	records, err := r.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Container
	for _, inv := range records {
		out = append(out, inv.Containers...)
	}
	return out, nil
}

func (r *RedisAdapter) FindContainer(ctx context.Context, serialNumber string) (*domain.Container, error) {
	partNumber, err := r.client.HGet(ctx, containerIndexKey, serialNumber).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrContainerNotFound, serialNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup container %s: %w", serialNumber, err)
	}

	inv, err := r.GetInventory(ctx, partNumber)
	if err != nil {
		return nil, err
	}
	idx := inv.IndexOf(serialNumber)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrContainerNotFound, serialNumber)
	}
	c := inv.Containers[idx]
	return &c, nil
}

// SetInventory overwrites a part's record unconditionally. Used for seeding.
func (r *RedisAdapter) SetInventory(ctx context.Context, inv domain.Inventory) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, inventoryKeyPrefix+inv.PartNumber, payload, 0)
		pipe.SAdd(ctx, partsKey, inv.PartNumber)
		if fields := indexFields(inv); len(fields) > 0 {
			pipe.HSet(ctx, containerIndexKey, fields...)
		}
		return nil
	})
	return err
}

func indexFields(inv domain.Inventory) []interface{} {
	fields := make([]interface{}, 0, 2*len(inv.Containers))
	for _, c := range inv.Containers {
		fields = append(fields, c.SerialNumber, inv.PartNumber)
	}
	return fields
}

// RedisLocker is a single-instance Redis lock: SET NX PX with a random token,
// released only by the holder of that token.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

var _ port.Locker = (*RedisLocker)(nil)

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			log.WithError(err).WithField("key", key).Warn("failed to release lock")
		}
	}, nil
}
