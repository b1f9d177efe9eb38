package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// Redis key patterns:
// {prefix}room:{room_id}   STRING<json>    - snapshot body
// {prefix}rooms            SET<room_id>    - index of saved rooms
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.RedisConfig, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) roomKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s", s.prefix, roomID)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "rooms"
}

func (s *RedisStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.roomKey(snap.RoomID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), snap.RoomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.roomKey(roomID))
	pipe.SRem(ctx, s.indexKey(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]*domain.Snapshot, error) {
	l := pkglog.Ctx(ctx)

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snaps := make([]*domain.Snapshot, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, s.roomKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				s.client.SRem(ctx, s.indexKey(), id)
				continue
			}
			return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
		}

		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, id).Msg("skipping corrupt snapshot")
			continue
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
