package snapshot

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/database"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/storage"
)

// Store persists live-room snapshots keyed by room id.
type Store interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
	Delete(ctx context.Context, roomID string) error
	LoadAll(ctx context.Context) ([]*domain.Snapshot, error)
	Close() error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.SnapshotConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return NopStore{}, nil
	case "redis":
		return NewRedisStore(cfg.Redis, cfg.KeyPrefix)
	case "storage":
		st, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot storage: %w", err)
		}
		return NewObjectStore(st, "snapshots"), nil
	case "database":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewDatabaseStore(db)
	default:
		return nil, fmt.Errorf("unsupported snapshot driver: %s", cfg.Driver)
	}
}

// NopStore discards snapshots.
type NopStore struct{}

func (NopStore) Save(context.Context, *domain.Snapshot) error { return nil }

func (NopStore) Delete(context.Context, string) error { return nil }

func (NopStore) LoadAll(context.Context) ([]*domain.Snapshot, error) { return nil, nil }

func (NopStore) Close() error { return nil }
