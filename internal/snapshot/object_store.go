package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/storage"
)

const snapshotContentType = "application/json"

// ObjectStore keeps one JSON object per room in a local directory or S3 bucket.
type ObjectStore struct {
	storage storage.Storage
	dir     string
}

func NewObjectStore(st storage.Storage, dir string) *ObjectStore {
	return &ObjectStore{storage: st, dir: strings.Trim(dir, "/")}
}

func (s *ObjectStore) key(roomID string) string {
	return path.Join(s.dir, roomID+".json")
}

func (s *ObjectStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.storage.Write(ctx, s.key(snap.RoomID), bytes.NewReader(data), int64(len(data)), snapshotContentType)
}

func (s *ObjectStore) Delete(ctx context.Context, roomID string) error {
	return s.storage.Delete(ctx, s.key(roomID))
}

func (s *ObjectStore) LoadAll(ctx context.Context) ([]*domain.Snapshot, error) {
	l := pkglog.Ctx(ctx)

	files, err := s.storage.List(ctx, s.dir+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var snaps []*domain.Snapshot
	for _, f := range files {
		if !strings.HasSuffix(f.Key, ".json") {
			continue
		}
		snap, err := s.read(ctx, f.Key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			l.Warn().Err(err).Str("key", f.Key).Msg("skipping unreadable snapshot")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *ObjectStore) read(ctx context.Context, key string) (*domain.Snapshot, error) {
	rc, err := s.storage.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *ObjectStore) Close() error {
	return nil
}
