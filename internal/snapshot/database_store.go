package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/database"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomSnapshot is the table row for a saved room.
type RoomSnapshot struct {
	RoomID        string `gorm:"primaryKey;size:128"`
	LiveStartedAt int64  `gorm:"not null"`
	GiftTotal     int64  `gorm:"not null;default:0"`
	Body          string `gorm:"type:text;not null"`
	SavedAt       int64  `gorm:"not null"`
}

func (RoomSnapshot) TableName() string {
	return "live_room_snapshots"
}

// DatabaseStore keeps snapshots in a SQL table via GORM.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore migrates the snapshot table and returns the store.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if err := database.AutoMigrate(db, &RoomSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot table: %w", err)
	}
	return &DatabaseStore{db: db}, nil
}

func (s *DatabaseStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := RoomSnapshot{
		RoomID:        snap.RoomID,
		LiveStartedAt: snap.LiveStartedAt,
		GiftTotal:     snap.GiftTotal,
		Body:          string(body),
		SavedAt:       snap.SavedAt,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"live_started_at", "gift_total", "body", "saved_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Delete(ctx context.Context, roomID string) error {
	if err := s.db.WithContext(ctx).Delete(&RoomSnapshot{}, "room_id = ?", roomID).Error; err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *DatabaseStore) LoadAll(ctx context.Context) ([]*domain.Snapshot, error) {
	l := pkglog.Ctx(ctx)

	var rows []RoomSnapshot
	if err := s.db.WithContext(ctx).Order("room_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	snaps := make([]*domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(row.Body), &snap); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, row.RoomID).Msg("skipping corrupt snapshot")
			continue
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

func (s *DatabaseStore) Close() error {
	return database.Close(s.db)
}
