package service

import (
	"context"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// StartLive marks the host's room as broadcasting. startedAt is a client
// timestamp in unix ms; 0 or a future value means now.
func (s *LiveService) StartLive(ctx context.Context, connID string, startedAt int64) error {
	return s.exec(func() {
		p, room, ok := s.hostOf(connID)
		if !ok {
			return
		}

		if !room.IsLive() {
			now := s.nowMs()
			if startedAt <= 0 || startedAt > now {
				startedAt = now
			}
			room.LiveStartedAt = startedAt
			s.lobbyDirty = true
			s.saveSnapshot(room)
			s.produce(&kafka.LiveEvent{
				Type:      kafka.EventLiveStarted,
				RoomID:    room.ID,
				HostID:    p.ID,
				StartedAt: room.LiveStartedAt,
			})
			audit.Log(ctx, audit.ActionLiveStart, room.ID, p.ID, "live session started")
		}

		s.broadcast(room.ID, &domain.LiveMessage{
			Type:      domain.MsgTypeLiveStart,
			RoomID:    room.ID,
			StartedAt: room.LiveStartedAt,
		})
	})
}

// StopLive ends the host's live session explicitly.
func (s *LiveService) StopLive(ctx context.Context, connID string) error {
	return s.exec(func() {
		p, room, ok := s.hostOf(connID)
		if !ok || !room.IsLive() {
			return
		}

		startedAt := room.LiveStartedAt
		room.LiveStartedAt = 0
		s.lobbyDirty = true

		s.broadcast(room.ID, &domain.LiveMessage{
			Type:      domain.MsgTypeLiveStopped,
			RoomID:    room.ID,
			StartedAt: startedAt,
			Reason:    domain.ReasonExplicit,
		})
		s.deleteSnapshot(room.ID)
		s.produce(&kafka.LiveEvent{
			Type:   kafka.EventLiveStopped,
			RoomID: room.ID,
			HostID: p.ID,
			Reason: kafka.ReasonExplicit,
		})
		audit.Log(ctx, audit.ActionLiveStop, room.ID, p.ID, "live session stopped")
	})
}

// UpdateProfile replaces the connection's display profile. prof must be normalized.
func (s *LiveService) UpdateProfile(ctx context.Context, connID string, prof domain.Profile) error {
	return s.exec(func() {
		p := s.participant(connID)
		p.Profile = prof

		room, ok := s.rooms.Get(p.RoomID)
		if !p.InRoom() || !ok {
			return
		}

		role := displayRole(room, p)
		if role == domain.RoleHost {
			hp := prof
			room.HostProfile = &hp
			s.lobbyDirty = true
			s.saveSnapshot(room)
			s.broadcast(room.ID, &domain.ProfileMessage{
				Type:         domain.MsgTypeHostProfile,
				RoomID:       room.ID,
				ConnectionID: p.ID,
				Role:         role,
				Profile:      prof,
			})
		}

		s.broadcast(room.ID, &domain.ProfileMessage{
			Type:         domain.MsgTypeProfileUpdated,
			RoomID:       room.ID,
			ConnectionID: p.ID,
			Role:         role,
			Profile:      prof,
		})
	})
}

// restore loads saved rooms. Each restored room waits in GRACE_PERIOD for
// its host; expiry releases it like any other grace expiry.
func (s *LiveService) restore(ctx context.Context) error {
	l := pkglog.Ctx(ctx)

	loadCtx, cancel := context.WithTimeout(ctx, s.persist.timeout)
	defer cancel()

	snaps, err := s.store.LoadAll(loadCtx)
	if err != nil {
		// Persistence failures are not fatal; serve from memory.
		l.Error().Err(err).Msg("failed to load snapshots")
		return nil
	}

	return s.exec(func() {
		restored := 0
		for _, snap := range snaps {
			if snap.LiveStartedAt <= 0 || domain.NormalizeRoomID(snap.RoomID) == "" {
				s.deleteSnapshot(snap.RoomID)
				continue
			}
			room := domain.RoomFromSnapshot(snap)
			if !s.rooms.Restore(room) {
				continue
			}
			s.enterGrace(ctx, room, s.cfg.RestoreGrace)
			audit.Log(ctx, audit.ActionRestore, room.ID, "", "room restored from snapshot")
			restored++
		}
		l.Info().Int("rooms", restored).Msg("restored rooms from snapshots")
	})
}
