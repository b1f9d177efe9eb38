package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// Join places the connection in a room with the requested role. req must be normalized.
func (s *LiveService) Join(ctx context.Context, connID string, req domain.JoinRoomMessage) error {
	return s.exec(func() {
		s.join(ctx, connID, req)
	})
}

// Leave removes the connection from its room but keeps the connection registered.
func (s *LiveService) Leave(ctx context.Context, connID string) error {
	return s.exec(func() {
		p, ok := s.participants[connID]
		if !ok || !p.InRoom() {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}
		s.leave(ctx, p)
	})
}

func (s *LiveService) join(ctx context.Context, connID string, req domain.JoinRoomMessage) {
	p := s.participant(connID)

	// The active host repeating its own join only refreshes its profile.
	if p.InRoom() && p.RoomID == req.RoomID && req.ParsedRole == domain.RoleHost {
		if room, ok := s.rooms.Get(p.RoomID); ok && room.HostID == connID && !room.Release.Pending {
			s.refreshHost(room, p, req)
			return
		}
	}

	if p.InRoom() {
		s.leave(ctx, p)
	}

	// A host that left explicitly and comes back in another role gives up the session.
	if prev, ok := s.rooms.Get(req.RoomID); ok && prev.HostID == connID && req.ParsedRole != domain.RoleHost {
		s.cancelGrace(prev)
		s.releaseRoom(ctx, prev, domain.ReasonExplicit)
	}

	room, created := s.rooms.GetOrCreate(req.RoomID)
	p.RoomID = room.ID
	p.Role = req.ParsedRole
	p.Profile = req.Profile
	if req.ViewerKey != "" {
		p.ViewerKey = req.ViewerKey
	}
	s.notifier.JoinRoom(connID, room.ID)

	l := pkglog.Ctx(ctx)
	l.Info().
		Str(pkglog.FieldConnectionID, connID).
		Str(pkglog.FieldRoomID, room.ID).
		Str(pkglog.FieldRole, p.Role.String()).
		Bool("created", created).
		Msg("join room")

	switch p.Role {
	case domain.RoleHost:
		s.joinHost(ctx, room, p)
	case domain.RoleViewer:
		s.joinViewer(room, p)
	case domain.RoleGuest:
		s.joinGuest(room, p)
	case domain.RoleNone:
		// Normalize never yields RoleNone; treat as viewer.
		p.Role = domain.RoleViewer
		s.joinViewer(room, p)
	}

	s.sendRoomState(room, p)
}

func (s *LiveService) joinHost(ctx context.Context, room *domain.Room, p *domain.Participant) {
	s.cancelGrace(room)

	old := room.HostID
	room.HostID = p.ID
	prof := p.Profile
	room.HostProfile = &prof

	s.sendJoined(room, p)

	if old != "" && old != p.ID {
		s.broadcast(room.ID, &domain.HostMessage{
			Type:   domain.MsgTypeHostChanged,
			RoomID: room.ID,
			HostID: p.ID,
			Online: true,
		})
		// A still-connected previous host stays in the room as a viewer.
		if prev, ok := s.participants[old]; ok && prev.RoomID == room.ID {
			prev.Role = domain.RoleViewer
			if room.AddViewer(old) {
				s.broadcastViewerCount(room)
			}
		}
	}

	s.broadcast(room.ID, &domain.ProfileMessage{
		Type:         domain.MsgTypeHostProfile,
		RoomID:       room.ID,
		ConnectionID: p.ID,
		Role:         domain.RoleHost,
		Profile:      prof,
	})

	if room.IsLive() {
		s.broadcast(room.ID, &domain.LiveMessage{
			Type:      domain.MsgTypeLiveResumed,
			RoomID:    room.ID,
			StartedAt: room.LiveStartedAt,
		})
		s.broadcast(room.ID, &domain.HostMessage{
			Type:   domain.MsgTypeHostOnline,
			RoomID: room.ID,
			HostID: p.ID,
			Online: true,
		})
		s.saveSnapshot(room)
	}

	s.send(p.ID, &domain.ViewerListMessage{
		Type:    domain.MsgTypeViewerList,
		RoomID:  room.ID,
		Viewers: room.ViewerIDs(),
	})
	for _, id := range room.PendingGuests {
		msg := &domain.GuestMessage{Type: domain.MsgTypeGuestRequest, RoomID: room.ID, GuestID: id}
		if gp, ok := s.participants[id]; ok {
			gprof := gp.Profile
			msg.Profile = &gprof
		}
		s.send(p.ID, msg)
	}

	s.lobbyDirty = true
	audit.Log(ctx, audit.ActionHostJoin, room.ID, p.ID, "host joined room")
}

// refreshHost re-confirms an already active host without leaving the room.
func (s *LiveService) refreshHost(room *domain.Room, p *domain.Participant, req domain.JoinRoomMessage) {
	p.Profile = req.Profile
	if req.ViewerKey != "" {
		p.ViewerKey = req.ViewerKey
	}
	prof := p.Profile
	room.HostProfile = &prof

	s.sendJoined(room, p)
	s.broadcast(room.ID, &domain.ProfileMessage{
		Type:         domain.MsgTypeHostProfile,
		RoomID:       room.ID,
		ConnectionID: p.ID,
		Role:         domain.RoleHost,
		Profile:      prof,
	})
	s.send(p.ID, &domain.ViewerListMessage{
		Type:    domain.MsgTypeViewerList,
		RoomID:  room.ID,
		Viewers: room.ViewerIDs(),
	})
	s.sendRoomState(room, p)
	s.saveSnapshot(room)
	s.lobbyDirty = true
}

func (s *LiveService) joinViewer(room *domain.Room, p *domain.Participant) {
	room.AddViewer(p.ID)
	s.sendJoined(room, p)
	s.broadcastViewerCount(room)

	s.send(p.ID, s.hostStatus(room))
	for _, id := range room.Guests {
		s.send(p.ID, s.guestMessage(domain.MsgTypeGuestOnline, room, id, ""))
	}
}

func (s *LiveService) joinGuest(room *domain.Room, p *domain.Participant) {
	room.RequestGuest(p.ID)
	s.sendJoined(room, p)

	prof := p.Profile
	s.notifyHost(room, &domain.GuestMessage{
		Type:    domain.MsgTypeGuestRequest,
		RoomID:  room.ID,
		GuestID: p.ID,
		Profile: &prof,
	})
	s.send(p.ID, &domain.GuestMessage{
		Type:    domain.MsgTypeGuestPending,
		RoomID:  room.ID,
		GuestID: p.ID,
	})
	s.send(p.ID, s.hostStatus(room))
}

func (s *LiveService) hostStatus(room *domain.Room) *domain.HostMessage {
	msg := &domain.HostMessage{
		Type:   domain.MsgTypeHostStatus,
		RoomID: room.ID,
		HostID: room.HostID,
		Online: room.HostOnline(),
	}
	if room.Release.Pending {
		msg.Deadline = room.Release.Deadline.UnixMilli()
	}
	return msg
}

func (s *LiveService) sendJoined(room *domain.Room, p *domain.Participant) {
	s.send(p.ID, &domain.JoinedMessage{
		Type:          domain.MsgTypeJoined,
		RoomID:        room.ID,
		ConnectionID:  p.ID,
		Role:          p.Role,
		ViewerCount:   room.ViewerCount(),
		IsLive:        room.IsLive(),
		LiveStartedAt: room.LiveStartedAt,
		HostOnline:    room.HostOnline(),
		Guests:        append([]string{}, room.Guests...),
		Balance:       p.Wallet,
	})
}

// sendRoomState brings a late joiner up to date with the room overlays.
func (s *LiveService) sendRoomState(room *domain.Room, p *domain.Participant) {
	if room.HostProfile != nil && room.HostID != p.ID {
		s.send(p.ID, &domain.ProfileMessage{
			Type:         domain.MsgTypeHostProfile,
			RoomID:       room.ID,
			ConnectionID: room.HostID,
			Role:         domain.RoleHost,
			Profile:      *room.HostProfile,
		})
	}
	if room.IsLive() {
		s.send(p.ID, &domain.LiveMessage{
			Type:      domain.MsgTypeLiveStart,
			RoomID:    room.ID,
			StartedAt: room.LiveStartedAt,
		})
	}
	s.send(p.ID, &domain.PinNoteUpdateMessage{
		Type:   domain.MsgTypePinNoteUpdate,
		RoomID: room.ID,
		Note:   room.PinnedNote,
	})
	if s.cfg.GiftsEnabled {
		s.send(p.ID, s.giftStats(room))
		s.send(p.ID, &domain.WalletMessage{Type: domain.MsgTypeWallet, Balance: p.Wallet})
	}
	if s.cfg.FollowEnabled {
		_, following := room.Followers[p.ViewerKey]
		s.send(p.ID, &domain.FollowerCountMessage{
			Type:      domain.MsgTypeFollowerCount,
			RoomID:    room.ID,
			Count:     len(room.Followers),
			Following: &following,
		})
	}
}

func (s *LiveService) leave(ctx context.Context, p *domain.Participant) {
	roomID := p.RoomID
	room, ok := s.rooms.Get(roomID)
	if ok {
		if room.RemoveViewer(p.ID) {
			s.broadcastViewerCount(room)
		}
		if room.RemovePending(p.ID) {
			s.notifyHost(room, &domain.GuestMessage{
				Type:    domain.MsgTypeGuestCancelled,
				RoomID:  room.ID,
				GuestID: p.ID,
			})
		}
		if room.RemoveGuest(p.ID) {
			s.broadcast(room.ID, s.guestMessage(domain.MsgTypeGuestOffline, room, p.ID, ""))
			s.lobbyDirty = true
		}
		if room.HostID == p.ID {
			s.enterGrace(ctx, room, s.cfg.GracePeriod)
		}
	}

	s.notifier.LeaveRoom(p.ID, roomID)
	p.RoomID = ""
	p.Role = domain.RoleNone

	if ok {
		s.maybeEvict(room)
	}

	l := pkglog.Ctx(ctx)
	l.Info().Str(pkglog.FieldConnectionID, p.ID).Str(pkglog.FieldRoomID, roomID).Msg("left room")
}

// enterGrace moves a room into GRACE_PERIOD. A room already in grace keeps its deadline.
func (s *LiveService) enterGrace(ctx context.Context, room *domain.Room, d time.Duration) {
	if room.Release.Pending {
		return
	}
	room.Release.Pending = true
	room.Release.Generation++
	room.Release.Deadline = s.clock.Now().Add(d)
	s.armGraceTimer(room.ID, d, room.Release.Generation)

	s.broadcast(room.ID, &domain.HostMessage{
		Type:     domain.MsgTypeHostTemporarilyOffline,
		RoomID:   room.ID,
		HostID:   room.HostID,
		Online:   false,
		Deadline: room.Release.Deadline.UnixMilli(),
	})
	s.lobbyDirty = true

	l := pkglog.Ctx(ctx)
	l.Info().Str(pkglog.FieldRoomID, room.ID).Dur("grace_period", d).Msg("host grace period started")
}

func (s *LiveService) armGraceTimer(roomID string, d time.Duration, gen uint64) {
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
	}
	s.timers[roomID] = s.clock.AfterFunc(d, func() {
		_ = s.exec(func() {
			s.expireGrace(roomID, gen)
		})
	})
}

// cancelGrace returns a room to ACTIVE. Safe to call repeatedly or after expiry.
func (s *LiveService) cancelGrace(room *domain.Room) {
	if t, ok := s.timers[room.ID]; ok {
		t.Stop()
		delete(s.timers, room.ID)
	}
	if !room.Release.Pending {
		return
	}
	room.Release.Pending = false
	room.Release.Deadline = time.Time{}
	room.Release.Generation++

	l := pkglog.Ctx(s.ctx)
	l.Info().Str(pkglog.FieldRoomID, room.ID).Msg("host grace period cancelled")
}

func (s *LiveService) expireGrace(roomID string, gen uint64) {
	room, ok := s.rooms.Get(roomID)
	if !ok || !room.Release.Pending || room.Release.Generation != gen {
		return
	}
	delete(s.timers, roomID)
	room.Release.Pending = false
	room.Release.Deadline = time.Time{}
	room.Release.Generation++

	s.releaseRoom(s.ctx, room, domain.ReasonTimeout)
}

// releaseRoom clears the host slot and live state. reason is ReasonTimeout after a
// grace period expires and ReasonExplicit when the host gives the session up.
// Guests and pending guests fall back to viewers.
func (s *LiveService) releaseRoom(ctx context.Context, room *domain.Room, reason string) {
	hostID := room.HostID
	wasLive := room.IsLive()
	startedAt := room.LiveStartedAt

	room.HostID = ""
	room.LiveStartedAt = 0

	for _, id := range append([]string{}, room.Guests...) {
		room.RemoveGuest(id)
		s.send(id, s.guestMessage(domain.MsgTypeGuestKicked, room, id, domain.ReasonHostLeft))
		s.broadcast(room.ID, s.guestMessage(domain.MsgTypeGuestOffline, room, id, domain.ReasonHostLeft))
		s.demote(room, id)
	}
	for _, id := range append([]string{}, room.PendingGuests...) {
		room.RemovePending(id)
		s.send(id, s.guestMessage(domain.MsgTypeGuestRejected, room, id, domain.ReasonHostLeft))
		s.demote(room, id)
	}

	if wasLive {
		s.broadcast(room.ID, &domain.LiveMessage{
			Type:      domain.MsgTypeLiveStopped,
			RoomID:    room.ID,
			StartedAt: startedAt,
			Reason:    reason,
		})
		s.deleteSnapshot(room.ID)
		s.produce(&kafka.LiveEvent{
			Type:   kafka.EventLiveStopped,
			RoomID: room.ID,
			HostID: hostID,
			Reason: reason,
		})
	} else {
		s.broadcast(room.ID, s.hostStatus(room))
	}
	s.lobbyDirty = true

	if reason == domain.ReasonTimeout {
		audit.Log(ctx, audit.ActionGraceExpired, room.ID, hostID, "host grace period expired, session released")
	} else {
		audit.Log(ctx, audit.ActionLiveStop, room.ID, hostID, "host gave up the session")
	}
	s.maybeEvict(room)
}

// demote turns a connection still in the room into a plain viewer.
func (s *LiveService) demote(room *domain.Room, id string) {
	p, ok := s.participants[id]
	if !ok || p.RoomID != room.ID {
		return
	}
	p.Role = domain.RoleViewer
	if room.AddViewer(id) {
		s.broadcastViewerCount(room)
	}
}

func (s *LiveService) guestMessage(msgType string, room *domain.Room, id, reason string) *domain.GuestMessage {
	msg := &domain.GuestMessage{Type: msgType, RoomID: room.ID, GuestID: id, Reason: reason}
	if p, ok := s.participants[id]; ok {
		prof := p.Profile
		msg.Profile = &prof
	}
	return msg
}
