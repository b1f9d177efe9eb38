package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

// RequestGuest queues the sender for co-host approval.
func (s *LiveService) RequestGuest(connID string) error {
	return s.exec(func() {
		p, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}
		if room.HostID == connID || !room.RequestGuest(connID) {
			return
		}
		// Pending guests leave the audience until approved or sent back.
		if room.RemoveViewer(connID) {
			s.broadcastViewerCount(room)
		}
		prof := p.Profile
		s.notifyHost(room, &domain.GuestMessage{
			Type:    domain.MsgTypeGuestRequest,
			RoomID:  room.ID,
			GuestID: connID,
			Profile: &prof,
		})
		s.send(connID, &domain.GuestMessage{
			Type:    domain.MsgTypeGuestPending,
			RoomID:  room.ID,
			GuestID: connID,
		})
	})
}

// ApproveGuest promotes a pending guest. Host only.
func (s *LiveService) ApproveGuest(ctx context.Context, connID, guestID string) error {
	return s.exec(func() {
		host, room, ok := s.hostOf(connID)
		if !ok {
			return
		}
		if err := room.ApproveGuest(guestID, s.cfg.GuestCapacity); err != nil {
			reason := domain.ReasonNotPending
			if errors.Is(err, domain.ErrGuestCapacity) {
				reason = domain.ReasonRoomFull
			}
			s.send(host.ID, &domain.GuestMessage{
				Type:    domain.MsgTypeGuestApproveFailed,
				RoomID:  room.ID,
				GuestID: guestID,
				Reason:  reason,
			})
			return
		}

		if gp, ok := s.participants[guestID]; ok && gp.RoomID == room.ID {
			gp.Role = domain.RoleGuest
		}
		if room.RemoveViewer(guestID) {
			s.broadcastViewerCount(room)
		}
		s.send(guestID, s.guestMessage(domain.MsgTypeGuestApproved, room, guestID, ""))
		s.broadcast(room.ID, s.guestMessage(domain.MsgTypeGuestOnline, room, guestID, ""))
		s.lobbyDirty = true

		audit.LogWithTarget(ctx, audit.ActionGuestApprove, room.ID, host.ID, guestID, "", "guest approved")
	})
}

// RejectGuest drops a pending request. Host only.
func (s *LiveService) RejectGuest(connID, guestID string) error {
	return s.exec(func() {
		_, room, ok := s.hostOf(connID)
		if !ok || !room.RemovePending(guestID) {
			return
		}
		s.send(guestID, s.guestMessage(domain.MsgTypeGuestRejected, room, guestID, ""))
		s.demote(room, guestID)
	})
}

// KickGuest removes an active guest. Host only.
func (s *LiveService) KickGuest(ctx context.Context, connID, guestID string) error {
	return s.exec(func() {
		host, room, ok := s.hostOf(connID)
		if !ok || !room.RemoveGuest(guestID) {
			return
		}
		s.send(guestID, s.guestMessage(domain.MsgTypeGuestKicked, room, guestID, ""))
		s.broadcast(room.ID, s.guestMessage(domain.MsgTypeGuestOffline, room, guestID, ""))
		s.demote(room, guestID)
		s.lobbyDirty = true

		audit.LogWithTarget(ctx, audit.ActionGuestKick, room.ID, host.ID, guestID, "", "guest kicked")
	})
}

// CancelGuest withdraws the sender's pending request, or steps an active guest down.
func (s *LiveService) CancelGuest(connID string) error {
	return s.exec(func() {
		_, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}
		switch {
		case room.RemovePending(connID):
			s.notifyHost(room, &domain.GuestMessage{
				Type:    domain.MsgTypeGuestCancelled,
				RoomID:  room.ID,
				GuestID: connID,
			})
		case room.RemoveGuest(connID):
			s.broadcast(room.ID, s.guestMessage(domain.MsgTypeGuestOffline, room, connID, ""))
			s.lobbyDirty = true
		default:
			return
		}
		s.send(connID, &domain.GuestMessage{
			Type:    domain.MsgTypeGuestCancelled,
			RoomID:  room.ID,
			GuestID: connID,
		})
		s.demote(room, connID)
	})
}
