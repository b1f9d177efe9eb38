package service

import (
	"time"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

// retryAfter returns how long until another message is allowed, or 0.
func retryAfter(last, now time.Time, interval time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// Chat broadcasts a chat line to the sender's room. req must be normalized.
func (s *LiveService) Chat(connID string, req domain.ChatMessage) error {
	return s.exec(func() {
		p, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}

		now := s.clock.Now()
		if wait := retryAfter(p.LastChatAt, now, s.cfg.ChatInterval); wait > 0 {
			s.send(connID, &domain.RateLimitedMessage{
				Type:         domain.MsgTypeRateLimited,
				Scope:        domain.ScopeChat,
				RetryAfterMs: wait.Milliseconds(),
			})
			return
		}
		p.LastChatAt = now

		name := req.Name
		if name == "" {
			name = p.Profile.Name
		}

		badge := ""
		if s.cfg.FollowEnabled {
			if _, ok := room.Followers[p.ViewerKey]; ok {
				badge = domain.BadgeFan
			}
		}

		s.broadcast(room.ID, &domain.ChatBroadcast{
			Type:   domain.MsgTypeChat,
			RoomID: room.ID,
			From:   p.ID,
			Role:   displayRole(room, p),
			Badge:  badge,
			Name:   name,
			Text:   req.Text,
			Ts:     now.UnixMilli(),
		})
	})
}

// React broadcasts an ephemeral reaction. req must be normalized.
func (s *LiveService) React(connID string, req domain.ReactionMessage) error {
	return s.exec(func() {
		p, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}

		now := s.clock.Now()
		if wait := retryAfter(p.LastReactionAt, now, s.cfg.ReactionInterval); wait > 0 {
			s.send(connID, &domain.RateLimitedMessage{
				Type:         domain.MsgTypeRateLimited,
				Scope:        domain.ScopeReaction,
				RetryAfterMs: wait.Milliseconds(),
			})
			return
		}
		p.LastReactionAt = now

		s.broadcast(room.ID, &domain.ReactionBroadcast{
			Type:   domain.MsgTypeReaction,
			RoomID: room.ID,
			From:   p.ID,
			Emoji:  req.Emoji,
			Kind:   req.Kind,
			X:      req.PosX,
			Y:      req.PosY,
			Ts:     now.UnixMilli(),
		})
	})
}
