package service

import "github.com/weiawesome/wes-io-live/live-room-service/internal/domain"

// Follow adds the sender's viewer key to the room followers.
func (s *LiveService) Follow(connID string) error {
	return s.setFollowing(connID, true)
}

// Unfollow removes the sender's viewer key from the room followers.
func (s *LiveService) Unfollow(connID string) error {
	return s.setFollowing(connID, false)
}

func (s *LiveService) setFollowing(connID string, follow bool) error {
	return s.exec(func() {
		if !s.cfg.FollowEnabled {
			s.sendError(connID, domain.ErrCodeFeatureDisabled, "follow is disabled")
			return
		}
		p, room, ok := s.member(connID)
		if !ok {
			s.sendError(connID, domain.ErrCodeNotInRoom, "not in a room")
			return
		}
		if follow {
			room.Followers[p.ViewerKey] = struct{}{}
		} else {
			delete(room.Followers, p.ViewerKey)
		}

		s.broadcast(room.ID, &domain.FollowerCountMessage{
			Type:   domain.MsgTypeFollowerCount,
			RoomID: room.ID,
			Count:  len(room.Followers),
		})
		following := follow
		s.send(connID, &domain.FollowerCountMessage{
			Type:      domain.MsgTypeFollowerCount,
			RoomID:    room.ID,
			Count:     len(room.Followers),
			Following: &following,
		})
	})
}
