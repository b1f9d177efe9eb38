package service

import "github.com/weiawesome/wes-io-live/live-room-service/internal/domain"

func (s *LiveService) broadcastPin(room *domain.Room) {
	var note *domain.PinnedNote
	if room.PinnedNote != nil {
		n := *room.PinnedNote
		note = &n
	}
	s.broadcast(room.ID, &domain.PinNoteUpdateMessage{
		Type:   domain.MsgTypePinNoteUpdate,
		RoomID: room.ID,
		Note:   note,
	})
	s.saveSnapshot(room)
}

// PinSet stores the host overlay. req must be normalized.
func (s *LiveService) PinSet(connID string, req domain.PinNoteMessage) error {
	return s.exec(func() {
		_, room, ok := s.hostOf(connID)
		if !ok || req.Text == "" {
			return
		}
		room.PinnedNote = &domain.PinnedNote{
			Text:      req.Text,
			X:         req.PosX,
			Y:         req.PosY,
			UpdatedAt: s.nowMs(),
		}
		s.broadcastPin(room)
	})
}

// PinMove repositions the overlay. Without a note it does nothing.
func (s *LiveService) PinMove(connID string, req domain.PinNoteMessage) error {
	return s.exec(func() {
		_, room, ok := s.hostOf(connID)
		if !ok || room.PinnedNote == nil {
			return
		}
		room.PinnedNote.X = req.PosX
		room.PinnedNote.Y = req.PosY
		room.PinnedNote.UpdatedAt = s.nowMs()
		s.broadcastPin(room)
	})
}

// PinClear removes the overlay.
func (s *LiveService) PinClear(connID string) error {
	return s.exec(func() {
		_, room, ok := s.hostOf(connID)
		if !ok {
			return
		}
		room.PinnedNote = nil
		s.broadcastPin(room)
	})
}
