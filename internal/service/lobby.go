package service

import (
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

func (s *LiveService) lobbyEntries() []domain.LobbyEntry {
	entries := make([]domain.LobbyEntry, 0)
	s.rooms.Each(func(room *domain.Room) {
		if e, ok := domain.LobbyEntryFor(room); ok {
			entries = append(entries, e)
		}
	})
	domain.SortLobby(entries)
	return entries
}

func (s *LiveService) lobbyMessage() *domain.LobbyUpdateMessage {
	return &domain.LobbyUpdateMessage{
		Type:      domain.MsgTypeLobbyUpdate,
		Rooms:     s.lobbyEntries(),
		Timestamp: s.nowMs(),
	}
}

// flushLobby broadcasts one full lobby snapshot when the last task changed
// host presence, viewer counts or live status.
func (s *LiveService) flushLobby() {
	if !s.lobbyDirty {
		return
	}
	s.lobbyDirty = false
	if err := s.notifier.BroadcastAll(s.lobbyMessage()); err != nil {
		l := pkglog.Ctx(s.ctx)
		l.Debug().Err(err).Msg("lobby broadcast failed")
	}
}

// LobbyGet sends the current lobby to one connection.
func (s *LiveService) LobbyGet(connID string) error {
	return s.exec(func() {
		s.send(connID, s.lobbyMessage())
	})
}

// Lobby returns the current lobby snapshot.
func (s *LiveService) Lobby() ([]domain.LobbyEntry, error) {
	var entries []domain.LobbyEntry
	err := s.exec(func() {
		entries = s.lobbyEntries()
	})
	return entries, err
}
