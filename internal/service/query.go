package service

import "github.com/weiawesome/wes-io-live/live-room-service/internal/domain"

// RoomView is the read-only projection of a room served over HTTP.
type RoomView struct {
	RoomID        string               `json:"room_id"`
	HostOnline    bool                 `json:"host_online"`
	IsLive        bool                 `json:"is_live"`
	LiveStartedAt int64                `json:"live_started_at,omitempty"`
	ViewerCount   int                  `json:"viewer_count"`
	Guests        []string             `json:"guests"`
	HostProfile   *domain.Profile      `json:"host_profile,omitempty"`
	PinnedNote    *domain.PinnedNote   `json:"pinned_note,omitempty"`
	GiftTotal     int64                `json:"gift_total"`
	Top           []domain.LedgerEntry `json:"top"`
	Followers     int                  `json:"followers"`
	GraceDeadline int64                `json:"grace_deadline,omitempty"`
}

// RoomInfo returns a view of roomID, or false when no such room exists.
// It never creates a room.
func (s *LiveService) RoomInfo(roomID string) (*RoomView, bool, error) {
	var view *RoomView
	err := s.exec(func() {
		room, ok := s.rooms.Get(domain.NormalizeRoomID(roomID))
		if !ok {
			return
		}
		view = &RoomView{
			RoomID:        room.ID,
			HostOnline:    room.HostOnline(),
			IsLive:        room.IsLive(),
			LiveStartedAt: room.LiveStartedAt,
			ViewerCount:   room.ViewerCount(),
			Guests:        append([]string{}, room.Guests...),
			GiftTotal:     room.GiftTotal,
			Top:           room.Ledger.Top(s.cfg.LeaderboardSize),
			Followers:     len(room.Followers),
		}
		if room.HostProfile != nil {
			p := *room.HostProfile
			view.HostProfile = &p
		}
		if room.PinnedNote != nil {
			n := *room.PinnedNote
			view.PinnedNote = &n
		}
		if room.Release.Pending {
			view.GraceDeadline = room.Release.Deadline.UnixMilli()
		}
	})
	return view, view != nil, err
}

// Balance returns the wallet of connID, or false for an unknown connection.
func (s *LiveService) Balance(connID string) (int64, bool, error) {
	var (
		balance int64
		found   bool
	)
	err := s.exec(func() {
		if p, ok := s.participants[connID]; ok {
			balance, found = p.Wallet, true
		}
	})
	return balance, found, err
}
