package domain

import "sort"

// LobbyEntry describes one live room in the lobby.
type LobbyEntry struct {
	RoomID        string   `json:"room_id"`
	ViewerCount   int      `json:"viewer_count"`
	LiveStartedAt int64    `json:"live_started_at"`
	HasGuest      bool     `json:"has_guest"`
	HostProfile   *Profile `json:"host_profile,omitempty"`
}

// SortLobby orders entries by viewer count descending, then most recently started first.
// Room id is the final tie-break so the order is deterministic.
func SortLobby(entries []LobbyEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ViewerCount != b.ViewerCount {
			return a.ViewerCount > b.ViewerCount
		}
		if a.LiveStartedAt != b.LiveStartedAt {
			return a.LiveStartedAt > b.LiveStartedAt
		}
		return a.RoomID < b.RoomID
	})
}

// LobbyEntryFor returns the entry for r, or false when r is not listed.
func LobbyEntryFor(r *Room) (LobbyEntry, bool) {
	if r.HostID == "" || !r.IsLive() {
		return LobbyEntry{}, false
	}
	e := LobbyEntry{
		RoomID:        r.ID,
		ViewerCount:   r.ViewerCount(),
		LiveStartedAt: r.LiveStartedAt,
		HasGuest:      r.HasGuest(),
	}
	if r.HostProfile != nil {
		p := *r.HostProfile
		e.HostProfile = &p
	}
	return e, true
}
