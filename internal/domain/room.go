package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrGuestCapacity   = errors.New("room_full")
	ErrGuestNotPending = errors.New("guest not pending")
)

// PinnedNote is the host overlay shown on top of the stream.
type PinnedNote struct {
	Text      string  `json:"text"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	UpdatedAt int64   `json:"updated_at"`
}

// ReleaseState tracks the host reconnection grace period.
// Generation increases on every arm and cancel so a stale timer firing can be detected.
type ReleaseState struct {
	Pending    bool
	Deadline   time.Time
	Generation uint64
}

// Room is one live-broadcast session.
type Room struct {
	ID            string
	HostID        string
	Viewers       map[string]struct{}
	Guests        []string
	PendingGuests []string
	LiveStartedAt int64 // unix ms, 0 when not live
	HostProfile   *Profile
	PinnedNote    *PinnedNote
	GiftTotal     int64
	Ledger        *Ledger
	Followers     map[string]struct{}
	Release       ReleaseState
}

// NormalizeRoomID trims and case-folds a room identifier.
func NormalizeRoomID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Viewers:   make(map[string]struct{}),
		Ledger:    NewLedger(),
		Followers: make(map[string]struct{}),
	}
}

// IsLive reports whether a live session is running, including during a host grace period.
func (r *Room) IsLive() bool {
	return r.LiveStartedAt > 0
}

// HostOnline reports whether the host slot is held by a connected host.
func (r *Room) HostOnline() bool {
	return r.HostID != "" && !r.Release.Pending
}

// IsEmpty is the eviction predicate.
func (r *Room) IsEmpty() bool {
	return r.HostID == "" &&
		len(r.Viewers) == 0 &&
		len(r.Guests) == 0 &&
		len(r.PendingGuests) == 0 &&
		!r.Release.Pending
}

func (r *Room) AddViewer(id string) bool {
	if _, ok := r.Viewers[id]; ok {
		return false
	}
	r.Viewers[id] = struct{}{}
	return true
}

func (r *Room) RemoveViewer(id string) bool {
	if _, ok := r.Viewers[id]; !ok {
		return false
	}
	delete(r.Viewers, id)
	return true
}

func (r *Room) IsViewer(id string) bool {
	_, ok := r.Viewers[id]
	return ok
}

// ViewerIDs returns the viewer ids in a stable order.
func (r *Room) ViewerIDs() []string {
	ids := make([]string, 0, len(r.Viewers))
	for id := range r.Viewers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) ViewerCount() int {
	return len(r.Viewers)
}

func (r *Room) IsGuest(id string) bool {
	return indexOf(r.Guests, id) >= 0
}

func (r *Room) IsPending(id string) bool {
	return indexOf(r.PendingGuests, id) >= 0
}

func (r *Room) HasGuest() bool {
	return len(r.Guests) > 0
}

// RequestGuest queues id for co-host approval. Returns false when id is
// already pending or active.
func (r *Room) RequestGuest(id string) bool {
	if r.IsGuest(id) || r.IsPending(id) {
		return false
	}
	r.PendingGuests = append(r.PendingGuests, id)
	return true
}

// ApproveGuest moves id from the pending queue to the active guests.
func (r *Room) ApproveGuest(id string, capacity int) error {
	if !r.IsPending(id) {
		return ErrGuestNotPending
	}
	if len(r.Guests) >= capacity {
		return ErrGuestCapacity
	}
	r.PendingGuests = remove(r.PendingGuests, id)
	r.Guests = append(r.Guests, id)
	return nil
}

func (r *Room) RemovePending(id string) bool {
	if !r.IsPending(id) {
		return false
	}
	r.PendingGuests = remove(r.PendingGuests, id)
	return true
}

func (r *Room) RemoveGuest(id string) bool {
	if !r.IsGuest(id) {
		return false
	}
	r.Guests = remove(r.Guests, id)
	return true
}

// CreditGift records coins from donor and keeps GiftTotal equal to the ledger sum.
func (r *Room) CreditGift(donor string, coins int64) {
	r.Ledger.Credit(donor, coins)
	r.GiftTotal += coins
}

// Snapshot returns the durable facts of a live room.
func (r *Room) Snapshot(nowMs int64) *Snapshot {
	s := &Snapshot{
		RoomID:        r.ID,
		LiveStartedAt: r.LiveStartedAt,
		GiftTotal:     r.GiftTotal,
		Ledger:        r.Ledger.Entries(),
		SavedAt:       nowMs,
	}
	if r.HostProfile != nil {
		p := *r.HostProfile
		s.HostProfile = &p
	}
	if r.PinnedNote != nil {
		n := *r.PinnedNote
		s.PinnedNote = &n
	}
	return s
}

// RoomFromSnapshot rebuilds a room with an empty host slot.
func RoomFromSnapshot(s *Snapshot) *Room {
	r := NewRoom(NormalizeRoomID(s.RoomID))
	r.LiveStartedAt = s.LiveStartedAt
	if s.HostProfile != nil {
		p := *s.HostProfile
		r.HostProfile = &p
	}
	if s.PinnedNote != nil {
		n := *s.PinnedNote
		r.PinnedNote = &n
	}
	for _, e := range s.Ledger {
		if e.Coins > 0 {
			r.CreditGift(e.Name, e.Coins)
		}
	}
	return r
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(list []string, id string) []string {
	i := indexOf(list, id)
	if i < 0 {
		return list
	}
	return append(list[:i:i], list[i+1:]...)
}
