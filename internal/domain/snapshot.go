package domain

// Snapshot is the persisted subset of a live room used for restart recovery.
type Snapshot struct {
	RoomID        string        `json:"room_id"`
	LiveStartedAt int64         `json:"live_started_at"`
	HostProfile   *Profile      `json:"host_profile,omitempty"`
	PinnedNote    *PinnedNote   `json:"pinned_note,omitempty"`
	GiftTotal     int64         `json:"gift_total"`
	Ledger        []LedgerEntry `json:"ledger"`
	SavedAt       int64         `json:"saved_at"`
}
