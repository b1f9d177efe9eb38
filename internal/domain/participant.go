package domain

import "time"

// Participant is the per-connection state. It lives exactly as long as the
// connection and is owned by the room executor.
type Participant struct {
	ID             string
	RoomID         string
	Role           Role
	Profile        Profile
	ViewerKey      string
	Wallet         int64
	LastChatAt     time.Time
	LastReactionAt time.Time
}

// NewParticipant creates a participant that has not joined any room yet.
func NewParticipant(id string, balance int64) *Participant {
	return &Participant{
		ID:        id,
		Role:      RoleNone,
		Profile:   Profile{Name: DefaultName},
		ViewerKey: id,
		Wallet:    balance,
	}
}

// InRoom reports whether the participant currently occupies a room.
func (p *Participant) InRoom() bool {
	return p.RoomID != ""
}
