package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// WebSocket message types from client.
const (
	MsgTypeJoinRoom          = "join-room"
	MsgTypeLeaveRoom         = "leave-room"
	MsgTypeLobbyGet          = "lobby-get"
	MsgTypeUpdateProfile     = "update-profile"
	MsgTypeLiveStart         = "live-start"
	MsgTypeLiveStop          = "live-stop"
	MsgTypeChat              = "chat"
	MsgTypeReaction          = "reaction"
	MsgTypeSendGift          = "send-gift"
	MsgTypePinNoteSet        = "pin-note-set"
	MsgTypePinNoteMove       = "pin-note-move"
	MsgTypePinNoteClear      = "pin-note-clear"
	MsgTypeGuestRequest      = "guest-request"
	MsgTypeGuestApprove      = "guest-approve"
	MsgTypeGuestReject       = "guest-reject"
	MsgTypeGuestKick         = "guest-kick"
	MsgTypeGuestCancel       = "guest-cancel"
	MsgTypeOffer             = "offer"
	MsgTypeAnswer            = "answer"
	MsgTypeCandidate         = "candidate"
	MsgTypeRequestICERestart = "request-ice-restart"
	MsgTypeFollow            = "follow"
	MsgTypeUnfollow          = "unfollow"
	MsgTypeICERequest        = "ice-request"
	MsgTypePing              = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeJoined                 = "joined"
	MsgTypeHostChanged            = "host-changed"
	MsgTypeHostTemporarilyOffline = "host-temporarily-offline"
	MsgTypeHostOnline             = "host-online"
	MsgTypeHostStatus             = "host-status"
	MsgTypeLiveResumed            = "live-resumed"
	MsgTypeLiveStopped            = "live-stopped"
	MsgTypeViewerCount            = "viewer-count"
	MsgTypeViewerList             = "viewer-list"
	MsgTypeLobbyUpdate            = "lobby-update"
	MsgTypeGift                   = "gift"
	MsgTypeGiftStats              = "gift-stats"
	MsgTypeGiftFailed             = "gift-failed"
	MsgTypeWallet                 = "wallet"
	MsgTypePinNoteUpdate          = "pin-note-update"
	MsgTypeGuestPending           = "guest-pending"
	MsgTypeGuestApproved          = "guest-approved"
	MsgTypeGuestApproveFailed     = "guest-approve-failed"
	MsgTypeGuestRejected          = "guest-rejected"
	MsgTypeGuestKicked            = "guest-kicked"
	MsgTypeGuestCancelled         = "guest-cancelled"
	MsgTypeGuestOnline            = "guest-online"
	MsgTypeGuestOffline           = "guest-offline"
	MsgTypeHostProfile            = "host-profile"
	MsgTypeProfileUpdated         = "profile-updated"
	MsgTypeFollowerCount          = "follower-count"
	MsgTypeRateLimited            = "rate-limited"
	MsgTypeICEServers             = "ice-servers"
	MsgTypeError                  = "error"
	MsgTypePong                   = "pong"
)

// Error codes
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotInRoom       = "NOT_IN_ROOM"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeFeatureDisabled = "FEATURE_DISABLED"
	ErrCodeICEUnavailable  = "ICE_UNAVAILABLE"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Reasons carried by gift-failed, guest and live-stopped events.
const (
	ReasonNotLive           = "not_live"
	ReasonUnknownGift       = "unknown_gift"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonRoomFull          = "room_full"
	ReasonNotPending        = "not_pending"
	ReasonHostLeft          = "host_left"
	ReasonExplicit          = "explicit"
	ReasonTimeout           = "timeout"
)

// Rate-limit scopes
const (
	ScopeChat     = "chat"
	ScopeReaction = "reaction"
)

// Badges attached to chat lines.
const (
	BadgeFan = "fan"
)

// ErrInvalidMessage marks a rejected inbound payload.
var ErrInvalidMessage = errors.New("invalid message")

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// ValidationError describes why an inbound payload was rejected.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidMessage }

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinRoomMessage asks to assume a role in a room.
type JoinRoomMessage struct {
	Type      string  `json:"type"`
	RoomID    string  `json:"room_id"`
	Role      string  `json:"role"`
	Profile   Profile `json:"profile"`
	ViewerKey string  `json:"viewer_key,omitempty"`

	ParsedRole Role `json:"-"`
}

func (m *JoinRoomMessage) Normalize(nowMs int64) error {
	m.RoomID = NormalizeRoomID(m.RoomID)
	if m.RoomID == "" {
		return invalid("room_id is required")
	}
	if strings.TrimSpace(m.Role) == "" {
		return invalid("role is required")
	}
	role, ok := ParseRole(m.Role)
	if !ok {
		return invalid("role must be host, viewer or guest")
	}
	m.ParsedRole = role
	m.Profile = NormalizeProfile(m.Profile, nowMs)
	m.ViewerKey = Truncate(strings.TrimSpace(m.ViewerKey), 128)
	return nil
}

// UpdateProfileMessage replaces the sender's display profile.
type UpdateProfileMessage struct {
	Type    string  `json:"type"`
	Profile Profile `json:"profile"`
}

func (m *UpdateProfileMessage) Normalize(nowMs int64) error {
	m.Profile = NormalizeProfile(m.Profile, nowMs)
	return nil
}

// LiveStartMessage starts the live session. StartTs is optional.
type LiveStartMessage struct {
	Type    string          `json:"type"`
	StartTs json.RawMessage `json:"start_ts,omitempty"`
}

// StartedAt returns the client supplied start time, or 0 when absent or invalid.
func (m *LiveStartMessage) StartedAt() int64 {
	ts := ParseInt(m.StartTs, 0)
	if ts <= 0 {
		return 0
	}
	return ts
}

// ChatMessage sends a chat line to the room.
type ChatMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Text string `json:"text"`
}

func (m *ChatMessage) Normalize() error {
	m.Name = Truncate(strings.TrimSpace(m.Name), MaxNameLen)
	m.Text = Truncate(strings.TrimSpace(m.Text), MaxChatTextLen)
	if m.Text == "" {
		return invalid("text is required")
	}
	return nil
}

// ReactionMessage emits an ephemeral on-screen effect.
type ReactionMessage struct {
	Type  string          `json:"type"`
	Emoji string          `json:"emoji"`
	Kind  string          `json:"kind"`
	X     json.RawMessage `json:"x"`
	Y     json.RawMessage `json:"y"`

	PosX float64 `json:"-"`
	PosY float64 `json:"-"`
}

func (m *ReactionMessage) Normalize() error {
	m.Emoji = Truncate(strings.TrimSpace(m.Emoji), MaxReactionLen)
	m.Kind = Truncate(strings.TrimSpace(m.Kind), MaxReactionLen)
	if m.Emoji == "" && m.Kind == "" {
		return invalid("emoji or kind is required")
	}
	m.PosX = ParseUnit(m.X)
	m.PosY = ParseUnit(m.Y)
	return nil
}

// SendGiftMessage spends wallet coins on a gift.
type SendGiftMessage struct {
	Type     string          `json:"type"`
	GiftType string          `json:"gift_type"`
	Quantity json.RawMessage `json:"quantity"`
	Name     string          `json:"name"`

	Qty int64 `json:"-"`
}

func (m *SendGiftMessage) Normalize() error {
	m.GiftType = strings.ToLower(strings.TrimSpace(m.GiftType))
	if m.GiftType == "" {
		return invalid("gift_type is required")
	}
	m.Qty = ClampQuantity(ParseInt(m.Quantity, MinGiftQuantity))
	m.Name = Truncate(strings.TrimSpace(m.Name), MaxNameLen)
	return nil
}

// PinNoteMessage carries pin-note-set and pin-note-move.
type PinNoteMessage struct {
	Type string          `json:"type"`
	Text string          `json:"text"`
	X    json.RawMessage `json:"x"`
	Y    json.RawMessage `json:"y"`

	PosX float64 `json:"-"`
	PosY float64 `json:"-"`
}

func (m *PinNoteMessage) Normalize() error {
	m.Text = Truncate(strings.TrimSpace(m.Text), MaxPinnedNoteLen)
	m.PosX = ParseUnit(m.X)
	m.PosY = ParseUnit(m.Y)
	if m.Type == MsgTypePinNoteSet && m.Text == "" {
		return invalid("text is required")
	}
	return nil
}

// GuestActionMessage targets a guest connection (approve, reject, kick).
type GuestActionMessage struct {
	Type    string `json:"type"`
	GuestID string `json:"guest_id"`
}

func (m *GuestActionMessage) Normalize() error {
	m.GuestID = strings.TrimSpace(m.GuestID)
	if m.GuestID == "" {
		return invalid("guest_id is required")
	}
	return nil
}

// SignalMessage is an addressed negotiation message. The server stamps From.
type SignalMessage struct {
	Type        string          `json:"type"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

func (m *SignalMessage) Normalize() error {
	m.To = strings.TrimSpace(m.To)
	if m.To == "" {
		return invalid("to is required")
	}
	switch m.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		if len(m.Description) == 0 || string(m.Description) == "null" {
			return invalid("description is required")
		}
	case MsgTypeCandidate:
		if len(m.Candidate) == 0 {
			return invalid("candidate is required")
		}
	case MsgTypeRequestICERestart:
		m.Reason = Truncate(strings.TrimSpace(m.Reason), 64)
	default:
		return invalid("unknown signal type")
	}
	return nil
}

// Server -> Client messages

// JoinedMessage confirms a join-room.
type JoinedMessage struct {
	Type          string   `json:"type"`
	RoomID        string   `json:"room_id"`
	ConnectionID  string   `json:"connection_id"`
	Role          Role     `json:"role"`
	ViewerCount   int      `json:"viewer_count"`
	IsLive        bool     `json:"is_live"`
	LiveStartedAt int64    `json:"live_started_at,omitempty"`
	HostOnline    bool     `json:"host_online"`
	Guests        []string `json:"guests"`
	Balance       int64    `json:"balance"`
}

// HostMessage covers host-changed, host-temporarily-offline, host-online and host-status.
type HostMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	HostID   string `json:"host_id,omitempty"`
	Online   bool   `json:"online"`
	Deadline int64  `json:"deadline,omitempty"`
}

// LiveMessage covers live-start, live-resumed and live-stopped.
type LiveMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	StartedAt int64  `json:"started_at,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ViewerCountMessage is sent when the viewer set changes.
type ViewerCountMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

// ViewerListMessage is sent to the host on join.
type ViewerListMessage struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"room_id"`
	Viewers []string `json:"viewers"`
}

// LobbyUpdateMessage is the full lobby snapshot.
type LobbyUpdateMessage struct {
	Type      string       `json:"type"`
	Rooms     []LobbyEntry `json:"rooms"`
	Timestamp int64        `json:"timestamp"`
}

// ChatBroadcast is a chat line as delivered to the room.
type ChatBroadcast struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	From   string `json:"from"`
	Role   Role   `json:"role"`
	Badge  string `json:"badge,omitempty"`
	Name   string `json:"name"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

// ReactionBroadcast is a reaction as delivered to the room.
type ReactionBroadcast struct {
	Type   string  `json:"type"`
	RoomID string  `json:"room_id"`
	From   string  `json:"from"`
	Emoji  string  `json:"emoji,omitempty"`
	Kind   string  `json:"kind,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Ts     int64   `json:"ts"`
}

// GiftBroadcast announces an accepted gift.
type GiftBroadcast struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	GiftType  string `json:"gift_type"`
	Symbol    string `json:"symbol"`
	UnitCost  int64  `json:"unit_cost"`
	Quantity  int64  `json:"quantity"`
	TotalCost int64  `json:"total_cost"`
	From      string `json:"from"`
	RoomTotal int64  `json:"room_total"`
	Ts        int64  `json:"ts"`
}

// GiftStatsMessage is the leaderboard.
type GiftStatsMessage struct {
	Type   string        `json:"type"`
	RoomID string        `json:"room_id"`
	Total  int64         `json:"total"`
	Top    []LedgerEntry `json:"top"`
}

// GiftFailedMessage rejects a gift to the sender only.
type GiftFailedMessage struct {
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	GiftType string `json:"gift_type,omitempty"`
	Need     int64  `json:"need,omitempty"`
	Have     int64  `json:"have"`
}

// WalletMessage reports the sender's balance.
type WalletMessage struct {
	Type    string `json:"type"`
	Balance int64  `json:"balance"`
}

// PinNoteUpdateMessage carries the current note, or null when cleared.
type PinNoteUpdateMessage struct {
	Type   string      `json:"type"`
	RoomID string      `json:"room_id"`
	Note   *PinnedNote `json:"note"`
}

// GuestMessage covers the guest lifecycle events.
type GuestMessage struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"room_id"`
	GuestID string   `json:"guest_id"`
	Profile *Profile `json:"profile,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// ProfileMessage covers host-profile and profile-updated.
type ProfileMessage struct {
	Type         string  `json:"type"`
	RoomID       string  `json:"room_id"`
	ConnectionID string  `json:"connection_id"`
	Role         Role    `json:"role"`
	Profile      Profile `json:"profile"`
}

// FollowerCountMessage reports the follower set size.
type FollowerCountMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	Count     int    `json:"count"`
	Following *bool  `json:"following,omitempty"`
}

// RateLimitedMessage rejects a chat or reaction to the sender only.
type RateLimitedMessage struct {
	Type         string `json:"type"`
	Scope        string `json:"scope"`
	RetryAfterMs int64  `json:"retry_after_ms"`
}

// ICEServer describes one relay or STUN server.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEServersMessage answers ice-request.
type ICEServersMessage struct {
	Type    string      `json:"type"`
	Servers []ICEServer `json:"ice_servers"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
