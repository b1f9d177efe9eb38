package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLen   = 20
	MaxAvatarLen = 500
	DefaultName  = "User"
)

// Profile is the display identity a participant presents to the room.
type Profile struct {
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

// NormalizeProfile trims and truncates the display fields and stamps UpdatedAt.
func NormalizeProfile(p Profile, nowMs int64) Profile {
	name := Truncate(strings.TrimSpace(p.Name), MaxNameLen)
	if name == "" {
		name = DefaultName
	}
	return Profile{
		Name:      name,
		Avatar:    Truncate(strings.TrimSpace(p.Avatar), MaxAvatarLen),
		UpdatedAt: nowMs,
	}
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
