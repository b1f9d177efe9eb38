package domain

import "strings"

// Role is the part a connection plays inside a room.
type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleViewer
	RoleGuest
)

// ParseRole maps the wire role string onto a Role. "broadcaster" is accepted
// as an alias for host.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "broadcaster":
		return RoleHost, true
	case "viewer":
		return RoleViewer, true
	case "guest":
		return RoleGuest, true
	default:
		return RoleNone, false
	}
}

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleViewer:
		return "viewer"
	case RoleGuest:
		return "guest"
	case RoleNone:
		return "none"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role by name so JSON payloads carry "host", "viewer" or "guest".
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
