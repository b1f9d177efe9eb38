package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	MaxChatTextLen   = 300
	MaxPinnedNoteLen = 220
	MaxReactionLen   = 16
	DefaultUnit      = 0.5
)

// ParseUnit coerces a JSON value to a coordinate in [0,1].
// Numbers and numeric strings are clamped; anything else yields 0.5.
func ParseUnit(raw json.RawMessage) float64 {
	f, ok := parseNumber(raw)
	if !ok {
		return DefaultUnit
	}
	return ClampUnit(f)
}

// ClampUnit bounds f to [0,1].
func ClampUnit(f float64) float64 {
	if math.IsNaN(f) {
		return DefaultUnit
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ParseInt coerces a JSON number or numeric string to an integer.
func ParseInt(raw json.RawMessage, def int64) int64 {
	f, ok := parseNumber(raw)
	if !ok || math.IsInf(f, 0) {
		return def
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int64(f)
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal([]byte(s), &f); err == nil {
		return f, !math.IsNaN(f)
	}
	var str string
	if err := json.Unmarshal([]byte(s), &str); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
