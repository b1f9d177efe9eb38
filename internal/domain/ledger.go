package domain

import "sort"

// LedgerEntry is one donor's accumulated contribution.
type LedgerEntry struct {
	Name  string `json:"name"`
	Coins int64  `json:"coins"`
}

// Ledger maps donor display names to coins and remembers first-credit order
// for leaderboard tie-breaks.
type Ledger struct {
	entries []LedgerEntry
	index   map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Credit adds coins to name, creating the entry at zero if absent.
func (l *Ledger) Credit(name string, coins int64) {
	i, ok := l.index[name]
	if !ok {
		i = len(l.entries)
		l.entries = append(l.entries, LedgerEntry{Name: name})
		l.index[name] = i
	}
	l.entries[i].Coins += coins
}

// Get returns the coins credited to name.
func (l *Ledger) Get(name string) int64 {
	if i, ok := l.index[name]; ok {
		return l.entries[i].Coins
	}
	return 0
}

// Sum returns the total of all entries.
func (l *Ledger) Sum() int64 {
	var total int64
	for _, e := range l.entries {
		total += e.Coins
	}
	return total
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy in insertion order.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Top returns up to n entries by coins descending, ties in insertion order.
func (l *Ledger) Top(n int) []LedgerEntry {
	out := l.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Coins > out[j].Coins
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
