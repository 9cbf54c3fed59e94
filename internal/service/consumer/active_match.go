package consumer

import "sync"

// ActiveMatch is the match the user is currently in, kept for the session only.
type ActiveMatch struct {
	mu      sync.RWMutex
	matchID int64
}

func NewActiveMatch() *ActiveMatch { return &ActiveMatch{} }

func (a *ActiveMatch) Set(matchID int64) {
	a.mu.Lock()
	a.matchID = matchID
	a.mu.Unlock()
}

func (a *ActiveMatch) Get() (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matchID, a.matchID != 0
}

func (a *ActiveMatch) Clear() { a.Set(0) }

// Reset is called on logout.
func (a *ActiveMatch) Reset() { a.Clear() }
