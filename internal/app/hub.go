package app

import (
	"sync"

	"contest-service/internal/domain"
)

// LeaderboardHub fans out leaderboard snapshots of one contest to live subscribers.
type LeaderboardHub struct {
	contestID   string
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

// NewLeaderboardHub is exported for the registries in infra.
func NewLeaderboardHub(contestID string) *LeaderboardHub {
	return &LeaderboardHub{
		contestID:   contestID,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// ContestID returns the contest the hub serves.
func (h *LeaderboardHub) ContestID() string {
	return h.contestID
}

// Attach registers a channel primed with initial. The returned detach
// closes the channel and is safe to call more than once.
func (h *LeaderboardHub) Attach(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber without blocking. A full
// subscriber loses its oldest pending snapshot.
func (h *LeaderboardHub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// IsEmpty reports whether the hub has no subscribers.
func (h *LeaderboardHub) IsEmpty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) == 0
}
