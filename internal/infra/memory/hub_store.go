package memory

import (
	"sync"

	"contest-service/internal/app"
	"contest-service/internal/domain"
)

// HubStore keeps one LeaderboardHub per watched contest. A hub exists exactly
// while it has subscribers; every registry change happens under mu.
type HubStore struct {
	mu   sync.Mutex
	hubs map[string]*app.LeaderboardHub
}

var _ app.HubRepository = (*HubStore)(nil)

func NewHubStore() *HubStore {
	return &HubStore{hubs: make(map[string]*app.LeaderboardHub)}
}

func (s *HubStore) Subscribe(contestID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[contestID]
	if !ok {
		hub = app.NewLeaderboardHub(contestID)
		s.hubs[contestID] = hub
	}
	ch, detach := hub.Attach(initial)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		detach()
		// A repeated cancel may find a newer hub under the same id; leave it alone.
		if hub.IsEmpty() && s.hubs[contestID] == hub {
			delete(s.hubs, contestID)
		}
	}
	return ch, cancel
}

func (s *HubStore) Watched(contestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hubs[contestID]
	return ok
}

func (s *HubStore) Publish(contestID string, lb domain.Leaderboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub, ok := s.hubs[contestID]; ok {
		hub.Publish(lb)
	}
}
