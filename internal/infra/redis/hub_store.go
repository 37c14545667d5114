package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// HubStore serves subscribers from an in-process registry and mirrors the
// number of open streams per contest into Redis under leaderboard:stream:{id},
// so every instance and operator can see which leaderboards are watched.
// The counter expires after ttl without subscribe or publish activity, which
// bounds what a crashed instance leaves behind.
type HubStore struct {
	local  *memory.HubStore
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

var _ app.HubRepository = (*HubStore)(nil)

// releaseStream decrements the stream counter and drops it at zero.
var releaseStream = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
end
return n
`)

func NewHubStore(client *redis.Client, ttl time.Duration) *HubStore {
	return &HubStore{
		local:  memory.NewHubStore(),
		client: client,
		ttl:    ttl,
		log:    logrus.StandardLogger(),
	}
}

func (s *HubStore) Subscribe(contestID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch, cancel := s.local.Subscribe(contestID, initial)

	ctx := context.Background()
	key := streamKey(contestID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("contest", contestID).Warn("stream counter update failed")
	}

	var once sync.Once
	return ch, func() {
		cancel()
		once.Do(func() {
			err := releaseStream.Run(ctx, s.client, []string{key}).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				s.log.WithError(err).WithField("contest", contestID).Warn("stream counter release failed")
			}
		})
	}
}

func (s *HubStore) Watched(contestID string) bool {
	return s.local.Watched(contestID)
}

// Publish fans lb out locally and keeps the stream counter alive.
func (s *HubStore) Publish(contestID string, lb domain.Leaderboard) {
	s.local.Publish(contestID, lb)
	if s.ttl > 0 {
		_ = s.client.Expire(context.Background(), streamKey(contestID), s.ttl).Err()
	}
}

func streamKey(contestID string) string {
	return "leaderboard:stream:" + contestID
}
