package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// epochKey is bumped by InvalidateAll; contest:{id}:paper:gen by Invalidate.
const epochKey = "contest:papers:epoch"

// PaperRepository caches contest papers in Redis and falls back to a loader on cache miss.
// Papers are stored as JSON: SET contest:{contestID}:paper {json}
//
// A load records the contest's generation first and writes the paper back in a
// WATCH transaction on the generation keys, so a load that straddles an
// invalidation on any instance is never cached.
type PaperRepository struct {
	client *redis.Client
	loader app.PaperLoader
	ttl    time.Duration
	sf     singleflight.Group
	local  atomic.Uint64
	log    logrus.FieldLogger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPaperRepository(client *redis.Client, loader app.PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    logrus.StandardLogger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PaperRepository) GetPaper(ctx context.Context, contestID string) (domain.Paper, error) {
	if paper, ok := r.cached(ctx, contestID); ok {
		return paper, nil
	}

	// Callers arriving after a local invalidation start a new flight.
	key := fmt.Sprintf("%s@%d", contestID, r.local.Load())
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if paper, ok := r.cached(ctx, contestID); ok {
			return paper, nil
		}

		gen, err := generation(ctx, r.client, contestID)
		if err != nil {
			r.log.WithError(err).WithField("contest", contestID).Warn("paper generation read failed")
		}
		paper, err := r.loader.LoadPaper(ctx, contestID)
		if err != nil {
			return domain.Paper{}, err
		}
		r.store(ctx, paper, gen)
		return paper, nil
	})
	if err != nil {
		return domain.Paper{}, err
	}
	return result.(domain.Paper), nil
}

func (r *PaperRepository) Invalidate(ctx context.Context, contestID string) {
	r.local.Add(1)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(contestID))
		pipe.Del(ctx, paperKey(contestID))
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("contest", contestID).Warn("paper cache invalidation failed")
	}
}

func (r *PaperRepository) InvalidateAll(ctx context.Context) {
	r.local.Add(1)
	if err := r.client.Incr(ctx, epochKey).Err(); err != nil {
		r.log.WithError(err).Warn("paper cache epoch bump failed")
	}

	iter := r.client.Scan(ctx, 0, "contest:*:paper", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.log.WithError(err).Warn("paper cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.WithError(err).Warn("paper cache invalidation failed")
	}
}

func (r *PaperRepository) cached(ctx context.Context, contestID string) (domain.Paper, bool) {
	raw, err := r.client.Get(ctx, paperKey(contestID)).Bytes()
	if err != nil {
		return domain.Paper{}, false
	}
	var paper domain.Paper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return domain.Paper{}, false
	}
	return paper, true
}

var errStalePaper = errors.New("paper invalidated during load")

// store writes the paper only if the generation still matches gen.
func (r *PaperRepository) store(ctx context.Context, paper domain.Paper, gen string) {
	data, err := json.Marshal(paper)
	if err != nil {
		return
	}
	contestID := paper.ContestID
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if current != gen {
			return errStalePaper
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, paperKey(contestID), data, r.ttlWithJitter())
			return nil
		})
		return err
	}, genKey(contestID), epochKey)

	switch {
	case err == nil:
	case errors.Is(err, errStalePaper), errors.Is(err, redis.TxFailedErr):
		r.log.WithField("contest", contestID).Debug("skipped caching a paper invalidated during load")
	default:
		r.log.WithError(err).WithField("contest", contestID).Warn("paper cache write failed")
	}
}

type mgetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// generation identifies the cache state of a contest: its own counter plus the global epoch.
func generation(ctx context.Context, c mgetter, contestID string) (string, error) {
	vals, err := c.MGet(ctx, epochKey, genKey(contestID)).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v/%v", vals[0], vals[1]), nil
}

func paperKey(contestID string) string {
	return "contest:" + contestID + ":paper"
}

func genKey(contestID string) string {
	return "contest:" + contestID + ":paper:gen"
}

func (r *PaperRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
