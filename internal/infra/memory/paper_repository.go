package memory

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

var errNoLoader = errors.New("paper repository has no loader")

// PaperRepository caches contest papers with TTL to avoid repeated DB hits.
//
// Every invalidation bumps version. Loads are de-duplicated per (contest,
// version) and a load that straddles an invalidation is returned to its
// callers but never cached.
type PaperRepository struct {
	loader app.PaperLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	version uint64
	cache   map[string]cachedPaper
}

type cachedPaper struct {
	paper     domain.Paper
	expiresAt time.Time
}

// NewPaperRepository builds a cache in front of loader. A nil loader gives a
// repository that only serves invalidation, for callers that never read papers.
func NewPaperRepository(loader app.PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPaper),
	}
}

func (r *PaperRepository) GetPaper(ctx context.Context, contestID string) (domain.Paper, error) {
	paper, version, ok := r.cached(contestID)
	if ok {
		return paper, nil
	}
	if r.loader == nil {
		return domain.Paper{}, errNoLoader
	}

	key := contestID + "@" + strconv.FormatUint(version, 10)
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		paper, err := r.loader.LoadPaper(ctx, contestID)
		if err != nil {
			return domain.Paper{}, err
		}

		r.mu.Lock()
		if r.version == version {
			r.cache[contestID] = cachedPaper{
				paper:     paper,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return paper, nil
	})
	if err != nil {
		return domain.Paper{}, err
	}
	return result.(domain.Paper), nil
}

func (r *PaperRepository) Invalidate(_ context.Context, contestID string) {
	r.mu.Lock()
	r.version++
	delete(r.cache, contestID)
	r.mu.Unlock()
}

func (r *PaperRepository) InvalidateAll(_ context.Context) {
	r.mu.Lock()
	r.version++
	r.cache = make(map[string]cachedPaper)
	r.mu.Unlock()
}

// cached returns a live entry, or the version a fresh load must be tagged with.
func (r *PaperRepository) cached(contestID string) (domain.Paper, uint64, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[contestID]; ok && entry.expiresAt.After(now) {
		return entry.paper, r.version, true
	}
	return domain.Paper{}, r.version, false
}

// ttlWithJitter adds up to 10% jitter to spread expirations. Callers hold r.mu.
func (r *PaperRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
