package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StatusSweeper advances contest statuses from wall-clock time.
type StatusSweeper struct {
	contests ContestRepository
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewStatusSweeper(contests ContestRepository, opts ...Option) *StatusSweeper {
	o := buildOptions(opts)
	return &StatusSweeper{contests: contests, now: o.now, log: o.log}
}

// Sweep runs one batch: Created -> In Progress, then In Progress -> Finished.
func (s *StatusSweeper) Sweep(ctx context.Context) (started, finished int, err error) {
	started, finished, err = s.contests.AdvanceStatuses(ctx, s.now())
	if err != nil {
		return 0, 0, err
	}
	s.log.WithFields(logrus.Fields{"started": started, "finished": finished}).Info("contest status sweep completed")
	return started, finished, nil
}

// Schedule registers the sweep on a cron spec (e.g. "@every 10m") and starts
// the scheduler. Overlapping runs are skipped. Stop the returned cron on shutdown.
func (s *StatusSweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, _, err := s.Sweep(runCtx); err != nil {
			s.log.WithError(err).Error("contest status sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
