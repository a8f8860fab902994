package session

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

// DefaultSweepCron runs the sweeper every five minutes.
const DefaultSweepCron = "*/5 * * * *"

// Sweeper periodically deletes expired sessions on a cron schedule.
type Sweeper struct {
	store Expirer
	cron  string
	now   func() time.Time
}

// NewSweeper validates cron; an empty expression means DefaultSweepCron.
func NewSweeper(store Expirer, cron string) (*Sweeper, error) {
	if cron == "" {
		cron = DefaultSweepCron
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cron)
	}
	return &Sweeper{store: store, cron: cron, now: time.Now}, nil
}

// RunOnce deletes every session expired at the current time.
func (s *Sweeper) RunOnce() (int, error) {
	n, err := s.store.DeleteExpired(s.now().Unix())
	if err != nil {
		logger.Error("session_sweep_failed", "error", err)
		return 0, err
	}
	if n > 0 {
		logger.Info("session_sweep", "deleted", n)
	}
	return n, nil
}

// Start runs the sweeper in the background until the returned cancel func is
// called or ctx is done.
func (s *Sweeper) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go s.loop(ctx)
	logger.Info("session_sweeper_started", "cron", s.cron)
	return cancel
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cron, s.now().UTC(), false)
		wait := time.Until(next)
		if err != nil {
			logger.Error("session_sweep_nexttick_failed", "cron", s.cron, "error", err)
			wait = 30 * time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("session_sweeper_stopping")
			return
		case <-timer.C:
		}
		if err == nil {
			_, _ = s.RunOnce()
		}
	}
}
