package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

// Warmer refreshes the shared feed entry.
type Warmer interface {
	Warm(ctx context.Context) (neo.Lookup, error)
}

// Scheduler periodically refreshes the feed so requests rarely wait on upstream.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	interval  time.Duration
	timeout   time.Duration
	log       logger.Logger
}

// New creates a new Scheduler. A zero timeout defaults to 30s.
func New(interval, timeout time.Duration, warmer Warmer, log logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Scheduler{
		scheduler: s,
		warmer:    warmer,
		interval:  interval,
		timeout:   timeout,
		log:       log.Named("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The first run happens
// immediately. A non-positive interval disables warming.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info(context.Background(), "cache warming disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info(context.Background(), "cache warming scheduled", logger.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.warmer.Warm(ctx)
	if err != nil {
		s.log.Error(ctx, "feed warm failed", logger.Error(err))
		return
	}
	if res.Stale {
		s.log.Warn(ctx, "feed warm kept stale entry", logger.Time("stored_at", res.StoredAt))
		return
	}
	s.log.Info(ctx, "feed warmed",
		logger.Int("objects", len(res.Objects)),
		logger.Duration("took", time.Since(started)))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
