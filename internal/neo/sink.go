package neo

import (
	"context"
	"sync"
	"time"

	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
	"github.com/Franciscooxz/Neo-Tracker/pkg/metrics"
)

// Publisher fans freshly fetched batches out to the configured sinks in the background.
type Publisher struct {
	sinks   []Sink
	timeout time.Duration
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewPublisher creates a Publisher. A zero timeout defaults to 30s.
func NewPublisher(log logger.Logger, timeout time.Duration, sinks ...Sink) *Publisher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Publisher{sinks: sinks, timeout: timeout, log: log}
}

// OnRefresh is installed as the cache refresh hook.
func (p *Publisher) OnRefresh(key string, objs []NearEarthObject) {
	if key == FeedKey {
		metrics.UpdateObjectsByRiskLevel(countByLevel(objs))
	}
	if len(p.sinks) == 0 || len(objs) == 0 {
		return
	}

	batch := CloneAll(objs)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		for _, s := range p.sinks {
			if err := s.Save(ctx, batch); err != nil {
				metrics.RecordSinkError(s.Name())
				p.log.Error(ctx, "sink write failed",
					logger.String("sink", s.Name()),
					logger.String("key", key),
					logger.Int("objects", len(batch)),
					logger.Error(err))
				continue
			}
			p.log.Debug(ctx, "sink write completed", logger.String("sink", s.Name()), logger.Int("objects", len(batch)))
		}
	}()
}

// Wait blocks until in-flight sink writes finish.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func countByLevel(objs []NearEarthObject) map[string]int {
	counts := make(map[string]int, len(RiskLevels))
	for _, o := range objs {
		counts[string(o.RiskLevel)]++
	}
	return counts
}
