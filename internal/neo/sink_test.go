package neo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	batches [][]NearEarthObject
}

func (m *memorySink) Name() string { return m.name }

func (m *memorySink) Save(ctx context.Context, objs []NearEarthObject) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("sink called without a deadline")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, objs)
	return m.err
}

func TestPublisherFansOutToEverySink(t *testing.T) {
	failing := &memorySink{name: "broken", err: errors.New("disk full")}
	ok := &memorySink{name: "memory"}
	p := NewPublisher(nil, time.Second, failing, ok)

	objs := []NearEarthObject{{ID: "1", RiskLevel: RiskHigh, CloseApproaches: []CloseApproach{{MissDistanceKm: 5}}}}
	p.OnRefresh(FeedKey, objs)
	p.Wait()

	if len(failing.batches) != 1 || len(ok.batches) != 1 {
		t.Fatalf("expected one batch per sink, got %d and %d", len(failing.batches), len(ok.batches))
	}

	objs[0].CloseApproaches[0].MissDistanceKm = 1
	if ok.batches[0][0].CloseApproaches[0].MissDistanceKm != 5 {
		t.Fatal("sinks must receive their own copy")
	}
}

func TestPublisherSkipsEmptyBatches(t *testing.T) {
	s := &memorySink{name: "memory"}
	p := NewPublisher(nil, 0, s)

	p.OnRefresh("neo:1", nil)
	p.Wait()

	if len(s.batches) != 0 {
		t.Fatalf("expected no writes, got %d", len(s.batches))
	}
}

func TestCountByLevel(t *testing.T) {
	counts := countByLevel([]NearEarthObject{{RiskLevel: RiskLow}, {RiskLevel: RiskLow}, {RiskLevel: RiskCritical}})
	if counts["low"] != 2 || counts["critical"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
