package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	fail error
}

func (r *recordingPublisher) PublishMsg(m *nats.Msg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.msgs = append(r.msgs, m)
	return nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var alertNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func object(id string, level neo.RiskLevel, score int) neo.NearEarthObject {
	return neo.NearEarthObject{
		ID:        id,
		Name:      "obj " + id,
		RiskScore: score,
		RiskLevel: level,
		CloseApproaches: []neo.CloseApproach{
			{Date: alertNow.Add(time.Hour), MissDistanceKm: 500000, RelativeVelocityKmH: 40000, OrbitingBody: neo.BodyEarth},
			{Date: alertNow.Add(48 * time.Hour), MissDistanceKm: 90000, RelativeVelocityKmH: 60000, OrbitingBody: neo.BodyEarth},
		},
	}
}

func TestAlertSink_PublishesAboveThreshold(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAlertSink(pub, "", neo.RiskHigh, fixedClock(alertNow))

	err := sink.Save(context.Background(), []neo.NearEarthObject{
		object("1", neo.RiskLow, 30),
		object("2", neo.RiskHigh, 65),
		object("3", neo.RiskCritical, 100),
	})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 2)

	assert.Equal(t, "neo.alerts.high", pub.msgs[0].Subject)
	assert.Equal(t, "neo.alerts.critical", pub.msgs[1].Subject)
	assert.Equal(t, "3", pub.msgs[1].Header.Get("Neo-Id"))
	assert.Equal(t, "100", pub.msgs[1].Header.Get("Neo-Risk-Score"))

	var a Alert
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &a))
	assert.Equal(t, "2", a.ID)
	assert.Equal(t, neo.RiskHigh, a.RiskLevel)
	assert.Equal(t, alertNow, a.AlertedAt)
	require.NotNil(t, a.ClosestApproach)
	assert.Equal(t, 90000.0, a.ClosestApproach.MissDistanceKm)
}

func TestAlertSink_AnnouncesOnlyNewOrEscalated(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAlertSink(pub, "alerts", neo.RiskMedium, fixedClock(alertNow))
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, []neo.NearEarthObject{object("1", neo.RiskMedium, 45)}))
	require.NoError(t, sink.Save(ctx, []neo.NearEarthObject{object("1", neo.RiskMedium, 45)}))
	require.Len(t, pub.msgs, 1)

	require.NoError(t, sink.Save(ctx, []neo.NearEarthObject{object("1", neo.RiskVeryHigh, 85)}))
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "alerts.very_high", pub.msgs[1].Subject)
}

func TestAlertSink_RetriesFailedPublish(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("nats: connection closed")}
	sink := NewAlertSink(pub, "", neo.RiskHigh, fixedClock(alertNow))
	ctx := context.Background()
	objs := []neo.NearEarthObject{object("7", neo.RiskHigh, 70)}

	err := sink.Save(ctx, objs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish 7")

	pub.fail = nil
	require.NoError(t, sink.Save(ctx, objs))
	assert.Len(t, pub.msgs, 1)
}

func TestAlertSink_UnknownLevelDefaultsToHigh(t *testing.T) {
	sink := NewAlertSink(&recordingPublisher{}, "", neo.RiskLevel("extreme"), nil)
	assert.Equal(t, neo.RiskHigh, sink.minLevel)
	assert.Equal(t, "nats", sink.Name())
}

func TestAlertSink_ConcurrentSavesAnnounceOnce(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAlertSink(pub, "", neo.RiskHigh, fixedClock(alertNow))
	batch := []neo.NearEarthObject{object("7", neo.RiskCritical, 97)}

	const savers = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range savers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, sink.Save(context.Background(), batch))
		}()
	}
	close(start)
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.msgs, 1)
}
