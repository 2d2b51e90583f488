// Package notify publishes risk alerts for freshly refreshed objects over NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
)

var _ neo.Sink = (*AlertSink)(nil)

// DefaultSubject prefixes every alert subject; the risk level is appended.
const DefaultSubject = "neo.alerts"

// MsgPublisher is the part of *nats.Conn the sink needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Alert is the JSON payload of one message.
type Alert struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name"`
	RiskScore              int                `json:"riskScore"`
	RiskLevel              neo.RiskLevel      `json:"riskLevel"`
	IsPotentiallyHazardous bool               `json:"isPotentiallyHazardous"`
	MonitoringPriority     string             `json:"monitoringPriority"`
	ObservationFrequency   string             `json:"observationFrequency"`
	ClosestApproach        *neo.CloseApproach `json:"closestApproach,omitempty"`
	AlertedAt              time.Time          `json:"alertedAt"`
}

// AlertSink publishes objects at or above a minimum level to "<subject>.<level>". An object is
// announced again only when its level rises.
type AlertSink struct {
	pub      MsgPublisher
	subject  string
	minLevel neo.RiskLevel
	clock    neo.Clock

	mu        sync.Mutex
	announced map[string]int
}

// NewAlertSink creates a sink. An empty subject uses DefaultSubject and an unknown level uses high.
func NewAlertSink(pub MsgPublisher, subject string, minLevel neo.RiskLevel, clock neo.Clock) *AlertSink {
	if subject == "" {
		subject = DefaultSubject
	}
	if minLevel.Rank() < 0 {
		minLevel = neo.RiskHigh
	}
	if clock == nil {
		clock = neo.SystemClock{}
	}
	return &AlertSink{
		pub:       pub,
		subject:   subject,
		minLevel:  minLevel,
		clock:     clock,
		announced: make(map[string]int),
	}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("neo-tracker"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

func (s *AlertSink) Name() string { return "nats" }

// Save publishes one message per qualifying object. Publish failures are joined; an object whose
// publish failed is retried on the next refresh.
func (s *AlertSink) Save(ctx context.Context, objs []neo.NearEarthObject) error {
	threshold := s.minLevel.Rank()
	now := s.clock.Now()

	var errs []error
	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		rank := o.RiskLevel.Rank()
		if rank < threshold {
			continue
		}
		prev, had, ok := s.claim(o.ID, rank)
		if !ok {
			continue
		}

		msg, err := s.message(o, now)
		if err == nil {
			err = s.pub.PublishMsg(msg)
			if err != nil {
				err = fmt.Errorf("publish %s: %w", o.ID, err)
			}
		}
		if err != nil {
			s.release(o.ID, rank, prev, had)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// claim records rank for id if it escalates the last announced level. The check and the write
// happen under one lock so concurrent saves announce an object once.
func (s *AlertSink) claim(id string, rank int) (prev int, had, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had = s.announced[id]
	if had && rank <= prev {
		return prev, had, false
	}
	s.announced[id] = rank
	return prev, had, true
}

// release undoes a claim whose publish failed, unless a later claim replaced it.
func (s *AlertSink) release(id string, rank, prev int, had bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced[id] != rank {
		return
	}
	if had {
		s.announced[id] = prev
	} else {
		delete(s.announced, id)
	}
}

func (s *AlertSink) message(o neo.NearEarthObject, now time.Time) (*nats.Msg, error) {
	a := Alert{
		ID:                     o.ID,
		Name:                   o.Name,
		RiskScore:              o.RiskScore,
		RiskLevel:              o.RiskLevel,
		IsPotentiallyHazardous: o.IsPotentiallyHazardous,
		MonitoringPriority:     o.MonitoringPriority,
		ObservationFrequency:   o.ObservationFrequency,
		AlertedAt:              now,
	}
	if c, ok := o.ClosestApproach(); ok {
		a.ClosestApproach = &c
	}

	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal alert %s: %w", o.ID, err)
	}

	hdr := nats.Header{}
	hdr.Set("Neo-Id", o.ID)
	hdr.Set("Neo-Risk-Score", strconv.Itoa(o.RiskScore))
	return &nats.Msg{
		Subject: s.subject + "." + string(o.RiskLevel),
		Data:    data,
		Header:  hdr,
	}, nil
}
