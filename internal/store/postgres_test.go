package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
)

func newMockSink(t *testing.T) (*PostgresSink, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresSink(db), mock
}

func enrichedSample(now time.Time) []neo.NearEarthObject {
	return neo.EnrichAll(sampleRecords(now), now)
}

func TestPostgresSink_Migrate(t *testing.T) {
	sink, mock := newMockSink(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS neo_objects").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS close_approaches").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS neo_objects_risk_level_idx").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, sink.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_SaveUpsertsObjectsAndApproaches(t *testing.T) {
	sink, mock := newMockSink(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	objs := enrichedSample(now)

	mock.ExpectBegin()
	for _, o := range objs {
		mock.ExpectExec("INSERT INTO neo_objects").
			WithArgs(o.ID, o.Name, o.NasaJplURL, o.DiameterMinKm, o.DiameterMaxKm, o.AbsoluteMagnitudeH,
				o.IsPotentiallyHazardous, o.IsSentryObject, o.RiskScore, string(o.RiskLevel),
				o.MonitoringPriority, o.ObservationFrequency, o.ImpactEnergyMt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		for _, a := range o.CloseApproaches {
			mock.ExpectExec("INSERT INTO close_approaches").
				WithArgs(o.ID, a.Date, string(a.OrbitingBody), a.MissDistanceKm, a.RelativeVelocityKmH).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectCommit()

	require.NoError(t, sink.Save(context.Background(), objs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_SaveRollsBackOnError(t *testing.T) {
	sink, mock := newMockSink(t)
	objs := enrichedSample(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO neo_objects").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := sink.Save(context.Background(), objs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), objs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_SaveEmptyBatch(t *testing.T) {
	sink, mock := newMockSink(t)
	require.NoError(t, sink.Save(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "postgres", sink.Name())
}
