package sensing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/rtls"
	"github.com/blackwell-systems/homepilot/internal/store"
	"github.com/blackwell-systems/homepilot/internal/weather"
)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sunny() weather.Provider {
	return weather.ProviderFunc(func(context.Context) (model.Weather, error) {
		return model.Weather{Temperature: 70, Condition: "Clear", SuitableForOutdoor: true}, nil
	})
}

func TestGather_AllInputs(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	require.NoError(t, db.InsertBiometricSample(ctx, model.BiometricSample{HeartRate: 72, ReadinessScore: 80, Timestamp: time.Now()}))
	require.NoError(t, db.InsertRSSIFrame(ctx, model.SignalReading{"kitchen_beacon_1": -40}, true))
	require.NoError(t, db.InsertOccupancy(ctx, model.Occupancy{UserAlone: true, PeopleCount: 1, Room: "kitchen"}))

	sink := &audit.Recorder{}
	g := NewGatherer(db, sunny(), sink, nil)
	snap, err := g.Gather(ctx)
	require.NoError(t, err)

	require.NotNil(t, snap.Biometrics)
	assert.Equal(t, 72, snap.Biometrics.HeartRate)
	assert.Equal(t, -40.0, snap.Readings["kitchen_beacon_1"])
	assert.True(t, snap.Motion)
	require.NotNil(t, snap.Occupancy)
	assert.Equal(t, "kitchen", snap.Occupancy.Room)
	require.NotNil(t, snap.Weather)
	assert.True(t, snap.Weather.SuitableForOutdoor)
	assert.Empty(t, snap.Errors)

	assert.True(t, sink.Has(audit.CategoryBiometrics, "read"))
	assert.False(t, sink.Has(audit.CategoryContext, "unavailable"))
}

func TestGather_MissingInputsDegrade(t *testing.T) {
	db := openStore(t)
	sink := &audit.Recorder{}
	g := NewGatherer(db, nil, sink, nil)

	snap, err := g.Gather(context.Background())
	require.NoError(t, err)

	assert.Nil(t, snap.Biometrics)
	assert.NotNil(t, snap.Readings)
	assert.Empty(t, snap.Readings)
	assert.Nil(t, snap.Occupancy)
	assert.Nil(t, snap.Weather)

	assert.ErrorIs(t, snap.Errors["biometrics"], store.ErrNotFound)
	assert.ErrorIs(t, snap.Errors["occupancy"], ErrContextUnavailable)
	assert.ErrorIs(t, snap.Errors["weather"], ErrContextUnavailable)
	assert.True(t, sink.Has(audit.CategoryContext, "unavailable"))
}

func TestGather_WeatherFailure(t *testing.T) {
	db := openStore(t)
	failing := weather.ProviderFunc(func(context.Context) (model.Weather, error) {
		return model.Weather{}, errors.New("timeout")
	})
	g := NewGatherer(db, failing, nil, nil)

	snap, err := g.Gather(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Weather)
	assert.ErrorIs(t, snap.Errors["weather"], ErrContextUnavailable)
}

func TestGather_StaleOccupancy(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	require.NoError(t, db.InsertOccupancy(ctx, model.Occupancy{UserAlone: true, PeopleCount: 1}))

	g := NewGatherer(db, sunny(), nil, nil)
	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	snap, err := g.Gather(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Occupancy)
	assert.ErrorIs(t, snap.Errors["occupancy"], ErrContextUnavailable)

	g.SetOccupancyMaxAge(0)
	snap, err = g.Gather(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snap.Occupancy)
}

func TestGather_StaleFrameYieldsNoReadings(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	require.NoError(t, db.InsertRSSIFrame(ctx, model.SignalReading{"kitchen_beacon_1": -40}, true))

	g := NewGatherer(db, sunny(), nil, nil)
	snap, err := g.Gather(ctx)
	require.NoError(t, err)
	assert.NotZero(t, snap.FrameID)
	assert.Len(t, snap.Readings, 1)

	g.now = func() time.Time { return time.Now().Add(5 * time.Hour) }
	snap, err = g.Gather(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.FrameID)
	assert.Empty(t, snap.Readings)
	assert.False(t, snap.Motion)
	assert.ErrorIs(t, snap.Errors["readings"], ErrStale)

	// Repeated stale cycles never build confidence in the old room.
	engine := rtls.NewEngine(rtls.DefaultWindow, nil)
	for i := 0; i < 3; i++ {
		snap, err = g.Gather(ctx)
		require.NoError(t, err)
		est := engine.Process(snap.Readings)
		assert.Equal(t, rtls.UnknownRoom, est.Room)
		assert.Zero(t, engine.LocationConfidence())
	}
}

func TestGather_StaleBiometricsLeftOut(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-11 * time.Hour)
	require.NoError(t, db.InsertBiometricSample(ctx, model.BiometricSample{HeartRate: 70, ReadinessScore: 80, Timestamp: old}))

	sink := &audit.Recorder{}
	g := NewGatherer(db, sunny(), sink, nil)
	snap, err := g.Gather(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Biometrics)
	assert.ErrorIs(t, snap.Errors["biometrics"], ErrStale)
	assert.False(t, sink.Has(audit.CategoryBiometrics, "read"))

	g.SetMaxAges(MaxAges{})
	snap, err = g.Gather(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Biometrics)
	assert.Equal(t, 70, snap.Biometrics.HeartRate)
}

func TestGather_CanceledContext(t *testing.T) {
	db := openStore(t)
	g := NewGatherer(db, sunny(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Gather(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
