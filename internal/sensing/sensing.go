// Package sensing joins the per-cycle inputs (biometrics, beacon readings,
// occupancy and weather) into one immutable Snapshot. The fetches run
// concurrently and the snapshot is only handed out after all of them have
// finished, so a consumer never sees a partially updated context.
package sensing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/homepilot/internal/audit"
	"github.com/blackwell-systems/homepilot/internal/model"
	"github.com/blackwell-systems/homepilot/internal/store"
	"github.com/blackwell-systems/homepilot/internal/weather"
)

// ErrContextUnavailable marks weather or occupancy that could not be fetched.
// Tasks gated on that context are excluded from planning.
var ErrContextUnavailable = errors.New("context unavailable")

// ErrStale marks a biometric sample or beacon frame older than its bound.
var ErrStale = errors.New("stale reading")

// Default staleness bounds. Beacon frames go stale quickly because a frame
// describes where the user is right now.
const (
	DefaultFrameMaxAge      = 2 * time.Minute
	DefaultBiometricsMaxAge = 2 * time.Hour
	DefaultOccupancyMaxAge  = 30 * time.Minute
)

// MaxAges bounds how old each input may be. Zero disables a check.
type MaxAges struct {
	Frame      time.Duration
	Biometrics time.Duration
	Occupancy  time.Duration
}

// DefaultMaxAges returns the default staleness bounds.
func DefaultMaxAges() MaxAges {
	return MaxAges{
		Frame:      DefaultFrameMaxAge,
		Biometrics: DefaultBiometricsMaxAge,
		Occupancy:  DefaultOccupancyMaxAge,
	}
}

// Source is the sensor history the gatherer reads from; *store.DB satisfies
// it.
type Source interface {
	LatestBiometricSample(ctx context.Context) (model.BiometricSample, error)
	LatestRSSIFrame(ctx context.Context) (*store.RSSIFrame, error)
	LatestOccupancy(ctx context.Context) (*store.OccupancyReport, error)
}

// Snapshot is the joined context for one cycle. Nil pointers mean the value
// was unavailable; Errors holds the reason keyed by input name. FrameID is
// the stored id of the beacon frame behind Readings, 0 when there was none.
type Snapshot struct {
	TakenAt    time.Time
	FrameID    int64
	Biometrics *model.BiometricSample
	Readings   model.SignalReading
	Motion     bool
	Occupancy  *model.Occupancy
	Weather    *model.Weather
	Errors     map[string]error
}

// Gatherer fetches a Snapshot.
type Gatherer struct {
	source  Source
	weather weather.Provider
	sink    audit.Sink
	logger  *slog.Logger
	maxAge  MaxAges
	now     func() time.Time
}

// NewGatherer creates a gatherer. wp may be nil when no weather provider is
// configured.
func NewGatherer(source Source, wp weather.Provider, sink audit.Sink, logger *slog.Logger) *Gatherer {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatherer{
		source:  source,
		weather: wp,
		sink:    sink,
		logger:  logger.With("component", "sensing"),
		maxAge:  DefaultMaxAges(),
		now:     time.Now,
	}
}

// SetMaxAges replaces the staleness bounds.
func (g *Gatherer) SetMaxAges(m MaxAges) { g.maxAge = m }

// SetOccupancyMaxAge changes the staleness bound for occupancy reports.
// Zero disables the check.
func (g *Gatherer) SetOccupancyMaxAge(d time.Duration) { g.maxAge.Occupancy = d }

// stale reports whether a reading taken at t is older than limit.
func (g *Gatherer) stale(t time.Time, limit time.Duration) bool {
	return limit > 0 && g.now().Sub(t) > limit
}

// Gather fetches every input concurrently. It only fails when ctx is done;
// individual input failures are recorded in Snapshot.Errors.
func (g *Gatherer) Gather(ctx context.Context) (Snapshot, error) {
	var (
		bio       *model.BiometricSample
		frame     *store.RSSIFrame
		occupancy *model.Occupancy
		current   *model.Weather
		errs      [4]error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		b, err := g.source.LatestBiometricSample(egCtx)
		if err != nil {
			errs[0] = err
			return nil
		}
		if g.stale(b.Timestamp, g.maxAge.Biometrics) {
			errs[0] = fmt.Errorf("%w: biometric sample from %s", ErrStale, b.Timestamp.Format(time.RFC3339))
			return nil
		}
		bio = &b
		return nil
	})
	eg.Go(func() error {
		f, err := g.source.LatestRSSIFrame(egCtx)
		if err != nil {
			errs[1] = err
			return nil
		}
		if g.stale(f.TakenAt, g.maxAge.Frame) {
			errs[1] = fmt.Errorf("%w: beacon frame from %s", ErrStale, f.TakenAt.Format(time.RFC3339))
			return nil
		}
		frame = f
		return nil
	})
	eg.Go(func() error {
		o, err := g.occupancy(egCtx)
		if err != nil {
			errs[2] = err
			return nil
		}
		occupancy = o
		return nil
	})
	eg.Go(func() error {
		w, err := g.currentWeather(egCtx)
		if err != nil {
			errs[3] = err
			return nil
		}
		current = w
		return nil
	})
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		TakenAt:    g.now(),
		Biometrics: bio,
		Readings:   model.SignalReading{},
		Occupancy:  occupancy,
		Weather:    current,
		Errors:     make(map[string]error),
	}
	if frame != nil {
		snap.FrameID = frame.ID
		snap.Readings = frame.Readings
		snap.Motion = frame.Motion
	}
	for i, name := range []string{"biometrics", "readings", "occupancy", "weather"} {
		if errs[i] != nil {
			snap.Errors[name] = errs[i]
			g.logger.Debug("input unavailable", "input", name, "error", errs[i])
		}
	}

	if bio != nil {
		g.sink.Log(audit.CategoryBiometrics, "read", map[string]any{
			"purpose":   "state classification and energy budget",
			"timestamp": bio.Timestamp,
		})
	}
	if occupancy == nil || current == nil {
		g.sink.Log(audit.CategoryContext, "unavailable", map[string]any{
			"occupancy": occupancy != nil,
			"weather":   current != nil,
		})
	}
	return snap, nil
}

func (g *Gatherer) occupancy(ctx context.Context) (*model.Occupancy, error) {
	r, err := g.source.LatestOccupancy(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: occupancy: %w", ErrContextUnavailable, err)
	}
	if g.stale(r.TakenAt, g.maxAge.Occupancy) {
		return nil, fmt.Errorf("%w: occupancy report from %s is stale", ErrContextUnavailable, r.TakenAt.Format(time.RFC3339))
	}
	o := r.Occupancy
	return &o, nil
}

func (g *Gatherer) currentWeather(ctx context.Context) (*model.Weather, error) {
	if g.weather == nil {
		return nil, fmt.Errorf("%w: no weather provider configured", ErrContextUnavailable)
	}
	w, err := g.weather.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weather: %w", ErrContextUnavailable, err)
	}
	return &w, nil
}
