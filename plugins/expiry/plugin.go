// Package expiry removes items from the window playlists once they left their window.
package expiry

import (
	"time"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/metrics"
	"gitlab.com/Cacophony/Playlister/plugins/common"
	"gitlab.com/Cacophony/Playlister/pkg/window"
	"go.uber.org/zap"
)

const defaultInterval = 1 * time.Hour

// Plugin sweeps one window, every window has its own plugin and lock
type Plugin struct {
	kind        window.Kind
	logger      *zap.Logger
	interval    time.Duration
	coordinator Coordinator
	sweeper     *Sweeper
	now         func() time.Time
}

func New(kind window.Kind) *Plugin {
	return &Plugin{
		kind:     kind,
		interval: defaultInterval,
		now:      time.Now,
	}
}

func (p *Plugin) Name() string {
	return "expiry-" + p.kind.String()
}

func (p *Plugin) Interval() time.Duration {
	return p.interval
}

func (p *Plugin) Start(params common.StartParameters) error {
	if !p.kind.Valid() {
		return errors.Errorf("unknown window %q", p.kind)
	}
	if params.Records == nil || params.Playlists == nil {
		return errors.New("expiry needs the record and playlist stores")
	}

	p.logger = params.Logger
	if params.ExpiryInterval > 0 {
		p.interval = params.ExpiryInterval
	}
	p.coordinator = newRedisCoordinator(params.Redis, p.kind)
	p.sweeper = NewSweeper(p.kind, params.Records, params.Playlists, params.ExpiryBatchSize)

	return nil
}

func (p *Plugin) Stop(params common.StopParameters) error {
	return nil
}

func (p *Plugin) Run(run *common.Run) (err error) {
	run.Logger().Info("run started")

	unlock, locked, err := p.coordinator.Lock(run.Context())
	if err != nil {
		return errors.Wrap(err, "error acquiring lock")
	}
	if !locked {
		run.Logger().Info("skipped run, another run is already in progress")
		return nil
	}
	defer unlock()

	shouldRun, err := p.shouldRun()
	if err != nil {
		return errors.Wrap(err, "error finding out if run should happen")
	}
	if !shouldRun {
		run.Logger().Debug("skipped run, previous run recently enough",
			zap.Duration("interval", p.interval),
		)
		return nil
	}

	started := p.now()
	report, err := p.sweeper.Sweep(run.Context(), run.Logger().With(zap.String("window", p.kind.String())), started)
	metrics.SweepDuration.WithLabelValues(p.kind.String()).Observe(time.Since(started).Seconds())
	if err != nil {
		return errors.Wrap(err, "error sweeping expired items")
	}

	run.Logger().Info("swept expired items",
		zap.Int("removed", report.Removed),
		zap.Int("absent", report.Absent),
		zap.Int("failed", report.Failed),
	)

	err = p.coordinator.SetRun(started)
	if err != nil {
		return errors.Wrap(err, "error setting last run time")
	}

	run.Logger().Debug("completed",
		zap.Duration("took", time.Since(run.Launch)),
	)

	return nil
}

// shouldRun skips sweeps right after one finished, f.e. after a restart
func (p *Plugin) shouldRun() (bool, error) {
	lastRun, err := p.coordinator.LastRun()
	if err != nil {
		return false, err
	}

	return p.now().Sub(lastRun) >= p.interval/2, nil
}
