package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.com/Cacophony/Playlister/plugins"
	"gitlab.com/Cacophony/Playlister/plugins/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Status describes the runs of a plugin
type Status struct {
	Plugin     string        `json:"plugin"`
	Interval   time.Duration `json:"interval"`
	Running    bool          `json:"running"`
	Runs       int           `json:"runs"`
	LastStart  time.Time     `json:"last_start,omitempty"`
	LastFinish time.Time     `json:"last_finish,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}

type Scheduler struct {
	logger  *zap.Logger
	plugins []plugins.Plugin
	group   singleflight.Group

	mu     sync.RWMutex
	status map[string]*Status

	// OnSuccess is called after every successful run
	OnSuccess func(plugin string)
}

func NewScheduler(
	logger *zap.Logger,
	pluginList []plugins.Plugin,
) *Scheduler {
	status := make(map[string]*Status, len(pluginList))
	for _, plugin := range pluginList {
		status[plugin.Name()] = &Status{
			Plugin:   plugin.Name(),
			Interval: plugin.Interval(),
		}
	}

	return &Scheduler{
		logger:  logger,
		plugins: pluginList,
		status:  status,
	}
}

// Start runs every plugin at its interval, plugins run independently of each other.
// It blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, plugin := range s.plugins {
		plugin := plugin

		group.Go(func() error {
			s.loop(ctx, plugin)
			return nil
		})
	}

	return group.Wait()
}

func (s *Scheduler) loop(ctx context.Context, plugin plugins.Plugin) {
	interval := plugin.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Trigger(ctx, plugin.Name()) // nolint: errcheck

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Trigger runs the plugin now. A trigger while the plugin is running joins
// that run instead of starting another one.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	var plugin plugins.Plugin
	for _, candidate := range s.plugins {
		if candidate.Name() == name {
			plugin = candidate
			break
		}
	}
	if plugin == nil {
		return ErrUnknownPlugin
	}

	_, err, _ := s.group.Do(name, func() (interface{}, error) {
		return nil, s.run(ctx, plugin)
	})
	return err
}

func (s *Scheduler) run(ctx context.Context, plugin plugins.Plugin) error {
	run := common.NewRun(plugin.Name())

	logger := s.logger.With(
		zap.String("plugin", plugin.Name()),
		zap.String("launch", run.Launch.String()),
	)

	run.WithContext(ctx)
	run.WithLogger(logger)

	s.update(plugin.Name(), func(status *Status) {
		status.Running = true
		status.LastStart = run.Launch
	})

	err := plugin.Run(run)
	if err != nil {
		run.Except(err)
	}

	s.update(plugin.Name(), func(status *Status) {
		status.Running = false
		status.Runs++
		status.LastFinish = time.Now()
		status.LastError = ""
		if err != nil {
			status.LastError = err.Error()
		}
	})

	logger.Debug("run finished",
		zap.Duration("took", run.Elapsed()),
		zap.Bool("failed", err != nil),
	)

	if err == nil && s.OnSuccess != nil {
		s.OnSuccess(plugin.Name())
	}

	return err
}

func (s *Scheduler) update(name string, fn func(status *Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.status[name])
}

// Status returns the status of all plugins, sorted by name
func (s *Scheduler) Status() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Status, 0, len(s.status))
	for _, status := range s.status {
		result = append(result, *status)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Plugin < result[j].Plugin
	})

	return result
}
