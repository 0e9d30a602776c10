package plugins

import (
	"time"

	"gitlab.com/Cacophony/Playlister/pkg/window"
	"gitlab.com/Cacophony/Playlister/plugins/common"
	"gitlab.com/Cacophony/Playlister/plugins/expiry"
	"go.uber.org/zap"
)

type Plugin interface {
	Name() string

	Interval() time.Duration

	Start(common.StartParameters) error

	Stop(common.StopParameters) error

	Run(run *common.Run) error
}

var (
	PluginList = []Plugin{
		expiry.New(window.Weekly),
		expiry.New(window.Monthly),
		expiry.New(window.Yearly),
	}
)

// StartPlugins starts all plugins and returns the ones that started
func StartPlugins(
	logger *zap.Logger,
	params common.StartParameters,
) []Plugin {
	var started []Plugin // nolint: prealloc

	var err error
	for _, plugin := range PluginList {
		params.Logger = logger.With(zap.String("plugin", plugin.Name()))

		err = plugin.Start(params)
		if err != nil {
			logger.Error("failed to start plugin",
				zap.String("plugin", plugin.Name()),
				zap.Error(err),
			)
			continue
		}

		started = append(started, plugin)
	}

	return started
}

func StopPlugins(
	logger *zap.Logger,
	params common.StopParameters,
	plugins []Plugin,
) {
	var err error
	for _, plugin := range plugins {
		params.Logger = logger.With(zap.String("plugin", plugin.Name()))

		err = plugin.Stop(params)
		if err != nil {
			logger.Error("failed to stop plugin",
				zap.String("plugin", plugin.Name()),
				zap.Error(err),
			)
		}
	}
}
