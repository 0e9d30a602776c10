package scheduler

import (
	"github.com/pkg/errors"
)

// ErrUnknownPlugin is returned when triggering a plugin that is not scheduled
var ErrUnknownPlugin = errors.New("unknown plugin")
