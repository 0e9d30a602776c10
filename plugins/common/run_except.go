package common

import (
	"context"

	"github.com/bwmarrin/discordgo"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (r *Run) Except(err error) {
	if err == nil {
		return
	}

	doLog := true

	if ignoreError(err) {
		doLog = false
	}

	if doLog {
		r.Logger().Error("error occurred while executing run", zap.Error(err))

		if raven.DefaultClient != nil {
			raven.CaptureError(
				err,
				map[string]string{
					"plugin": r.Plugin,
					"launch": r.Launch.String(),
				},
			)
		}
	}
}

func ignoreError(err error) bool {
	if err == nil {
		return true
	}

	// discord permission errors
	var errD *discordgo.RESTError
	if errors.As(err, &errD) && errD != nil && errD.Message != nil {
		if errD.Message.Code == discordgo.ErrCodeMissingPermissions ||
			errD.Message.Code == discordgo.ErrCodeMissingAccess ||
			errD.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser ||
			errD.Message.Code == discordgo.ErrCodeUnknownMessage {
			return true
		}
	}

	// shutdown
	if errors.Is(err, context.Canceled) {
		return true
	}

	return false
}
