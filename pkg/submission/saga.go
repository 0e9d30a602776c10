// Package submission adds posted videos to a channel's playlists and records them.
//
// A submission either ends up in the main playlist, every configured window
// playlist and the submissions table, or leaves none of them changed: items
// added before a failing step are removed again in reverse order.
package submission

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/metrics"
	"gitlab.com/Cacophony/Playlister/pkg/eligibility"
	"gitlab.com/Cacophony/Playlister/pkg/extract"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	compensationTimeout = 30 * time.Second
	// a binding can change while waiting for its playlist lock
	maxBindingAttempts = 3
)

type Playlists interface {
	AddItem(ctx context.Context, playlistID, videoID string, recreate *playlist.Info) (playlist.AddResult, error)
	RemoveItem(ctx context.Context, playlistID, itemID string) (bool, error)
}

type Records interface {
	Binding(ctx context.Context, channelID string) (*records.ChannelBinding, error)
	ReplaceMainPlaylist(ctx context.Context, channelID, oldPlaylistID, newPlaylistID string) (bool, error)
	SubmissionByVideo(ctx context.Context, mainPlaylistID, videoID string) (*records.Submission, error)
	CreateSubmission(ctx context.Context, submission *records.Submission) error
}

type Eligibility interface {
	Check(ctx context.Context, guildID, playlistID, videoID, userID string) (eligibility.Verdict, error)
}

type Saga struct {
	logger    *zap.Logger
	playlists Playlists
	records   Records
	guard     Eligibility
	timeout   time.Duration

	locks  *keyedMutex
	halted atomic.Bool
}

func NewSaga(
	logger *zap.Logger,
	playlists Playlists,
	recordStore Records,
	guard Eligibility,
	timeout time.Duration,
) *Saga {
	return &Saga{
		logger:    logger,
		playlists: playlists,
		records:   recordStore,
		guard:     guard,
		timeout:   timeout,
		locks:     newKeyedMutex(),
	}
}

// added is a playlist item this run created, and has to remove on failure
type added struct {
	step       string
	playlistID string
	itemID     string
}

// Submit runs the submission. Errors never escape, they are part of the Outcome.
func (s *Saga) Submit(ctx context.Context, request Request) Outcome {
	logger := s.logger.With(
		zap.String("correlation_id", uuid.New().String()),
		zap.String("guild_id", request.GuildID),
		zap.String("channel_id", request.ChannelID),
		zap.String("message_id", request.MessageID),
		zap.String("video_id", request.VideoID),
	)

	outcome := s.submit(ctx, logger, request)

	metrics.Submissions.WithLabelValues(outcome.Status.String(), string(outcome.Reason)).Inc()

	switch outcome.Status {
	case Accepted:
		logger.Info("accepted submission",
			zap.String("playlist_id", outcome.Submission.MainPlaylistID),
		)
	case Rejected:
		logger.Debug("rejected submission",
			zap.String("reason", string(outcome.Reason)),
		)
	case Failed:
		var consistencyErr *ConsistencyError
		if errors.As(outcome.Err, &consistencyErr) && !consistencyErr.Compensated() {
			logger.Error("submission failed and could not be undone, playlists need attention",
				zap.String("reason", string(outcome.Reason)),
				zap.Error(outcome.Err),
			)
			break
		}

		logger.Warn("submission failed",
			zap.String("reason", string(outcome.Reason)),
			zap.Error(outcome.Err),
		)
	}

	return outcome
}

func (s *Saga) submit(ctx context.Context, logger *zap.Logger, request Request) Outcome {
	if s.Halted() {
		return failed(ReasonServiceUnavailable, ErrHalted)
	}

	if !extract.Valid(request.VideoID) {
		return rejected(ReasonInvalidVideoID)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	binding, err := s.records.Binding(ctx, request.ChannelID)
	if err != nil {
		return failed(ReasonPersistence, err)
	}
	if binding == nil {
		return rejected(ReasonChannelNotWatched)
	}

	verdict, err := s.guard.Check(ctx, request.GuildID, binding.MainPlaylistID, request.VideoID, request.SubmitterID)
	if err != nil {
		return failed(ReasonPolicyCheckFailed, err)
	}
	switch verdict {
	case eligibility.VideoBanned:
		return rejected(ReasonVideoBanned)
	case eligibility.UserBanned:
		return rejected(ReasonUserBanned)
	}

	for attempt := 0; attempt < maxBindingAttempts; attempt++ {
		unlock, err := s.locks.Lock(ctx, binding.MainPlaylistID)
		if err != nil {
			return failed(ReasonTimeout, errors.Wrap(err, "failure waiting for playlist lock"))
		}

		current, err := s.records.Binding(ctx, request.ChannelID)
		if err != nil {
			unlock()
			return failed(ReasonPersistence, err)
		}
		if current == nil {
			unlock()
			return rejected(ReasonChannelNotWatched)
		}
		if current.MainPlaylistID != binding.MainPlaylistID {
			// replaced while we were waiting, the new playlist has its own lock
			unlock()
			binding = current
			continue
		}

		outcome := s.run(ctx, logger, request, current)
		unlock()

		return outcome
	}

	return failed(ReasonRemoteFailure, errors.New("channel binding kept changing"))
}

// run executes the steps, the caller holds the lock for the main playlist
func (s *Saga) run(
	ctx context.Context,
	logger *zap.Logger,
	request Request,
	binding *records.ChannelBinding,
) Outcome {
	existing, err := s.records.SubmissionByVideo(ctx, binding.MainPlaylistID, request.VideoID)
	if err != nil {
		return failed(ReasonPersistence, err)
	}
	if existing != nil {
		if existing.MessageID == request.MessageID {
			// replayed message event
			return accepted(existing)
		}

		outcome := rejected(ReasonDuplicate)
		outcome.Submission = existing
		return outcome
	}

	var changes []added

	result, err := s.playlists.AddItem(ctx, binding.MainPlaylistID, request.VideoID, recreateInfo(binding))
	if err != nil {
		return s.abort(ctx, logger, "main", err, changes)
	}
	if !result.Duplicate {
		changes = append(changes, added{step: "main", playlistID: result.PlaylistID, itemID: result.ItemID})
	} else {
		logger.Info("adopting existing item of main playlist",
			zap.String("playlist_id", result.PlaylistID),
			zap.String("item_id", result.ItemID),
		)
	}

	if result.Recreated {
		replaced, err := s.records.ReplaceMainPlaylist(ctx, binding.ChannelID, binding.MainPlaylistID, result.PlaylistID)
		if err == nil && !replaced {
			err = ErrBindingChanged
		}
		if err != nil {
			return s.abort(ctx, logger, "replace_main_playlist", err, changes)
		}

		logger.Info("replaced main playlist of channel",
			zap.String("old_playlist_id", binding.MainPlaylistID),
			zap.String("playlist_id", result.PlaylistID),
		)
	}

	submission := &records.Submission{
		MainPlaylistID: result.PlaylistID,
		VideoID:        request.VideoID,
		MainItemID:     result.ItemID,
		GuildID:        request.GuildID,
		ChannelID:      request.ChannelID,
		SubmitterID:    request.SubmitterID,
		MessageID:      request.MessageID,
		SubmittedAt:    request.SubmittedAt.UTC(),
	}

	for _, kind := range window.Kinds {
		playlistID := windowPlaylist(binding, kind)
		if playlistID == "" {
			continue
		}

		// window playlists are never recreated, a missing one is an error
		result, err := s.playlists.AddItem(ctx, playlistID, request.VideoID, nil)
		if err != nil {
			return s.abort(ctx, logger, kind.String(), err, changes)
		}
		if !result.Duplicate {
			changes = append(changes, added{step: kind.String(), playlistID: playlistID, itemID: result.ItemID})
		}

		setWindowItem(submission, kind, result.ItemID)
	}

	err = s.records.CreateSubmission(ctx, submission)
	if err != nil {
		return s.abort(ctx, logger, "persist", err, changes)
	}

	return accepted(submission)
}

// abort undoes changes and translates the failure of step into an outcome
func (s *Saga) abort(ctx context.Context, logger *zap.Logger, step string, cause error, changes []added) Outcome {
	var status Status
	var reason Reason

	switch {
	case playlist.IsFatal(cause):
		status, reason = Failed, ReasonRemoteFatal
		s.halt(logger, cause)
	case errors.Is(cause, playlist.ErrVideoNotFound):
		status, reason = Rejected, ReasonVideoUnavailable
	case errors.Is(cause, records.ErrDuplicateSubmission):
		status, reason = Rejected, ReasonDuplicate
	case step == "persist" || step == "replace_main_playlist":
		status, reason = Failed, ReasonPersistenceAfterRemoteSuccess
	case errors.Is(cause, context.DeadlineExceeded):
		status, reason = Failed, ReasonTimeout
	default:
		status, reason = Failed, ReasonRemoteFailure
	}

	err := cause
	if len(changes) > 0 {
		err = &ConsistencyError{
			Step:         step,
			Cause:        cause,
			Compensation: s.compensate(ctx, logger, changes),
		}
	}

	return Outcome{
		Status: status,
		Reason: reason,
		Err:    err,
	}
}

// compensate removes the changes, most recent first. It keeps going after a
// failed removal and returns every failure.
func (s *Saga) compensate(ctx context.Context, logger *zap.Logger, changes []added) error {
	// the submission context may be what failed
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var result error
	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]

		removed, err := s.playlists.RemoveItem(ctx, change.playlistID, change.itemID)
		if err != nil {
			result = multierr.Append(result, errors.Wrapf(err, "failure removing %s item %s", change.step, change.itemID))
			continue
		}

		logger.Debug("compensated playlist item",
			zap.String("step", change.step),
			zap.String("playlist_id", change.playlistID),
			zap.String("item_id", change.itemID),
			zap.Bool("removed", removed),
		)
	}

	if result != nil {
		metrics.Compensations.WithLabelValues("failure").Inc()
	} else {
		metrics.Compensations.WithLabelValues("success").Inc()
	}

	return result
}

func (s *Saga) halt(logger *zap.Logger, err error) {
	if s.halted.CompareAndSwap(false, true) {
		logger.Error("halting submissions, playlist store is unusable until resumed",
			zap.Error(err),
		)
	}
}

// Halted reports whether submissions are refused after a fatal playlist store error
func (s *Saga) Halted() bool {
	return s.halted.Load()
}

// Resume accepts submissions again, it returns false if they were not halted
func (s *Saga) Resume() bool {
	resumed := s.halted.CompareAndSwap(true, false)
	if resumed {
		s.logger.Info("resumed submissions")
	}

	return resumed
}

// LockPlaylist serialises changes to a main playlist with running submissions
func (s *Saga) LockPlaylist(ctx context.Context, playlistID string) (func(), error) {
	return s.locks.Lock(ctx, playlistID)
}

func recreateInfo(binding *records.ChannelBinding) *playlist.Info {
	title := binding.Title
	if title == "" {
		title = "Channel " + binding.ChannelID
	}

	return &playlist.Info{
		Title:       title,
		Description: "All videos shared in " + title,
	}
}

func windowPlaylist(binding *records.ChannelBinding, kind window.Kind) string {
	switch kind {
	case window.Weekly:
		return binding.WeeklyPlaylistID
	case window.Monthly:
		return binding.MonthlyPlaylistID
	case window.Yearly:
		return binding.YearlyPlaylistID
	}

	return ""
}

func setWindowItem(submission *records.Submission, kind window.Kind, itemID string) {
	switch kind {
	case window.Weekly:
		submission.WeeklyItemID = &itemID
	case window.Monthly:
		submission.MonthlyItemID = &itemID
	case window.Yearly:
		submission.YearlyItemID = &itemID
	}
}
