// Package lifecycle binds channels to their playlists and cleans up after
// deleted channels and deleted submissions.
//
// Every change to a main playlist and its submissions happens under the
// submission lock of that playlist.
package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/metrics"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Records interface {
	Binding(ctx context.Context, channelID string) (*records.ChannelBinding, error)
	CreateBinding(ctx context.Context, binding *records.ChannelBinding) error
	DeleteBinding(ctx context.Context, channelID string) (bool, error)
	SubmissionByMessage(ctx context.Context, messageID string) (*records.Submission, error)
	DeleteSubmission(ctx context.Context, mainPlaylistID, messageID string) (bool, error)
	DeleteSubmissionsByPlaylist(ctx context.Context, mainPlaylistID string) (int64, error)
}

type Playlists interface {
	NewPlaylist(ctx context.Context, info playlist.Info) (string, error)
	DeletePlaylist(ctx context.Context, playlistID string) (bool, error)
	RemoveItem(ctx context.Context, playlistID, itemID string) (bool, error)
	ListItems(playlistID string) *playlist.ItemIterator
}

// Locker serializes work on a main playlist with running submissions
type Locker interface {
	LockPlaylist(ctx context.Context, playlistID string) (func(), error)
}

// Result describes what was cleaned up for a channel
type Result struct {
	Bound              bool
	PlaylistID         string
	PlaylistDeleted    bool
	SubmissionsDeleted int64
}

type Reconciler struct {
	logger    *zap.Logger
	records   Records
	playlists Playlists
	locker    Locker
}

func NewReconciler(logger *zap.Logger, recordStore Records, playlists Playlists, locker Locker) *Reconciler {
	return &Reconciler{
		logger:    logger,
		records:   recordStore,
		playlists: playlists,
		locker:    locker,
	}
}

// ChannelDeleted removes the binding of the channel. With deletePlaylist the
// main playlist is deleted as well, and its submissions with it. Window
// playlists are kept.
func (r *Reconciler) ChannelDeleted(ctx context.Context, channelID string, deletePlaylist bool) (Result, error) {
	var result Result

	binding, err := r.records.Binding(ctx, channelID)
	if err != nil {
		metrics.ChannelReconciliations.WithLabelValues("failure").Inc()
		return result, err
	}
	if binding == nil {
		return result, nil
	}
	result.Bound = true
	result.PlaylistID = binding.MainPlaylistID

	logger := r.logger.With(
		zap.String("guild_id", binding.GuildID),
		zap.String("channel_id", channelID),
		zap.String("playlist_id", binding.MainPlaylistID),
	)

	unlock, err := r.locker.LockPlaylist(ctx, binding.MainPlaylistID)
	if err != nil {
		metrics.ChannelReconciliations.WithLabelValues("failure").Inc()
		return result, errors.Wrap(err, "failure waiting for playlist lock")
	}
	defer unlock()

	_, err = r.records.DeleteBinding(ctx, channelID)
	if err != nil {
		metrics.ChannelReconciliations.WithLabelValues("failure").Inc()
		return result, err
	}

	if deletePlaylist {
		result.PlaylistDeleted, err = r.playlists.DeletePlaylist(ctx, binding.MainPlaylistID)
		if err != nil {
			metrics.ChannelReconciliations.WithLabelValues("failure").Inc()
			return result, errors.Wrap(err, "failure deleting main playlist")
		}

		// the playlist is gone either way now
		result.SubmissionsDeleted, err = r.records.DeleteSubmissionsByPlaylist(ctx, binding.MainPlaylistID)
		if err != nil {
			metrics.ChannelReconciliations.WithLabelValues("failure").Inc()
			return result, err
		}
	}

	metrics.ChannelReconciliations.WithLabelValues("success").Inc()

	logger.Info("removed binding of deleted channel",
		zap.Bool("playlist_deleted", result.PlaylistDeleted),
		zap.Int64("submissions_deleted", result.SubmissionsDeleted),
	)

	return result, nil
}

// SubmissionDeleted removes the submission posted with the message from every
// playlist, then deletes its record. It returns false if the message was no submission.
// The record is kept if an item could not be removed.
func (r *Reconciler) SubmissionDeleted(ctx context.Context, channelID, messageID string) (bool, error) {
	binding, err := r.records.Binding(ctx, channelID)
	if err != nil || binding == nil {
		return false, err
	}

	submission, err := r.records.SubmissionByMessage(ctx, messageID)
	if err != nil || submission == nil {
		return false, err
	}
	if submission.ChannelID != channelID {
		return false, nil
	}

	unlock, err := r.locker.LockPlaylist(ctx, submission.MainPlaylistID)
	if err != nil {
		return false, errors.Wrap(err, "failure waiting for playlist lock")
	}
	defer unlock()

	items := map[string]*string{
		submission.MainPlaylistID: &submission.MainItemID,
	}
	for _, kind := range window.Kinds {
		playlistID, itemID := windowItem(binding, submission, kind)
		if playlistID == "" || itemID == nil {
			continue
		}
		items[playlistID] = itemID
	}

	var removeErr error
	for playlistID, itemID := range items {
		_, err = r.playlists.RemoveItem(ctx, playlistID, *itemID)
		if err != nil {
			removeErr = multierr.Append(removeErr, errors.Wrapf(err, "failure removing item %s", *itemID))
		}
	}
	if removeErr != nil {
		return false, removeErr
	}

	deleted, err := r.records.DeleteSubmission(ctx, submission.MainPlaylistID, messageID)
	if err != nil {
		return false, err
	}

	r.logger.Info("removed deleted submission",
		zap.String("channel_id", channelID),
		zap.String("message_id", messageID),
		zap.String("video_id", submission.VideoID),
		zap.String("playlist_id", submission.MainPlaylistID),
	)

	return deleted, nil
}

func windowItem(binding *records.ChannelBinding, submission *records.Submission, kind window.Kind) (string, *string) {
	switch kind {
	case window.Weekly:
		return binding.WeeklyPlaylistID, submission.WeeklyItemID
	case window.Monthly:
		return binding.MonthlyPlaylistID, submission.MonthlyItemID
	case window.Yearly:
		return binding.YearlyPlaylistID, submission.YearlyItemID
	}

	return "", nil
}
