package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrChannelNotBound is returned for channels without binding
	ErrChannelNotBound = errors.New("channel is not bound")
	// ErrInvalidBindRequest is returned if guild, channel or title are missing
	ErrInvalidBindRequest = errors.New("guild, channel and title are required")
)

// BindRequest describes a channel to watch. With SkipWindows the channel
// only gets a main playlist.
type BindRequest struct {
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title"`
	AddedBy     string `json:"added_by"`
	NoChatter   bool   `json:"no_chatter"`
	SkipWindows bool   `json:"skip_windows"`
}

// BindChannel creates the playlists of the channel and binds them to it.
// Playlists created before a failure are deleted again.
func (r *Reconciler) BindChannel(ctx context.Context, request BindRequest) (*records.ChannelBinding, error) {
	if request.GuildID == "" || request.ChannelID == "" || request.Title == "" {
		return nil, ErrInvalidBindRequest
	}

	existing, err := r.records.Binding(ctx, request.ChannelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, records.ErrBindingExists
	}

	logger := r.logger.With(
		zap.String("guild_id", request.GuildID),
		zap.String("channel_id", request.ChannelID),
	)

	binding := &records.ChannelBinding{
		GuildID:   request.GuildID,
		ChannelID: request.ChannelID,
		Title:     request.Title,
		AddedBy:   request.AddedBy,
		NoChatter: request.NoChatter,
	}

	var created []string

	binding.MainPlaylistID, err = r.playlists.NewPlaylist(ctx, playlist.Info{
		Title:       request.Title,
		Description: "All videos shared in " + request.Title,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failure creating main playlist")
	}
	created = append(created, binding.MainPlaylistID)

	if !request.SkipWindows {
		for _, kind := range window.Kinds {
			playlistID, err := r.playlists.NewPlaylist(ctx, playlist.Info{
				Title:       request.Title + " (" + kind.String() + ")",
				Description: "Videos shared in " + request.Title + ", rotated " + kind.String(),
			})
			if err != nil {
				return nil, r.unbind(ctx, logger, created, errors.Wrapf(err, "failure creating %s playlist", kind))
			}
			created = append(created, playlistID)

			switch kind {
			case window.Weekly:
				binding.WeeklyPlaylistID = playlistID
			case window.Monthly:
				binding.MonthlyPlaylistID = playlistID
			case window.Yearly:
				binding.YearlyPlaylistID = playlistID
			}
		}
	}

	err = r.records.CreateBinding(ctx, binding)
	if err != nil {
		return nil, r.unbind(ctx, logger, created, err)
	}

	logger.Info("bound channel",
		zap.String("playlist_id", binding.MainPlaylistID),
		zap.Strings("playlists", created),
	)

	return binding, nil
}

// unbind deletes the created playlists and returns cause together with deletion failures
func (r *Reconciler) unbind(ctx context.Context, logger *zap.Logger, created []string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	err := cause
	for i := len(created) - 1; i >= 0; i-- {
		_, deleteErr := r.playlists.DeletePlaylist(ctx, created[i])
		if deleteErr != nil {
			logger.Error("failure deleting playlist of failed binding",
				zap.String("playlist_id", created[i]),
				zap.Error(deleteErr),
			)
			err = multierr.Append(err, deleteErr)
		}
	}

	return err
}

// ChannelItems returns up to limit items of the main playlist of the channel
func (r *Reconciler) ChannelItems(ctx context.Context, channelID string, limit int) ([]playlist.Item, error) {
	binding, err := r.records.Binding(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, ErrChannelNotBound
	}

	var items []playlist.Item

	it := r.playlists.ListItems(binding.MainPlaylistID)
	for (limit <= 0 || len(items) < limit) && it.Next(ctx) {
		items = append(items, it.Item())
	}

	return items, it.Err()
}
