package playlist

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	maxTitleLength       = 150
	maxDescriptionLength = 5000
	pageSize             = 50
	videoKind            = "youtube#video"
)

type Config struct {
	ClientID     string `envconfig:"YOUTUBE_CLIENT_ID"`
	ClientSecret string `envconfig:"YOUTUBE_CLIENT_SECRET"`
	RefreshToken string `envconfig:"YOUTUBE_REFRESH_TOKEN"`
	Privacy      string `envconfig:"YOUTUBE_PLAYLIST_PRIVACY" default:"public"`
}

// YouTube stores playlists using the YouTube Data API
type YouTube struct {
	logger  *zap.Logger
	service *youtube.Service
	privacy string
}

// NewYouTube authenticates against YouTube and returns a ready to use store.
// It fails with ErrNotAuthenticated if no access token can be obtained.
func NewYouTube(ctx context.Context, logger *zap.Logger, config *Config) (*YouTube, error) {
	if config.RefreshToken == "" {
		return nil, errors.WithMessage(ErrNotAuthenticated, "no refresh token configured")
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeScope},
	}
	tokenSource := oauth2.ReuseTokenSource(nil, oauthConfig.TokenSource(ctx, &oauth2.Token{
		RefreshToken: config.RefreshToken,
	}))

	_, err := tokenSource.Token()
	if err != nil {
		return nil, errors.WithMessage(ErrNotAuthenticated, err.Error())
	}

	service, err := youtube.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialise youtube service")
	}

	return newYouTube(logger, service, config.Privacy), nil
}

func newYouTube(logger *zap.Logger, service *youtube.Service, privacy string) *YouTube {
	if privacy == "" {
		privacy = "public"
	}

	return &YouTube{
		logger:  logger,
		service: service,
		privacy: privacy,
	}
}

// AddItem adds the video to the playlist. If the video is part of the
// playlist already, the existing item is returned as a duplicate.
// If the playlist does not exist anymore and recreate is set, a new playlist
// is created and the video is added to it instead.
func (y *YouTube) AddItem(ctx context.Context, playlistID, videoID string, recreate *Info) (AddResult, error) {
	result := AddResult{
		PlaylistID: playlistID,
	}

	existing, err := y.findItem(ctx, playlistID, videoID)
	switch {
	case errors.Is(err, ErrPlaylistNotFound) && recreate != nil:
		newPlaylistID, err := y.NewPlaylist(ctx, *recreate)
		if err != nil {
			return result, errors.Wrap(err, "failure recreating playlist")
		}

		y.logger.Info("recreated missing playlist",
			zap.String("old_playlist_id", playlistID),
			zap.String("playlist_id", newPlaylistID),
		)

		result.PlaylistID = newPlaylistID
		result.Recreated = true
	case err != nil:
		return result, err
	case existing != nil:
		result.ItemID = existing.ID
		result.Duplicate = true
		return result, nil
	}

	item, err := y.service.PlaylistItems.Insert(
		[]string{"snippet"},
		&youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: result.PlaylistID,
				ResourceId: &youtube.ResourceId{
					Kind:    videoKind,
					VideoId: videoID,
				},
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return result, classify(err, "failure inserting playlist item")
	}
	if item.Id == "" {
		return result, errors.New("received playlist item without id")
	}

	result.ItemID = item.Id
	return result, nil
}

// RemoveItem removes the item from the playlist, it returns false if the item was gone already
func (y *YouTube) RemoveItem(ctx context.Context, playlistID, itemID string) (bool, error) {
	err := y.service.PlaylistItems.Delete(itemID).Context(ctx).Do()
	if err != nil {
		err = classify(err, "failure removing item "+itemID+" from playlist "+playlistID)
		if errors.Is(err, ErrItemNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// ListItems lists all items of the playlist, pages are requested while iterating
func (y *YouTube) ListItems(playlistID string) *ItemIterator {
	return NewItemIterator(func(ctx context.Context, pageToken string) ([]Item, string, error) {
		call := y.service.PlaylistItems.List([]string{"id", "snippet"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, "", classify(err, "failure listing playlist items")
		}

		items := make([]Item, len(resp.Items))
		for i, item := range resp.Items {
			items[i] = toItem(item)
		}

		return items, resp.NextPageToken, nil
	})
}

func (y *YouTube) NewPlaylist(ctx context.Context, info Info) (string, error) {
	playlist, err := y.service.Playlists.Insert(
		[]string{"snippet", "status"},
		&youtube.Playlist{
			Snippet: &youtube.PlaylistSnippet{
				Title:       truncate(info.Title, maxTitleLength),
				Description: truncate(info.Description, maxDescriptionLength),
			},
			Status: &youtube.PlaylistStatus{
				PrivacyStatus: y.privacy,
			},
		},
	).Context(ctx).Do()
	if err != nil {
		return "", classify(err, "failure creating playlist")
	}
	if playlist.Id == "" {
		return "", errors.New("received playlist without id")
	}

	return playlist.Id, nil
}

// DeletePlaylist deletes the playlist, it returns false if the playlist was gone already
func (y *YouTube) DeletePlaylist(ctx context.Context, playlistID string) (bool, error) {
	err := y.service.Playlists.Delete(playlistID).Context(ctx).Do()
	if err != nil {
		err = classify(err, "failure deleting playlist "+playlistID)
		if errors.Is(err, ErrPlaylistNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (y *YouTube) findItem(ctx context.Context, playlistID, videoID string) (*Item, error) {
	resp, err := y.service.PlaylistItems.List([]string{"id", "snippet"}).
		PlaylistId(playlistID).
		VideoId(videoID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, "failure looking up playlist item")
	}

	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := toItem(resp.Items[0])
	return &item, nil
}

func toItem(item *youtube.PlaylistItem) Item {
	result := Item{
		ID: item.Id,
	}

	if item.Snippet != nil {
		result.Position = item.Snippet.Position
		if item.Snippet.ResourceId != nil {
			result.VideoID = item.Snippet.ResourceId.VideoId
		}
	}

	return result
}

// classify maps google API errors to the errors of this package
func classify(err error, message string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				return errors.WithMessage(ErrQuotaExceeded, message+": "+apiErr.Message)
			case "authError":
				return errors.WithMessage(ErrAuthInvalid, message+": "+apiErr.Message)
			case "playlistNotFound":
				return errors.WithMessage(ErrPlaylistNotFound, message)
			case "playlistItemNotFound":
				return errors.WithMessage(ErrItemNotFound, message)
			case "videoNotFound":
				return errors.WithMessage(ErrVideoNotFound, message)
			}
		}

		if apiErr.Code == http.StatusUnauthorized {
			return errors.WithMessage(ErrAuthInvalid, message+": "+apiErr.Message)
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return errors.WithMessage(ErrAuthInvalid, message+": "+retrieveErr.Error())
	}

	return errors.Wrap(err, message)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}

	return string(runes[:limit])
}
