// Package playlist manages the remote YouTube playlists a channel is bound to.
package playlist

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotAuthenticated is returned when no usable credentials could be obtained at startup
	ErrNotAuthenticated = errors.New("playlist store is not authenticated")
	// ErrAuthInvalid is returned when the remote rejected our credentials
	ErrAuthInvalid = errors.New("playlist store credentials are invalid")
	// ErrQuotaExceeded is returned when the remote quota is used up
	ErrQuotaExceeded = errors.New("playlist store quota exceeded")

	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrItemNotFound     = errors.New("playlist item not found")
	ErrVideoNotFound    = errors.New("video not found")
)

// IsFatal reports whether err means every following remote call will fail as well
func IsFatal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrAuthInvalid) ||
		errors.Is(err, ErrNotAuthenticated)
}

// Info describes a playlist to create
type Info struct {
	Title       string
	Description string
}

// Item is an entry of a playlist
type Item struct {
	ID       string
	VideoID  string
	Position int64
}

// AddResult describes the outcome of adding a video to a playlist
type AddResult struct {
	// ItemID is the new item, or the existing one for duplicates
	ItemID string
	// PlaylistID is the playlist the item lives in, differs from the requested one if it was recreated
	PlaylistID string
	// Duplicate is true if the video was already part of the playlist
	Duplicate bool
	// Recreated is true if the requested playlist was gone and got replaced
	Recreated bool
}
