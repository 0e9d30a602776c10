// Package window describes the rotating playlists that sit next to a channel's
// all-time playlist, and when an entry falls out of each of them.
package window

import (
	"time"
)

// Kind is one of the rotating playlist windows
type Kind string

const (
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
	Yearly  Kind = "yearly"
)

const weekLength = 7 * 24 * time.Hour

// Kinds lists all windows in the order a submission is added to them
var Kinds = []Kind{Weekly, Monthly, Yearly}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Valid() bool {
	switch k {
	case Weekly, Monthly, Yearly:
		return true
	}

	return false
}

// ItemColumn is the submissions column holding the item ID for this window
func (k Kind) ItemColumn() string {
	return string(k) + "_item_id"
}

// PlaylistColumn is the channel bindings column holding the playlist ID for this window
func (k Kind) PlaylistColumn() string {
	return string(k) + "_playlist_id"
}

// Bound returns the cutoff for the window containing now. A submission is
// expired if it was submitted before the cutoff, or at the cutoff when
// inclusive is true.
//
// The weekly window is a rolling seven days, monthly and yearly windows follow
// calendar boundaries in UTC.
func (k Kind) Bound(now time.Time) (cutoff time.Time, inclusive bool) {
	now = now.UTC()

	switch k {
	case Weekly:
		return now.Add(-weekLength), true
	case Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), false
	case Yearly:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), false
	}

	// unknown windows never expire anything
	return time.Time{}, false
}

// Expired reports whether a submission made at submittedAt has left the window at now
func (k Kind) Expired(submittedAt, now time.Time) bool {
	cutoff, inclusive := k.Bound(now)
	if cutoff.IsZero() {
		return false
	}

	submittedAt = submittedAt.UTC()
	if inclusive && submittedAt.Equal(cutoff) {
		return true
	}

	return submittedAt.Before(cutoff)
}
