// Package eligibility decides whether a submission is permitted by the ban lists.
package eligibility

import (
	"context"

	"github.com/pkg/errors"
)

// ErrPolicyCheckFailed is returned when the ban status could not be determined
var ErrPolicyCheckFailed = errors.New("policy check failed")

type BanChecker interface {
	IsVideoBanned(ctx context.Context, guildID, playlistID, videoID string) (bool, error)
	IsUserBanned(ctx context.Context, guildID, playlistID, userID string) (bool, error)
}

type Verdict int

const (
	Allowed Verdict = iota
	VideoBanned
	UserBanned
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case VideoBanned:
		return "video_banned"
	case UserBanned:
		return "user_banned"
	}

	return "unknown"
}

type Guard struct {
	bans BanChecker
}

func NewGuard(bans BanChecker) *Guard {
	return &Guard{
		bans: bans,
	}
}

// Check returns whether the user may submit the video to the playlist.
// Any lookup failure is returned as ErrPolicyCheckFailed, callers must not
// submit in that case.
func (g *Guard) Check(ctx context.Context, guildID, playlistID, videoID, userID string) (Verdict, error) {
	banned, err := g.bans.IsVideoBanned(ctx, guildID, playlistID, videoID)
	if err != nil {
		return Allowed, errors.WithMessage(ErrPolicyCheckFailed, err.Error())
	}
	if banned {
		return VideoBanned, nil
	}

	banned, err = g.bans.IsUserBanned(ctx, guildID, playlistID, userID)
	if err != nil {
		return Allowed, errors.WithMessage(ErrPolicyCheckFailed, err.Error())
	}
	if banned {
		return UserBanned, nil
	}

	return Allowed, nil
}

// IsAllowed is Check reduced to a yes or no
func (g *Guard) IsAllowed(ctx context.Context, guildID, playlistID, videoID, userID string) (bool, error) {
	verdict, err := g.Check(ctx, guildID, playlistID, videoID, userID)
	if err != nil {
		return false, err
	}

	return verdict == Allowed, nil
}
