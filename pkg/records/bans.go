package records

import (
	"context"

	"github.com/pkg/errors"
)

// IsVideoBanned reports whether the video is banned for the playlist or the whole guild
func (s *Store) IsVideoBanned(ctx context.Context, guildID, playlistID, videoID string) (bool, error) {
	return s.isBanned(ctx, BanTypeVideo, guildID, playlistID, videoID)
}

// IsUserBanned reports whether the user is banned for the playlist or the whole guild
func (s *Store) IsUserBanned(ctx context.Context, guildID, playlistID, userID string) (bool, error) {
	return s.isBanned(ctx, BanTypeUser, guildID, playlistID, userID)
}

func (s *Store) isBanned(ctx context.Context, banType BanType, guildID, playlistID, value string) (bool, error) {
	var banned bool

	err := s.db.DB().QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM playlist_bans
	WHERE deleted_at IS NULL
	AND guild_id = $1 AND type = $2 AND value = $3
	AND (playlist_id = '' OR playlist_id IS NULL OR playlist_id = $4)
)
`, guildID, string(banType), value, playlistID).Scan(&banned)
	if err != nil {
		return false, errors.Wrapf(err, "failure checking %s ban", banType)
	}

	return banned, nil
}

func (s *Store) CreateBan(ctx context.Context, ban *BanEntry) error {
	if ban.GuildID == "" || ban.Value == "" {
		return ErrInvalidBan
	}
	if ban.Type != BanTypeUser && ban.Type != BanTypeVideo {
		return ErrInvalidBan
	}

	return errors.Wrap(s.db.Create(ban).Error, "failure creating ban")
}
