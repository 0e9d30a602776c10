package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

const reactionsPageSize = 100

// ReactionSource reads reactors from discord, page by page
type ReactionSource struct {
	session *discordgo.Session
}

func NewReactionSource(session *discordgo.Session) *ReactionSource {
	return &ReactionSource{
		session: session,
	}
}

func (r *ReactionSource) Reactors(ctx context.Context, channelID, messageID, emoji string) ([]string, error) {
	var reactors []string
	var after string

	for {
		users, err := r.session.MessageReactions(
			channelID, messageID, emoji, reactionsPageSize, "", after, discordgo.WithContext(ctx),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failure listing reactions")
		}

		for _, user := range users {
			reactors = append(reactors, user.ID)
		}

		if len(users) < reactionsPageSize {
			return reactors, nil
		}
		after = users[len(users)-1].ID
	}
}
