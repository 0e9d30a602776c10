package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Notifier produces the visible reactions to a submission in the channel
type Notifier interface {
	// Warn posts a message that removes itself after a while
	Warn(ctx context.Context, channelID, content string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	Delete(ctx context.Context, channelID, messageID string) error
}

type DiscordNotifier struct {
	logger  *zap.Logger
	session *discordgo.Session
	ttl     time.Duration
}

func NewDiscordNotifier(logger *zap.Logger, session *discordgo.Session, ttl time.Duration) *DiscordNotifier {
	return &DiscordNotifier{
		logger:  logger,
		session: session,
		ttl:     ttl,
	}
}

func (n *DiscordNotifier) Warn(ctx context.Context, channelID, content string) error {
	message, err := n.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "failure sending warning")
	}

	time.AfterFunc(n.ttl, func() {
		err := n.session.ChannelMessageDelete(message.ChannelID, message.ID)
		if err != nil {
			n.logger.Debug("failure deleting warning",
				zap.String("channel_id", message.ChannelID),
				zap.String("message_id", message.ID),
				zap.Error(err),
			)
		}
	})

	return nil
}

func (n *DiscordNotifier) React(ctx context.Context, channelID, messageID, emoji string) error {
	return errors.Wrap(
		n.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)),
		"failure adding reaction",
	)
}

func (n *DiscordNotifier) Delete(ctx context.Context, channelID, messageID string) error {
	return errors.Wrap(
		n.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)),
		"failure deleting message",
	)
}
