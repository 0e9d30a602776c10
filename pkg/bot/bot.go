// Package bot connects the discord gateway events to submissions, votes and
// channel cleanups.
package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/pkg/extract"
	"gitlab.com/Cacophony/Playlister/pkg/lifecycle"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/submission"
	"gitlab.com/Cacophony/Playlister/plugins/common"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Intents are the gateway intents the bot needs
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

type Submitter interface {
	Submit(ctx context.Context, request submission.Request) submission.Outcome
}

type VoteCounter interface {
	Recompute(ctx context.Context, channelID, messageID string) (bool, error)
}

type ChannelReconciler interface {
	ChannelDeleted(ctx context.Context, channelID string, deletePlaylist bool) (lifecycle.Result, error)
	SubmissionDeleted(ctx context.Context, channelID, messageID string) (bool, error)
}

type Records interface {
	Binding(ctx context.Context, channelID string) (*records.ChannelBinding, error)
	SubmissionByMessage(ctx context.Context, messageID string) (*records.Submission, error)
}

type Options struct {
	// BotID defaults to the user of the session once it is ready
	BotID         string
	UpvoteEmoji   string
	DownvoteEmoji string
	// DeletePlaylist removes the main playlist of deleted channels
	DeletePlaylist bool
	HandlerTimeout time.Duration
}

type Bot struct {
	ctx        context.Context
	logger     *zap.Logger
	options    Options
	saga       Submitter
	votes      VoteCounter
	reconciler ChannelReconciler
	records    Records
	notifier   Notifier
}

func New(
	ctx context.Context,
	logger *zap.Logger,
	options Options,
	saga Submitter,
	votes VoteCounter,
	reconciler ChannelReconciler,
	recordStore Records,
	notifier Notifier,
) *Bot {
	if options.HandlerTimeout <= 0 {
		options.HandlerTimeout = 2 * time.Minute
	}

	return &Bot{
		ctx:        ctx,
		logger:     logger,
		options:    options,
		saga:       saga,
		votes:      votes,
		reconciler: reconciler,
		records:    recordStore,
		notifier:   notifier,
	}
}

// Register adds the event handlers to the session
func (b *Bot) Register(session *discordgo.Session) {
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMessageDelete)
	session.AddHandler(b.onMessageReactionAdd)
	session.AddHandler(b.onMessageReactionRemove)
	session.AddHandler(b.onChannelDelete)
	session.AddHandler(b.onThreadDelete)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, event *discordgo.MessageCreate) {
	b.handle("message_create", func(run *common.Run) error {
		return b.handleMessage(run.Context(), event.Message)
	})
}

func (b *Bot) onMessageDelete(_ *discordgo.Session, event *discordgo.MessageDelete) {
	b.handle("message_delete", func(run *common.Run) error {
		return b.handleMessageDelete(run.Context(), event.Message)
	})
}

func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	b.handle("message_reaction_add", func(run *common.Run) error {
		return b.handleReaction(run.Context(), b.botID(session), event.MessageReaction)
	})
}

func (b *Bot) onMessageReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	b.handle("message_reaction_remove", func(run *common.Run) error {
		return b.handleReaction(run.Context(), b.botID(session), event.MessageReaction)
	})
}

func (b *Bot) botID(session *discordgo.Session) string {
	if b.options.BotID != "" {
		return b.options.BotID
	}
	if session == nil || session.State == nil || session.State.User == nil {
		return ""
	}

	return session.State.User.ID
}

func (b *Bot) onChannelDelete(_ *discordgo.Session, event *discordgo.ChannelDelete) {
	b.handle("channel_delete", func(run *common.Run) error {
		return b.handleChannelDelete(run.Context(), event.Channel)
	})
}

func (b *Bot) onThreadDelete(_ *discordgo.Session, event *discordgo.ThreadDelete) {
	b.handle("thread_delete", func(run *common.Run) error {
		return b.handleChannelDelete(run.Context(), event.Channel)
	})
}

func (b *Bot) handle(name string, fn func(run *common.Run) error) {
	run := common.NewRun(name)

	ctx, cancel := context.WithTimeout(b.ctx, b.options.HandlerTimeout)
	defer cancel()

	run.WithContext(ctx)
	run.WithLogger(b.logger.With(
		zap.String("event", name),
		zap.String("launch", run.Launch.String()),
	))

	run.Except(fn(run))
}

func (b *Bot) handleMessage(ctx context.Context, message *discordgo.Message) error {
	if message == nil || message.Author == nil || message.Author.Bot || message.GuildID == "" {
		return nil
	}

	binding, err := b.records.Binding(ctx, message.ChannelID)
	if err != nil {
		return err
	}
	if binding == nil {
		return nil
	}

	videoID, err := extract.VideoID(message.Content)
	if errors.Is(err, extract.ErrNoVideo) {
		if binding.NoChatter {
			return b.notifier.Delete(ctx, message.ChannelID, message.ID)
		}
		return nil
	}
	// malformed links are rejected by the saga with an invalid video ID

	submittedAt := message.Timestamp
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	outcome := b.saga.Submit(ctx, submission.Request{
		VideoID:     videoID,
		GuildID:     message.GuildID,
		ChannelID:   message.ChannelID,
		SubmitterID: message.Author.ID,
		MessageID:   message.ID,
		SubmittedAt: submittedAt,
	})

	return b.respond(ctx, message, outcome)
}

func (b *Bot) respond(ctx context.Context, message *discordgo.Message, outcome submission.Outcome) error {
	if outcome.Silent() {
		return nil
	}

	var err error

	if outcome.Status == submission.Accepted {
		// the seed upvote is left out of the tally by identity
		err = multierr.Append(err, b.notifier.React(ctx, message.ChannelID, message.ID, b.options.UpvoteEmoji))
		err = multierr.Append(err, b.notifier.React(ctx, message.ChannelID, message.ID, b.options.DownvoteEmoji))
		return err
	}

	err = multierr.Append(err, b.notifier.Warn(ctx, message.ChannelID, warning(message.Author.ID, outcome)))

	if outcome.DeleteMessage() {
		err = multierr.Append(err, b.notifier.Delete(ctx, message.ChannelID, message.ID))
	}

	if outcome.Status == submission.Failed {
		err = multierr.Append(outcome.Err, err)
	}

	return err
}

func (b *Bot) handleMessageDelete(ctx context.Context, message *discordgo.Message) error {
	if message == nil || message.GuildID == "" {
		return nil
	}

	_, err := b.reconciler.SubmissionDeleted(ctx, message.ChannelID, message.ID)
	return err
}

func (b *Bot) handleReaction(ctx context.Context, botID string, reaction *discordgo.MessageReaction) error {
	if reaction == nil || reaction.GuildID == "" || reaction.UserID == botID {
		return nil
	}

	emoji := reaction.Emoji.APIName()
	if emoji != b.options.UpvoteEmoji && emoji != b.options.DownvoteEmoji {
		return nil
	}

	binding, err := b.records.Binding(ctx, reaction.ChannelID)
	if err != nil || binding == nil {
		return err
	}
	tracked, err := b.records.SubmissionByMessage(ctx, reaction.MessageID)
	if err != nil || tracked == nil {
		return err
	}

	_, err = b.votes.Recompute(ctx, reaction.ChannelID, reaction.MessageID)
	return err
}

func (b *Bot) handleChannelDelete(ctx context.Context, channel *discordgo.Channel) error {
	if channel == nil {
		return nil
	}

	_, err := b.reconciler.ChannelDeleted(ctx, channel.ID, b.options.DeletePlaylist)
	return err
}

func warning(userID string, outcome submission.Outcome) string {
	mention := "<@" + userID + "> "

	switch outcome.Reason {
	case submission.ReasonInvalidVideoID:
		return mention + "that does not look like a link to a YouTube video."
	case submission.ReasonVideoBanned:
		return mention + "this video can not be added to this playlist."
	case submission.ReasonUserBanned:
		return mention + "you can not add videos to this playlist."
	case submission.ReasonDuplicate:
		return mention + "this video is in the playlist already."
	case submission.ReasonVideoUnavailable:
		return mention + "this video is unavailable."
	case submission.ReasonRemoteFatal, submission.ReasonServiceUnavailable:
		return mention + "adding videos is paused right now, please try again later."
	}

	return mention + "something went wrong while adding this video, please try again."
}
