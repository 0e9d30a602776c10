// Package votes derives the vote counts of submissions from their reactions.
package votes

import (
	"context"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/metrics"
	"go.uber.org/zap"
)

// ReactionSource lists the users who reacted to a message with an emoji
type ReactionSource interface {
	Reactors(ctx context.Context, channelID, messageID, emoji string) ([]string, error)
}

type VoteWriter interface {
	UpdateVotes(ctx context.Context, messageID string, upvotes, downvotes int) (bool, error)
}

type Tally struct {
	logger    *zap.Logger
	reactions ReactionSource
	writer    VoteWriter
	botID     string
	upvote    string
	downvote  string
}

func NewTally(
	logger *zap.Logger,
	reactions ReactionSource,
	writer VoteWriter,
	botID string,
	upvoteEmoji string,
	downvoteEmoji string,
) *Tally {
	return &Tally{
		logger:    logger,
		reactions: reactions,
		writer:    writer,
		botID:     botID,
		upvote:    upvoteEmoji,
		downvote:  downvoteEmoji,
	}
}

// Count returns the number of distinct reactors, not counting the bot
func Count(reactors []string, botID string) int {
	seen := make(map[string]struct{}, len(reactors))
	for _, reactor := range reactors {
		if reactor == "" || reactor == botID {
			continue
		}
		seen[reactor] = struct{}{}
	}

	return len(seen)
}

// Compute reads the current reactions of the message and counts them
func (t *Tally) Compute(ctx context.Context, channelID, messageID string) (upvotes, downvotes int, err error) {
	reactors, err := t.reactions.Reactors(ctx, channelID, messageID, t.upvote)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failure reading upvotes")
	}
	upvotes = Count(reactors, t.botID)

	reactors, err = t.reactions.Reactors(ctx, channelID, messageID, t.downvote)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failure reading downvotes")
	}
	downvotes = Count(reactors, t.botID)

	return upvotes, downvotes, nil
}

// Recompute counts the votes of the message from scratch and stores them.
// It returns false if the message is no submission.
func (t *Tally) Recompute(ctx context.Context, channelID, messageID string) (bool, error) {
	upvotes, downvotes, err := t.Compute(ctx, channelID, messageID)
	if err != nil {
		metrics.VoteRecomputations.WithLabelValues("failure").Inc()
		return false, err
	}

	updated, err := t.writer.UpdateVotes(ctx, messageID, upvotes, downvotes)
	if err != nil {
		metrics.VoteRecomputations.WithLabelValues("failure").Inc()
		return false, errors.Wrap(err, "failure storing votes")
	}
	if !updated {
		metrics.VoteRecomputations.WithLabelValues("unknown_message").Inc()
		return false, nil
	}

	metrics.VoteRecomputations.WithLabelValues("success").Inc()

	t.logger.Debug("recomputed votes",
		zap.String("channel_id", channelID),
		zap.String("message_id", messageID),
		zap.Int("upvotes", upvotes),
		zap.Int("downvotes", downvotes),
	)

	return true, nil
}
