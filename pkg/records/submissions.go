package records

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/pkg/window"
)

func (s *Store) CreateSubmission(ctx context.Context, submission *Submission) error {
	err := s.db.Create(submission).Error
	if isUniqueViolation(err) {
		return ErrDuplicateSubmission
	}

	return errors.Wrap(err, "failure creating submission")
}

// SubmissionByMessage returns the submission posted with the message, or nil
func (s *Store) SubmissionByMessage(ctx context.Context, messageID string) (*Submission, error) {
	return s.findSubmission("message_id = ?", messageID)
}

// SubmissionByVideo returns the submission of the video to the playlist, or nil
func (s *Store) SubmissionByVideo(ctx context.Context, mainPlaylistID, videoID string) (*Submission, error) {
	return s.findSubmission("main_playlist_id = ? AND video_id = ?", mainPlaylistID, videoID)
}

func (s *Store) findSubmission(where ...interface{}) (*Submission, error) {
	var submission Submission

	err := s.db.Take(&submission, where...).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failure looking up submission")
	}

	return &submission, nil
}

// UpdateVotes stores the vote counts, it returns false if there is no submission for the message
func (s *Store) UpdateVotes(ctx context.Context, messageID string, upvotes, downvotes int) (bool, error) {
	result, err := s.db.DB().ExecContext(ctx, `
UPDATE playlist_submissions
SET upvotes = $2, downvotes = $3, updated_at = now()
WHERE message_id = $1
`, messageID, upvotes, downvotes)
	if err != nil {
		return false, errors.Wrap(err, "failure updating votes")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failure updating votes")
	}

	return affected > 0, nil
}

// ExpiryCandidates returns up to limit submissions after the cursor, oldest first,
// whose item in the window playlist has to be removed at now
func (s *Store) ExpiryCandidates(
	ctx context.Context,
	kind window.Kind,
	now time.Time,
	after ExpiryCursor,
	limit int,
) ([]ExpiryCandidate, error) {
	if !kind.Valid() {
		return nil, errors.Errorf("unknown window %q", kind)
	}

	cutoff, inclusive := kind.Bound(now)
	operator := "<"
	if inclusive {
		operator = "<="
	}

	args := []interface{}{cutoff, limit}
	var position string
	if after.SubmissionID != 0 {
		position = "AND (s.submitted_at, s.id) > ($3, $4)"
		args = append(args, after.SubmittedAt, after.SubmissionID)
	}

	// column names come from window.Kind, which is a closed set
	rows, err := s.db.DB().QueryContext(ctx, `
SELECT s.id, s.video_id, s.channel_id, s.submitted_at,
	COALESCE(c.`+kind.PlaylistColumn()+`, ''), s.`+kind.ItemColumn()+`
FROM playlist_submissions s
LEFT JOIN playlist_channels c ON c.channel_id = s.channel_id
WHERE s.`+kind.ItemColumn()+` IS NOT NULL
AND s.submitted_at `+operator+` $1
`+position+`
ORDER BY s.submitted_at ASC, s.id ASC
LIMIT $2
`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failure querying expiry candidates")
	}
	defer rows.Close()

	var candidates []ExpiryCandidate
	for rows.Next() {
		var candidate ExpiryCandidate

		err = rows.Scan(
			&candidate.SubmissionID,
			&candidate.VideoID,
			&candidate.ChannelID,
			&candidate.SubmittedAt,
			&candidate.PlaylistID,
			&candidate.ItemID,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failure scanning expiry candidate")
		}

		candidates = append(candidates, candidate)
	}

	return candidates, errors.Wrap(rows.Err(), "failure querying expiry candidates")
}

// ClearWindowItem nulls the window item of the submission, if it still is itemID
func (s *Store) ClearWindowItem(ctx context.Context, kind window.Kind, submissionID uint, itemID string) error {
	if !kind.Valid() {
		return errors.Errorf("unknown window %q", kind)
	}

	_, err := s.db.DB().ExecContext(ctx, `
UPDATE playlist_submissions
SET `+kind.ItemColumn()+` = NULL, updated_at = now()
WHERE id = $1 AND `+kind.ItemColumn()+` = $2
`, submissionID, itemID)
	return errors.Wrap(err, "failure clearing window item")
}

// DeleteSubmission removes the submission posted with the message to the playlist
func (s *Store) DeleteSubmission(ctx context.Context, mainPlaylistID, messageID string) (bool, error) {
	result, err := s.db.DB().ExecContext(ctx, `
DELETE FROM playlist_submissions
WHERE main_playlist_id = $1 AND message_id = $2
`, mainPlaylistID, messageID)
	if err != nil {
		return false, errors.Wrap(err, "failure deleting submission")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failure deleting submission")
	}

	return affected > 0, nil
}

// DeleteSubmissionsByPlaylist removes all submissions to the playlist
func (s *Store) DeleteSubmissionsByPlaylist(ctx context.Context, mainPlaylistID string) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx, `
DELETE FROM playlist_submissions
WHERE main_playlist_id = $1
`, mainPlaylistID)
	if err != nil {
		return 0, errors.Wrap(err, "failure deleting submissions")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failure deleting submissions")
	}

	return affected, nil
}
