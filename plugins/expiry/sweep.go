package expiry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/metrics"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/window"
	"go.uber.org/zap"
)

type Candidates interface {
	ExpiryCandidates(ctx context.Context, kind window.Kind, now time.Time, after records.ExpiryCursor, limit int) ([]records.ExpiryCandidate, error)
	ClearWindowItem(ctx context.Context, kind window.Kind, submissionID uint, itemID string) error
}

type Remover interface {
	RemoveItem(ctx context.Context, playlistID, itemID string) (bool, error)
}

// Report counts what a sweep did
type Report struct {
	Removed int
	// Absent items were gone from the playlist already
	Absent int
	// Failed items are kept and retried on the next sweep
	Failed int
}

// Sweeper removes the items of one window that left their window
type Sweeper struct {
	kind      window.Kind
	records   Candidates
	playlists Remover
	batchSize int
}

func NewSweeper(kind window.Kind, recordStore Candidates, playlists Remover, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Sweeper{
		kind:      kind,
		records:   recordStore,
		playlists: playlists,
		batchSize: batchSize,
	}
}

// Sweep processes candidates in batches until none are left. Failed candidates
// are skipped and retried by the next sweep. Fatal playlist store errors end the sweep.
func (s *Sweeper) Sweep(ctx context.Context, logger *zap.Logger, now time.Time) (Report, error) {
	var report Report
	var cursor records.ExpiryCursor

	for {
		candidates, err := s.records.ExpiryCandidates(ctx, s.kind, now, cursor, s.batchSize)
		if err != nil {
			return report, err
		}

		for _, candidate := range candidates {
			cursor = candidate.Cursor()

			if err := ctx.Err(); err != nil {
				return report, err
			}

			removed, err := s.playlists.RemoveItem(ctx, candidate.PlaylistID, candidate.ItemID)
			if err != nil {
				if playlist.IsFatal(err) {
					return report, errors.Wrap(err, "aborted sweep")
				}

				report.Failed++
				metrics.ExpiryFailures.WithLabelValues(s.kind.String()).Inc()

				logger.Warn("failure removing expired item, retrying next sweep",
					zap.Uint("submission_id", candidate.SubmissionID),
					zap.String("playlist_id", candidate.PlaylistID),
					zap.String("item_id", candidate.ItemID),
					zap.Error(err),
				)
				continue
			}

			err = s.records.ClearWindowItem(ctx, s.kind, candidate.SubmissionID, candidate.ItemID)
			if err != nil {
				return report, err
			}

			if removed {
				report.Removed++
			} else {
				report.Absent++
			}
			metrics.ExpiredItems.WithLabelValues(s.kind.String()).Inc()

			logger.Debug("expired item",
				zap.Uint("submission_id", candidate.SubmissionID),
				zap.String("video_id", candidate.VideoID),
				zap.String("playlist_id", candidate.PlaylistID),
				zap.Bool("was_present", removed),
			)
		}

		if len(candidates) < s.batchSize {
			return report, nil
		}
	}
}
