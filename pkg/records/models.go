package records

import (
	"time"

	"github.com/jinzhu/gorm"
)

// ChannelBinding links a watched channel to the playlists it feeds
type ChannelBinding struct {
	gorm.Model
	GuildID   string `gorm:"NOT NULL;index"`
	ChannelID string `gorm:"NOT NULL;UNIQUE_INDEX"`
	Title     string
	AddedBy   string

	MainPlaylistID    string `gorm:"NOT NULL"`
	WeeklyPlaylistID  string
	MonthlyPlaylistID string
	YearlyPlaylistID  string

	// NoChatter deletes messages without a video link
	NoChatter bool
}

func (*ChannelBinding) TableName() string {
	return "playlist_channels"
}

// Submission is an accepted video post
type Submission struct {
	gorm.Model
	MainPlaylistID string `gorm:"NOT NULL;UNIQUE_INDEX:idx_playlist_submissions_playlist_video"`
	VideoID        string `gorm:"NOT NULL;UNIQUE_INDEX:idx_playlist_submissions_playlist_video"`
	MainItemID     string `gorm:"NOT NULL"`

	// window items are nil once expired
	WeeklyItemID  *string
	MonthlyItemID *string
	YearlyItemID  *string

	GuildID     string    `gorm:"NOT NULL"`
	ChannelID   string    `gorm:"NOT NULL;index"`
	SubmitterID string    `gorm:"NOT NULL"`
	MessageID   string    `gorm:"NOT NULL;UNIQUE_INDEX"`
	SubmittedAt time.Time `gorm:"NOT NULL;index"`

	Upvotes   int `gorm:"NOT NULL;default:0"`
	Downvotes int `gorm:"NOT NULL;default:0"`
}

func (*Submission) TableName() string {
	return "playlist_submissions"
}

type BanType string

const (
	BanTypeUser  BanType = "user"
	BanTypeVideo BanType = "video"
)

// BanEntry bans a user or a video, either for a single playlist or the whole guild
type BanEntry struct {
	gorm.Model
	GuildID string  `gorm:"NOT NULL;index"`
	Type    BanType `gorm:"NOT NULL"`
	Value   string  `gorm:"NOT NULL"`
	// PlaylistID limits the ban to a playlist, empty bans guild wide
	PlaylistID string
	AuthorID   string
	Reason     string
}

func (*BanEntry) TableName() string {
	return "playlist_bans"
}

// ExpiryCandidate is a submission with a window item that left its window
type ExpiryCandidate struct {
	SubmissionID uint
	VideoID      string
	ChannelID    string
	SubmittedAt  time.Time
	PlaylistID   string
	ItemID       string
}

// ExpiryCursor is the position after the last candidate of a batch.
// The zero value starts at the oldest candidate.
type ExpiryCursor struct {
	SubmittedAt  time.Time
	SubmissionID uint
}

// Cursor returns the position right after the candidate
func (c ExpiryCandidate) Cursor() ExpiryCursor {
	return ExpiryCursor{
		SubmittedAt:  c.SubmittedAt,
		SubmissionID: c.SubmissionID,
	}
}
