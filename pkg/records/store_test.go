package records

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/pkg/window"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}

	db, err := gorm.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("unable to connect to postgres: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	db.DropTableIfExists(&ChannelBinding{}, &Submission{}, &BanEntry{})

	store, err := NewStore(db, 16)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err = store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return store
}

func stringPointer(value string) *string {
	return &value
}

func TestBindingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	binding, err := store.Binding(ctx, "c1")
	if err != nil || binding != nil {
		t.Fatalf("Binding() = %v, %v, want nil, nil", binding, err)
	}

	err = store.CreateBinding(ctx, &ChannelBinding{
		GuildID:          "g1",
		ChannelID:        "c1",
		MainPlaylistID:   "M",
		WeeklyPlaylistID: "W",
	})
	if err != nil {
		t.Fatalf("CreateBinding() error = %v", err)
	}

	// the negative lookup must not stay cached
	binding, err = store.Binding(ctx, "c1")
	if err != nil || binding == nil || binding.MainPlaylistID != "M" {
		t.Fatalf("Binding() = %+v, %v", binding, err)
	}

	err = store.CreateBinding(ctx, &ChannelBinding{GuildID: "g1", ChannelID: "c1", MainPlaylistID: "X"})
	if !errors.Is(err, ErrBindingExists) {
		t.Fatalf("CreateBinding() error = %v, want ErrBindingExists", err)
	}

	replaced, err := store.ReplaceMainPlaylist(ctx, "c1", "stale", "M2")
	if err != nil || replaced {
		t.Fatalf("ReplaceMainPlaylist() with stale id = %v, %v", replaced, err)
	}
	replaced, err = store.ReplaceMainPlaylist(ctx, "c1", "M", "M2")
	if err != nil || !replaced {
		t.Fatalf("ReplaceMainPlaylist() = %v, %v", replaced, err)
	}

	binding, err = store.Binding(ctx, "c1")
	if err != nil || binding.MainPlaylistID != "M2" {
		t.Fatalf("Binding() after replace = %+v, %v", binding, err)
	}

	deleted, err := store.DeleteBinding(ctx, "c1")
	if err != nil || !deleted {
		t.Fatalf("DeleteBinding() = %v, %v", deleted, err)
	}
	binding, err = store.Binding(ctx, "c1")
	if err != nil || binding != nil {
		t.Fatalf("Binding() after delete = %+v, %v", binding, err)
	}
}

func TestSubmissionExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.CreateBinding(ctx, &ChannelBinding{
		GuildID:           "g1",
		ChannelID:         "c1",
		MainPlaylistID:    "M",
		WeeklyPlaylistID:  "W",
		MonthlyPlaylistID: "Mo",
		YearlyPlaylistID:  "Y",
	})
	if err != nil {
		t.Fatalf("CreateBinding() error = %v", err)
	}

	submittedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err = store.CreateSubmission(ctx, &Submission{
		MainPlaylistID: "M",
		VideoID:        "v1",
		MainItemID:     "main-1",
		WeeklyItemID:   stringPointer("weekly-1"),
		MonthlyItemID:  stringPointer("monthly-1"),
		YearlyItemID:   stringPointer("yearly-1"),
		GuildID:        "g1",
		ChannelID:      "c1",
		SubmitterID:    "u1",
		MessageID:      "m1",
		SubmittedAt:    submittedAt,
	})
	if err != nil {
		t.Fatalf("CreateSubmission() error = %v", err)
	}

	err = store.CreateSubmission(ctx, &Submission{
		MainPlaylistID: "M",
		VideoID:        "v1",
		MainItemID:     "main-2",
		GuildID:        "g1",
		ChannelID:      "c1",
		SubmitterID:    "u2",
		MessageID:      "m2",
		SubmittedAt:    submittedAt,
	})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("CreateSubmission() error = %v, want ErrDuplicateSubmission", err)
	}

	candidates, err := store.ExpiryCandidates(ctx, window.Weekly, submittedAt.Add(6*24*time.Hour+23*time.Hour+59*time.Minute), ExpiryCursor{}, 10)
	if err != nil || len(candidates) != 0 {
		t.Fatalf("ExpiryCandidates() before week end = %+v, %v", candidates, err)
	}

	candidates, err = store.ExpiryCandidates(ctx, window.Weekly, submittedAt.Add(7*24*time.Hour), ExpiryCursor{}, 10)
	if err != nil || len(candidates) != 1 {
		t.Fatalf("ExpiryCandidates() at week end = %+v, %v", candidates, err)
	}
	if candidates[0].PlaylistID != "W" || candidates[0].ItemID != "weekly-1" {
		t.Errorf("unexpected candidate %+v", candidates[0])
	}

	after, err := store.ExpiryCandidates(ctx, window.Weekly, submittedAt.Add(7*24*time.Hour), candidates[0].Cursor(), 10)
	if err != nil || len(after) != 0 {
		t.Fatalf("ExpiryCandidates() after the only candidate = %+v, %v", after, err)
	}

	err = store.ClearWindowItem(ctx, window.Weekly, candidates[0].SubmissionID, "weekly-1")
	if err != nil {
		t.Fatalf("ClearWindowItem() error = %v", err)
	}

	submission, err := store.SubmissionByVideo(ctx, "M", "v1")
	if err != nil || submission == nil {
		t.Fatalf("SubmissionByVideo() = %+v, %v", submission, err)
	}
	if submission.WeeklyItemID != nil || submission.MonthlyItemID == nil || submission.MainItemID != "main-1" {
		t.Errorf("unexpected submission after clearing %+v", submission)
	}

	updated, err := store.UpdateVotes(ctx, "m1", 3, 1)
	if err != nil || !updated {
		t.Fatalf("UpdateVotes() = %v, %v", updated, err)
	}
	submission, err = store.SubmissionByMessage(ctx, "m1")
	if err != nil || submission.Upvotes != 3 || submission.Downvotes != 1 {
		t.Fatalf("SubmissionByMessage() = %+v, %v", submission, err)
	}

	removed, err := store.DeleteSubmissionsByPlaylist(ctx, "M")
	if err != nil || removed != 1 {
		t.Fatalf("DeleteSubmissionsByPlaylist() = %v, %v", removed, err)
	}
}

func TestBans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, ban := range []*BanEntry{
		{GuildID: "g1", Type: BanTypeVideo, Value: "v1"},
		{GuildID: "g1", Type: BanTypeUser, Value: "u1", PlaylistID: "M"},
	} {
		if err := store.CreateBan(ctx, ban); err != nil {
			t.Fatalf("CreateBan() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		check func(ctx context.Context, guildID, playlistID, value string) (bool, error)
		guild string
		list  string
		value string
		want  bool
	}{
		{"guild wide video ban", store.IsVideoBanned, "g1", "other", "v1", true},
		{"video ban other guild", store.IsVideoBanned, "g2", "M", "v1", false},
		{"playlist user ban", store.IsUserBanned, "g1", "M", "u1", true},
		{"playlist user ban other playlist", store.IsUserBanned, "g1", "other", "u1", false},
		{"unbanned user", store.IsUserBanned, "g1", "M", "u2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.check(ctx, tt.guild, tt.list, tt.value)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("banned = %v, want %v", got, tt.want)
			}
		})
	}
}
