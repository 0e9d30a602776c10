package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/pkg/lifecycle"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/scheduler"
	"go.uber.org/zap/zaptest"
)

type fakeStatus []scheduler.Status

func (f fakeStatus) Status() []scheduler.Status {
	return f
}

type fakeSubmissions struct {
	halted bool
}

func (f *fakeSubmissions) Halted() bool {
	return f.halted
}

func (f *fakeSubmissions) Resume() bool {
	resumed := f.halted
	f.halted = false
	return resumed
}

type fakeChannels struct {
	requests []lifecycle.BindRequest
	err      error
	limit    int
}

func (f *fakeChannels) BindChannel(_ context.Context, request lifecycle.BindRequest) (*records.ChannelBinding, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}

	return &records.ChannelBinding{GuildID: request.GuildID, ChannelID: request.ChannelID, MainPlaylistID: "M"}, nil
}

func (f *fakeChannels) ChannelItems(_ context.Context, channelID string, limit int) ([]playlist.Item, error) {
	f.limit = limit
	if channelID != "c1" {
		return nil, lifecycle.ErrChannelNotBound
	}

	return []playlist.Item{{ID: "i1", VideoID: "v1"}}, nil
}

type fakeBans struct {
	bans []*records.BanEntry
}

func (f *fakeBans) CreateBan(_ context.Context, ban *records.BanEntry) error {
	if ban.GuildID == "" {
		return records.ErrInvalidBan
	}

	f.bans = append(f.bans, ban)
	return nil
}

func TestStats(t *testing.T) {
	router := NewRouter(
		zaptest.NewLogger(t),
		"abc123",
		fakeStatus{{Plugin: "expiry-weekly", Runs: 3}},
		&fakeSubmissions{halted: true},
		&fakeChannels{},
		&fakeBans{},
	)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var stats Stats
	if err := json.NewDecoder(recorder.Body).Decode(&stats); err != nil {
		t.Fatalf("unable to decode stats: %v", err)
	}
	if !stats.Halted || stats.Available || stats.Hash != "abc123" {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(stats.Plugins) != 1 || stats.Plugins[0].Runs != 3 {
		t.Errorf("plugins = %+v", stats.Plugins)
	}
}

func TestResume(t *testing.T) {
	submissions := &fakeSubmissions{halted: true}
	router := NewRouter(zaptest.NewLogger(t), "", fakeStatus{}, submissions, &fakeChannels{}, &fakeBans{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/submissions/resume", nil))
	if recorder.Code != http.StatusOK || submissions.halted {
		t.Fatalf("first resume: status = %d, halted = %v", recorder.Code, submissions.halted)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/submissions/resume", nil))
	if recorder.Code != http.StatusConflict {
		t.Errorf("second resume: status = %d, want conflict", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/submissions/resume", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET resume: status = %d, want method not allowed", recorder.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := NewRouter(zaptest.NewLogger(t), "", fakeStatus{}, &fakeSubmissions{}, &fakeChannels{}, &fakeBans{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d", recorder.Code)
	}
}

func TestPostChannel(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"created", `{"guild_id":"g1","channel_id":"c1","title":"#music"}`, nil, http.StatusCreated},
		{"bound", `{"guild_id":"g1","channel_id":"c1","title":"#music"}`, records.ErrBindingExists, http.StatusConflict},
		{"invalid", `{"guild_id":"g1"}`, lifecycle.ErrInvalidBindRequest, http.StatusBadRequest},
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"failure", `{"guild_id":"g1","channel_id":"c1","title":"#music"}`, errors.New("quota"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := &fakeChannels{err: tt.err}
			router := NewRouter(zaptest.NewLogger(t), "", fakeStatus{}, &fakeSubmissions{}, channels, &fakeBans{})

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(tt.body)))
			if recorder.Code != tt.status {
				t.Fatalf("status = %d, want %d", recorder.Code, tt.status)
			}

			if tt.status == http.StatusCreated {
				var binding records.ChannelBinding
				if err := json.NewDecoder(recorder.Body).Decode(&binding); err != nil {
					t.Fatalf("unable to decode binding: %v", err)
				}
				if binding.ChannelID != "c1" || binding.MainPlaylistID != "M" {
					t.Errorf("unexpected binding %+v", binding)
				}
				if channels.requests[0].Title != "#music" {
					t.Errorf("unexpected request %+v", channels.requests[0])
				}
			}
		})
	}
}

func TestGetChannelItems(t *testing.T) {
	channels := &fakeChannels{}
	router := NewRouter(zaptest.NewLogger(t), "", fakeStatus{}, &fakeSubmissions{}, channels, &fakeBans{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/channels/c1/items?limit=10", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}

	var items []playlist.Item
	if err := json.NewDecoder(recorder.Body).Decode(&items); err != nil {
		t.Fatalf("unable to decode items: %v", err)
	}
	if len(items) != 1 || items[0].VideoID != "v1" || channels.limit != 10 {
		t.Errorf("items = %+v, limit = %d", items, channels.limit)
	}

	for path, status := range map[string]int{
		"/channels/other/items":          http.StatusNotFound,
		"/channels/c1/items?limit=0":     http.StatusBadRequest,
		"/channels/c1/items?limit=10000": http.StatusBadRequest,
	} {
		recorder = httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != status {
			t.Errorf("GET %s: status = %d, want %d", path, recorder.Code, status)
		}
	}
}

func TestPostBan(t *testing.T) {
	bans := &fakeBans{}
	router := NewRouter(zaptest.NewLogger(t), "", fakeStatus{}, &fakeSubmissions{}, &fakeChannels{}, bans)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/bans",
		strings.NewReader(`{"guild_id":"g1","type":"video","value":"v1","playlist_id":"M"}`)))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d", recorder.Code)
	}
	if len(bans.bans) != 1 || bans.bans[0].Type != records.BanTypeVideo || bans.bans[0].PlaylistID != "M" {
		t.Errorf("bans = %+v", bans.bans)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/bans", strings.NewReader(`{"type":"user"}`)))
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("invalid ban: status = %d, want bad request", recorder.Code)
	}
}
