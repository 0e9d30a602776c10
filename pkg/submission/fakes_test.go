package submission

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/Cacophony/Playlister/pkg/eligibility"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
)

type fakePlaylists struct {
	mu sync.Mutex

	// playlist ID => item ID => video ID
	playlists map[string]map[string]string
	addErr    map[string]error
	removeErr map[string]error
	calls     int
	nextID    int
}

func newFakePlaylists(ids ...string) *fakePlaylists {
	f := &fakePlaylists{
		playlists: make(map[string]map[string]string),
		addErr:    make(map[string]error),
		removeErr: make(map[string]error),
	}
	for _, id := range ids {
		f.playlists[id] = make(map[string]string)
	}

	return f
}

func (f *fakePlaylists) AddItem(_ context.Context, playlistID, videoID string, recreate *playlist.Info) (playlist.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := f.addErr[playlistID]; err != nil {
		return playlist.AddResult{}, err
	}

	result := playlist.AddResult{PlaylistID: playlistID}

	items, ok := f.playlists[playlistID]
	if !ok {
		if recreate == nil {
			return result, playlist.ErrPlaylistNotFound
		}

		f.nextID++
		result.PlaylistID = fmt.Sprintf("recreated-%d", f.nextID)
		result.Recreated = true
		items = make(map[string]string)
		f.playlists[result.PlaylistID] = items
	}

	for itemID, existing := range items {
		if existing == videoID {
			result.ItemID = itemID
			result.Duplicate = true
			return result, nil
		}
	}

	f.nextID++
	result.ItemID = fmt.Sprintf("%s-item-%d", result.PlaylistID, f.nextID)
	items[result.ItemID] = videoID

	return result, nil
}

func (f *fakePlaylists) RemoveItem(_ context.Context, playlistID, itemID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := f.removeErr[playlistID]; err != nil {
		return false, err
	}

	items := f.playlists[playlistID]
	if _, ok := items[itemID]; !ok {
		return false, nil
	}
	delete(items, itemID)

	return true, nil
}

func (f *fakePlaylists) count(playlistID, videoID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int
	for _, existing := range f.playlists[playlistID] {
		if existing == videoID {
			count++
		}
	}

	return count
}

func (f *fakePlaylists) seed(playlistID, itemID, videoID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.playlists[playlistID][itemID] = videoID
}

func (f *fakePlaylists) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type fakeRecords struct {
	mu sync.Mutex

	bindings    map[string]*records.ChannelBinding
	submissions []*records.Submission
	createErr   error
	// unbindOnReplace deletes the binding before ReplaceMainPlaylist looks at it
	unbindOnReplace bool
}

func newFakeRecords(bindings ...*records.ChannelBinding) *fakeRecords {
	f := &fakeRecords{
		bindings: make(map[string]*records.ChannelBinding),
	}
	for _, binding := range bindings {
		f.bindings[binding.ChannelID] = binding
	}

	return f
}

func (f *fakeRecords) Binding(_ context.Context, channelID string) (*records.ChannelBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	binding, ok := f.bindings[channelID]
	if !ok {
		return nil, nil
	}

	result := *binding
	return &result, nil
}

func (f *fakeRecords) ReplaceMainPlaylist(_ context.Context, channelID, oldPlaylistID, newPlaylistID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unbindOnReplace {
		delete(f.bindings, channelID)
	}

	binding, ok := f.bindings[channelID]
	if !ok || binding.MainPlaylistID != oldPlaylistID {
		return false, nil
	}
	binding.MainPlaylistID = newPlaylistID

	return true, nil
}

func (f *fakeRecords) SubmissionByVideo(_ context.Context, mainPlaylistID, videoID string) (*records.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, submission := range f.submissions {
		if submission.MainPlaylistID == mainPlaylistID && submission.VideoID == videoID {
			return submission, nil
		}
	}

	return nil, nil
}

func (f *fakeRecords) CreateSubmission(_ context.Context, submission *records.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}

	for _, existing := range f.submissions {
		if existing.MainPlaylistID == submission.MainPlaylistID && existing.VideoID == submission.VideoID {
			return records.ErrDuplicateSubmission
		}
	}
	f.submissions = append(f.submissions, submission)

	return nil
}

func (f *fakeRecords) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.submissions)
}

type fakeGuard struct {
	verdict eligibility.Verdict
	err     error
}

func (f *fakeGuard) Check(context.Context, string, string, string, string) (eligibility.Verdict, error) {
	return f.verdict, f.err
}
