package records

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type cachedBinding struct {
	// nil for channels without binding
	binding  *ChannelBinding
	cachedAt time.Time
}

// Binding returns the binding of the channel, or nil if the channel is not watched
func (s *Store) Binding(ctx context.Context, channelID string) (*ChannelBinding, error) {
	if binding, ok := s.cachedBinding(channelID); ok {
		return binding, nil
	}

	generation := s.bindingGeneration()

	var binding ChannelBinding
	err := s.db.Take(&binding, "channel_id = ?", channelID).Error
	if gorm.IsRecordNotFoundError(err) {
		s.cacheBinding(channelID, nil, generation)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failure looking up channel binding")
	}

	s.cacheBinding(channelID, &binding, generation)

	return &binding, nil
}

func (s *Store) cachedBinding(channelID string) (*ChannelBinding, bool) {
	value, ok := s.bindings.Get(channelID)
	if !ok {
		return nil, false
	}

	entry := value.(cachedBinding)
	if s.now().Sub(entry.cachedAt) >= bindingTTL {
		s.bindings.Remove(channelID)
		return nil, false
	}
	if entry.binding == nil {
		return nil, true
	}

	result := *entry.binding
	return &result, true
}

func (s *Store) bindingGeneration() uint64 {
	s.bindingsMu.Lock()
	defer s.bindingsMu.Unlock()

	return s.generation
}

// cacheBinding caches a binding read at generation, unless a binding was written since
func (s *Store) cacheBinding(channelID string, binding *ChannelBinding, generation uint64) {
	s.bindingsMu.Lock()
	defer s.bindingsMu.Unlock()

	if s.generation != generation {
		return
	}

	entry := cachedBinding{cachedAt: s.now()}
	if binding != nil {
		stored := *binding
		entry.binding = &stored
	}
	s.bindings.Add(channelID, entry)
}

func (s *Store) invalidateBinding(channelID string) {
	s.bindingsMu.Lock()
	defer s.bindingsMu.Unlock()

	s.generation++
	s.bindings.Remove(channelID)
}

func (s *Store) CreateBinding(ctx context.Context, binding *ChannelBinding) error {
	defer s.invalidateBinding(binding.ChannelID)

	err := s.db.Create(binding).Error
	if isUniqueViolation(err) {
		return ErrBindingExists
	}

	return errors.Wrap(err, "failure creating channel binding")
}

// ReplaceMainPlaylist points the binding at a new main playlist, if it still points at oldPlaylistID
func (s *Store) ReplaceMainPlaylist(ctx context.Context, channelID, oldPlaylistID, newPlaylistID string) (bool, error) {
	defer s.invalidateBinding(channelID)

	result, err := s.db.DB().ExecContext(ctx, `
UPDATE playlist_channels
SET main_playlist_id = $3, updated_at = now()
WHERE channel_id = $1 AND main_playlist_id = $2
`, channelID, oldPlaylistID, newPlaylistID)
	if err != nil {
		return false, errors.Wrap(err, "failure replacing main playlist")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failure replacing main playlist")
	}

	return affected > 0, nil
}

// DeleteBinding removes the binding of the channel, it returns false if there was none
func (s *Store) DeleteBinding(ctx context.Context, channelID string) (bool, error) {
	defer s.invalidateBinding(channelID)

	result, err := s.db.DB().ExecContext(ctx, `
DELETE FROM playlist_channels
WHERE channel_id = $1
`, channelID)
	if err != nil {
		return false, errors.Wrap(err, "failure deleting channel binding")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failure deleting channel binding")
	}

	return affected > 0, nil
}
