// Package records persists channel bindings, submissions and bans in postgres.
package records

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateSubmission is returned when the video was already submitted to the playlist
	ErrDuplicateSubmission = errors.New("submission exists already")
	// ErrBindingExists is returned when the channel is bound already
	ErrBindingExists = errors.New("channel binding exists already")
	// ErrInvalidBan is returned for bans without guild, value or a known type
	ErrInvalidBan = errors.New("invalid ban passed")
)

const (
	uniqueViolation = "23505"
	// other instances write bindings too
	bindingTTL = time.Minute
)

type Store struct {
	db  *gorm.DB
	now func() time.Time

	// bindingsMu orders cache fills against invalidations
	bindingsMu sync.Mutex
	bindings   *lru.Cache
	generation uint64
}

func NewStore(db *gorm.DB, bindingCacheSize int) (*Store, error) {
	if bindingCacheSize <= 0 {
		bindingCacheSize = 1024
	}

	cache, err := lru.New(bindingCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create binding cache")
	}

	return &Store{
		db:       db,
		now:      time.Now,
		bindings: cache,
	}, nil
}

// Migrate creates or updates the tables
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		ChannelBinding{},
		Submission{},
		BanEntry{},
	).Error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}

	return false
}
