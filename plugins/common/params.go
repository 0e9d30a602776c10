package common

import (
	"time"

	"github.com/go-redis/redis"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"go.uber.org/zap"
)

type StartParameters struct {
	Logger    *zap.Logger
	Redis     *redis.Client
	Records   *records.Store
	Playlists *playlist.YouTube

	ExpiryInterval  time.Duration
	ExpiryBatchSize int
}

type StopParameters struct {
	Logger *zap.Logger
	Redis  *redis.Client
}
