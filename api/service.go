package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/Cacophony/Playlister/pkg/lifecycle"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/scheduler"
	"go.uber.org/zap"
)

const (
	defaultItemLimit = 50
	maxItemLimit     = 500
)

type StatusProvider interface {
	Status() []scheduler.Status
}

type SubmissionControl interface {
	Halted() bool
	Resume() bool
}

type Channels interface {
	BindChannel(ctx context.Context, request lifecycle.BindRequest) (*records.ChannelBinding, error)
	ChannelItems(ctx context.Context, channelID string, limit int) ([]playlist.Item, error)
}

type Bans interface {
	CreateBan(ctx context.Context, ban *records.BanEntry) error
}

type Service struct {
	logger      *zap.Logger
	scheduler   StatusProvider
	submissions SubmissionControl
	channels    Channels
	bans        Bans
}

// BanRequest is the body of POST /bans
type BanRequest struct {
	GuildID    string          `json:"guild_id"`
	Type       records.BanType `json:"type"`
	Value      string          `json:"value"`
	PlaylistID string          `json:"playlist_id"`
	AuthorID   string          `json:"author_id"`
	Reason     string          `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Stats is the response of GET /stats
type Stats struct {
	Service    string             `json:"service"`
	Hash       string             `json:"hash,omitempty"`
	Available  bool               `json:"available"`
	Halted     bool               `json:"submissions_halted"`
	Plugins    []scheduler.Status `json:"plugins"`
	ReportedAt time.Time          `json:"reported_at"`
}

// NewRouter creates a new restful Web Service for reporting information about the service
func NewRouter(
	logger *zap.Logger,
	hash string,
	statusProvider StatusProvider,
	submissions SubmissionControl,
	channels Channels,
	bans Bans,
) http.Handler {
	service := &Service{
		logger:      logger,
		scheduler:   statusProvider,
		submissions: submissions,
		channels:    channels,
		bans:        bans,
	}

	router := chi.NewRouter()

	// setup middleware
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)

	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			service.getStats(w, r, hash)
		})
		r.Post("/submissions/resume", service.postResume)
		r.Post("/channels", service.postChannel)
		r.Get("/channels/{channelID}/items", service.getChannelItems)
		r.Post("/bans", service.postBan)
	})

	return router
}

func NewHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Service) getStats(w http.ResponseWriter, r *http.Request, hash string) {
	halted := s.submissions.Halted()

	render.JSON(w, r, Stats{
		Service:    "playlister",
		Hash:       hash,
		Available:  !halted,
		Halted:     halted,
		Plugins:    s.scheduler.Status(),
		ReportedAt: time.Now().UTC(),
	})
}

func (s *Service) postResume(w http.ResponseWriter, r *http.Request) {
	resumed := s.submissions.Resume()

	s.logger.Info("submissions resume requested",
		zap.Bool("resumed", resumed),
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
	)

	if !resumed {
		render.Status(r, http.StatusConflict)
	}
	render.JSON(w, r, map[string]bool{
		"resumed": resumed,
	})
}

func (s *Service) postChannel(w http.ResponseWriter, r *http.Request) {
	var request lifecycle.BindRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		s.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	binding, err := s.channels.BindChannel(r.Context(), request)
	switch {
	case errors.Is(err, lifecycle.ErrInvalidBindRequest):
		s.renderError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, records.ErrBindingExists):
		s.renderError(w, r, http.StatusConflict, err)
		return
	case err != nil:
		s.renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, binding)
}

func (s *Service) getChannelItems(w http.ResponseWriter, r *http.Request) {
	limit := defaultItemLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 || parsed > maxItemLimit {
			s.renderError(w, r, http.StatusBadRequest, errors.Errorf("limit must be between 1 and %d", maxItemLimit))
			return
		}
		limit = parsed
	}

	items, err := s.channels.ChannelItems(r.Context(), chi.URLParam(r, "channelID"), limit)
	switch {
	case errors.Is(err, lifecycle.ErrChannelNotBound):
		s.renderError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		s.renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	if items == nil {
		items = []playlist.Item{}
	}
	render.JSON(w, r, items)
}

func (s *Service) postBan(w http.ResponseWriter, r *http.Request) {
	var request BanRequest
	if err := render.DecodeJSON(r.Body, &request); err != nil {
		s.renderError(w, r, http.StatusBadRequest, err)
		return
	}

	ban := &records.BanEntry{
		GuildID:    request.GuildID,
		Type:       request.Type,
		Value:      request.Value,
		PlaylistID: request.PlaylistID,
		AuthorID:   request.AuthorID,
		Reason:     request.Reason,
	}

	err := s.bans.CreateBan(r.Context(), ban)
	switch {
	case errors.Is(err, records.ErrInvalidBan):
		s.renderError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		s.renderError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, request)
}

func (s *Service) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
