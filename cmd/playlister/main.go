package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gitlab.com/Cacophony/Playlister/api"
	"gitlab.com/Cacophony/Playlister/metrics"
	"gitlab.com/Cacophony/Playlister/modules"
	"gitlab.com/Cacophony/Playlister/pkg/bot"
	"gitlab.com/Cacophony/Playlister/pkg/eligibility"
	"gitlab.com/Cacophony/Playlister/pkg/lifecycle"
	"gitlab.com/Cacophony/Playlister/pkg/playlist"
	"gitlab.com/Cacophony/Playlister/pkg/records"
	"gitlab.com/Cacophony/Playlister/pkg/scheduler"
	"gitlab.com/Cacophony/Playlister/pkg/submission"
	"gitlab.com/Cacophony/Playlister/pkg/votes"
	"gitlab.com/Cacophony/Playlister/plugins"
	"gitlab.com/Cacophony/Playlister/plugins/common"
	"gitlab.com/Cacophony/go-kit/errortracking"
	"gitlab.com/Cacophony/go-kit/logging"
	"go.uber.org/zap"
)

const (
	// ServiceName is the name of the service
	ServiceName = "playlister"
)

func main() {
	// init config
	var config config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(errors.Wrap(err, "unable to load configuration"))
	}
	config.ErrorTracking.Version = config.Hash
	config.ErrorTracking.Environment = config.ClusterEnvironment

	// init logger
	logger, err := logging.NewLogger(
		config.Environment,
		ServiceName,
		config.LoggingDiscordWebhook,
		&http.Client{
			Timeout: 10 * time.Second,
		},
	)
	if err != nil {
		panic(errors.Wrap(err, "unable to initialise logger"))
	}
	defer logger.Sync() // nolint: errcheck

	// init raven
	err = errortracking.Init(&config.ErrorTracking)
	if err != nil {
		logger.Error("unable to initialise errortracking",
			zap.Error(err),
		)
	}

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
	})
	_, err = redisClient.Ping().Result()
	if err != nil {
		logger.Fatal("unable to connect to Redis",
			zap.Error(err),
		)
	}

	// init GORM
	gormDB, err := gorm.Open("postgres", config.DBDSN)
	if err != nil {
		logger.Fatal("unable to initialise GORM session",
			zap.Error(err),
		)
	}
	defer gormDB.Close()

	recordStore, err := records.NewStore(gormDB, config.BindingCacheSize)
	if err != nil {
		logger.Fatal("unable to initialise record store",
			zap.Error(err),
		)
	}
	err = recordStore.Migrate()
	if err != nil {
		logger.Fatal("unable to migrate record store",
			zap.Error(err),
		)
	}

	// init youtube
	playlists, err := playlist.NewYouTube(
		ctx,
		logger.With(zap.String("feature", "youtube")),
		&config.YouTube,
	)
	if err != nil {
		logger.Fatal("unable to initialise YouTube playlists",
			zap.Error(err),
		)
	}

	saga := submission.NewSaga(
		logger.With(zap.String("feature", "submission")),
		playlists,
		recordStore,
		eligibility.NewGuard(recordStore),
		config.SubmissionTimeout,
	)

	// init discord
	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		logger.Fatal("unable to create Discord session",
			zap.Error(err),
		)
	}
	session.Identify.Intents = bot.Intents

	self, err := session.User("@me")
	if err != nil {
		logger.Fatal("unable to look up Discord bot user",
			zap.Error(err),
		)
	}
	botID := self.ID

	tally := votes.NewTally(
		logger.With(zap.String("feature", "votes")),
		bot.NewReactionSource(session),
		recordStore,
		botID,
		config.UpvoteEmoji,
		config.DownvoteEmoji,
	)

	reconciler := lifecycle.NewReconciler(
		logger.With(zap.String("feature", "lifecycle")),
		recordStore,
		playlists,
		saga,
	)

	bot.New(
		ctx,
		logger.With(zap.String("feature", "bot")),
		bot.Options{
			BotID:          botID,
			UpvoteEmoji:    config.UpvoteEmoji,
			DownvoteEmoji:  config.DownvoteEmoji,
			DeletePlaylist: config.DeletePlaylistOnChannelDelete,
		},
		saga,
		tally,
		reconciler,
		recordStore,
		bot.NewDiscordNotifier(
			logger.With(zap.String("feature", "notifier")),
			session,
			config.WarningTTL,
		),
	).Register(session)

	// handlers are registered, events can flow now
	err = session.Open()
	if err != nil {
		logger.Fatal("unable to connect to Discord",
			zap.Error(err),
		)
	}

	// init plugins
	startedPlugins := plugins.StartPlugins(
		logger.With(zap.String("feature", "start_plugins")),
		common.StartParameters{
			Redis:           redisClient,
			Records:         recordStore,
			Playlists:       playlists,
			ExpiryInterval:  config.ExpiryInterval,
			ExpiryBatchSize: config.ExpiryBatchSize,
		},
	)

	// init healthchecks.io
	healthchecks := modules.NewHealthchecks(
		logger.With(zap.String("feature", "healthchecksio")),
		config.HealthchecksIOAPIKey,
	)
	jobs := make([]modules.Job, len(startedPlugins))
	for i, plugin := range startedPlugins {
		jobs[i] = plugin
	}
	err = healthchecks.Register(jobs)
	if err != nil {
		logger.Error("unable to register healthchecks.io checks",
			zap.Error(err),
		)
	}

	// init scheduler
	sched := scheduler.NewScheduler(
		logger.With(zap.String("feature", "scheduler")),
		startedPlugins,
	)
	sched.OnSuccess = healthchecks.OnSuccess
	go func() {
		sched.Start(ctx) // nolint: errcheck
	}()

	// init http server
	httpRouter := api.NewRouter(
		logger.With(zap.String("feature", "api")),
		config.Hash,
		sched,
		saga,
		reconciler,
		recordStore,
	)
	httpServer := api.NewHTTPServer(config.Port, httpRouter)

	go func() {
		err := httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			logger.Fatal("http server error",
				zap.Error(err),
				zap.String("feature", "http-server"),
			)
		}
	}()

	logger.Info("service is running",
		zap.Int("port", config.Port),
		zap.String("bot_id", botID),
	)

	// wait for CTRL+C to stop the service
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-quitChannel

	// shutdown features
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*15)
	defer shutdownCancel()

	plugins.StopPlugins(
		logger.With(zap.String("feature", "stop_plugins")),
		common.StopParameters{
			Redis: redisClient,
		},
		startedPlugins,
	)

	err = session.Close()
	if err != nil {
		logger.Error("unable to close Discord session",
			zap.Error(err),
		)
	}

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("unable to shutdown HTTP Server",
			zap.Error(err),
		)
	}
}
