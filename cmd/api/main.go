package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportclub/internal/api"
	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/domain"
	"sportclub/internal/events"
	"sportclub/internal/export"
	"sportclub/internal/google"
	"sportclub/internal/logging"
	"sportclub/internal/metrics"
	"sportclub/internal/models"
	"sportclub/internal/notify"
	"sportclub/internal/repository"
	"sportclub/internal/service"
	"sportclub/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, serving without auth and rate limits")
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	bus := events.NewEventBus()
	initTelegram(ctx, cfg, db, bus, &logger)

	var syncWorker domain.SyncWorker
	if sheets := initGoogleSheets(ctx, cfg, &logger); sheets != nil {
		w := worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicy{}, &logger)
		go w.Start(ctx)
		go sheets.RefreshCache(ctx, 30*time.Minute)
		syncWorker = w
	}

	svc := buildServices(cfg, db, redisClient, bus, syncWorker, &logger)
	if err := syncFacilities(ctx, cfg, svc.Facilities, &logger); err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger)
		go backups.Start(ctx)
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, svc, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}
	httpServer := api.NewHTTPServer(&cfg.API, svc, db, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadFacilities reads the facility seed file. A missing file means the
// registry is managed through the API only.
func loadFacilities(path string, logger *zerolog.Logger) ([]*models.Facility, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("facilities_path", path).Msg("no facility seed file")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read facilities: %w", err)
	}

	var seed struct {
		Facilities []*models.Facility `yaml:"facilities"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse facilities: %w", err)
	}
	return seed.Facilities, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	for i := range cfg.Clubs {
		if err := db.UpsertClub(ctx, &cfg.Clubs[i]); err != nil {
			db.Close()
			return nil, fmt.Errorf("upsert club %d: %w", cfg.Clubs[i].ID, err)
		}
	}
	return db, nil
}

// syncFacilities loads the seed file through the facility service, which drops the
// cached entries of every synced facility.
func syncFacilities(ctx context.Context, cfg *config.Config, facilities *service.FacilityService, logger *zerolog.Logger) error {
	path := cfg.Booking.FacilitiesPath
	if env := os.Getenv("FACILITIES_PATH"); env != "" {
		path = env
	}
	seed, err := loadFacilities(path, logger)
	if err != nil || len(seed) == 0 {
		return err
	}
	if err := facilities.Sync(ctx, seed); err != nil {
		return fmt.Errorf("sync facilities: %w", err)
	}
	logger.Info().Int("count", len(seed)).Str("facilities_path", path).Msg("facility seed applied")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func facilityCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.FacilityCache {
	ttl := cfg.FacilityCacheTTL()
	memory := repository.NewMemoryFacilityCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverFacilityCache(repository.NewRedisFacilityCache(redisClient, ttl), memory, logger)
}

func buildServices(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	syncWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *api.Services {
	facilities := service.NewFacilityService(db, facilityCache(cfg, redisClient, logger), logger)
	bookings := service.NewBookingService(db, facilities, bus, syncWorker, cfg.Booking.EnforceCapacity, logger)
	return &api.Services{
		Availability: service.NewAvailabilityService(db, facilities, logger),
		Facilities:   facilities,
		Bookings:     bookings,
		Calendar:     service.NewCalendarService(db, bookings, logger),
		Clubs:        service.NewClubService(db, logger),
		Exporter:     export.NewScheduleExporter(db, cfg.Exports.Path, logger),
	}
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		email, _ := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("service_account", email).Msg("google sheets unreachable, share the spreadsheet with the service account")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("write sheets header")
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("warm up sheets row cache")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// telegramTimeout bounds every Bot API request.
const telegramTimeout = 15 * time.Second

func initTelegram(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
		return
	}

	client := &http.Client{Timeout: telegramTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	locations := make(map[int64]*time.Location, len(cfg.Clubs))
	for i := range cfg.Clubs {
		locations[cfg.Clubs[i].ID] = cfg.Clubs[i].Location()
	}

	notifier := notify.NewTelegramNotifier(bot, cfg.Telegram.ChatIDs, locations, logger)
	notifier.Subscribe(bus)
	go notifier.Start(ctx)

	if cfg.Telegram.ReminderTime != "" {
		reminder, err := notify.NewReminder(bot, db, cfg.Telegram.ChatIDs, locations, cfg.Telegram.ReminderTime, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("booking digest disabled")
		} else {
			go reminder.Start(ctx)
		}
	}
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.ChatIDs)).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
