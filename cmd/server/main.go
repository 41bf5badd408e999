package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	httpapi "github.com/immxrtalbeast/videomeet/internal/api/http"
	"github.com/immxrtalbeast/videomeet/internal/config"
	"github.com/immxrtalbeast/videomeet/internal/repository"
	"github.com/immxrtalbeast/videomeet/internal/repository/model"
	"github.com/immxrtalbeast/videomeet/internal/service"
	"github.com/immxrtalbeast/videomeet/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	history := setupHistory(cfg.Database, log)

	coordinator := service.NewRoomCoordinator(history, log)
	roomController := httpapi.NewRoomController(coordinator, history, log)

	router := httpapi.SetupRouter(roomController, cfg.HTTP.AllowedOrigins, cfg.WebRTC.STUNServers)

	log.Info("starting signaling server", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupHistory connects the meeting-history store. History is a
// fire-and-forget collaborator: without a DSN records stay in memory.
func setupHistory(cfg config.DatabaseConfig, log *slog.Logger) repository.HistoryRepository {
	if cfg.DSN == "" {
		log.Info("no database dsn, keeping meeting history in memory")
		return repository.NewInMemoryHistoryRepository()
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		log.Error("failed to connect database, falling back to memory", slog.Any("error", err))
		return repository.NewInMemoryHistoryRepository()
	}
	return repository.NewPostgresHistoryRepository(db)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.MeetingRecord{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
