package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/config"
	"github.com/rocketscienceinc/tictactoe-ai/internal/repository"
	"github.com/rocketscienceinc/tictactoe-ai/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-ai/internal/service"
	"github.com/rocketscienceinc/tictactoe-ai/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-ai/internal/transport/gemini"
	"github.com/rocketscienceinc/tictactoe-ai/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-ai/transport/rest"
	"github.com/rocketscienceinc/tictactoe-ai/transport/websocket"
)

const janitorInterval = time.Minute

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	sessionRepo, closeStorage, err := newSessionRepository(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer closeStorage()

	difficulty, err := conf.Opponent.ParseDifficulty()
	if err != nil {
		return fmt.Errorf("invalid opponent difficulty: %w", err)
	}

	advisor, err := NewAdvisor(ctx, logger, conf.Gemini)
	if err != nil {
		return err
	}

	gameManager := usecase.NewGameManager(logger, sessionRepo, service.NewBotService(), advisor,
		tictactoe.WithDelay(conf.Opponent.Delay),
		tictactoe.WithDifficulty(difficulty),
	)
	defer gameManager.Close()

	go gameManager.RunJanitor(ctx, conf.Storage.IdleTimeout, janitorInterval)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, rest.NewRouter(logger, gameManager)); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameManager)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// NewAdvisor builds the remote move advisor. Without an API key every remote request falls back to
// the lowest empty cell.
func NewAdvisor(ctx context.Context, logger *slog.Logger, conf config.Gemini) (service.AdvisorService, error) {
	var client *gemini.Client

	if conf.APIKey == "" {
		logger.Warn("gemini api key is not set, the remote opponent plays the fallback move")
	} else {
		var err error
		client, err = gemini.New(ctx, conf.APIKey, conf.Model, conf.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("could not create gemini client: %w", err)
		}
	}

	return service.NewAdvisorService(logger, client, conf.Timeout), nil
}

func newSessionRepository(ctx context.Context, logger *slog.Logger, conf *config.Config) (repository.SessionRepository, func(), error) {
	if conf.Storage.Type == config.StorageMemory {
		logger.Info("sessions are kept in memory")
		return repository.NewMemorySessionRepository(conf.Storage.SessionTTL), func() {}, nil
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeStorage := func() {
		if err := redisStorage.Close(); err != nil {
			logger.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewSessionRepository(redisStorage, conf.Storage.SessionTTL), closeStorage, nil
}
