package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ai/internal/pkg"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxMessageSize  = 4096
	shutdownTimeout = 5 * time.Second
)

type gameUseCase interface {
	GetState(ctx context.Context, sessionID string) (entity.Snapshot, error)
	MakeTurn(ctx context.Context, sessionID string, cell int) (entity.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (entity.Snapshot, error)
	SetDifficulty(ctx context.Context, sessionID string, difficulty entity.Difficulty) (entity.Snapshot, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan entity.Snapshot, func(), error)
}

type handlerFunc func(ctx context.Context, sessionID string, msg *Message, conn *connection) error

type Server struct {
	logger      *slog.Logger
	gameUseCase gameUseCase
	upgrader    websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, gameUseCase gameUseCase) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		gameUseCase: gameUseCase,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionState] = server.handleState
	server.handlers[actionTurn] = server.handleGameTurn
	server.handlers[actionReset] = server.handleReset
	server.handlers[actionDifficulty] = server.handleDifficulty

	return server
}

// Handler - routes /ws to the WebSocket endpoint.
func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket and serves the session until the client
// goes away.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	sessionID, cookie := pkg.SessionFromRequest(req)

	var header http.Header
	if cookie != nil {
		header = http.Header{"Set-Cookie": []string{cookie.String()}}
		log.Info("session cookie not found, new one created", "sessionID", sessionID)
	}

	wsConn, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	defer wsConn.Close()

	log.Info("WebSocket connection established", "sessionID", sessionID)

	if err = that.serve(req.Context(), sessionID, &connection{conn: wsConn}); err != nil {
		log.Error("connection closed with error", "sessionID", sessionID, "error", err)
	}
}

func (that *Server) serve(ctx context.Context, sessionID string, conn *connection) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe, err := that.gameUseCase.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.sendErrorResponse("failed to open the session")
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer unsubscribe()

	snapshot, err := that.gameUseCase.GetState(ctx, sessionID)
	if err != nil {
		_ = conn.sendErrorResponse("failed to get the game")
		return fmt.Errorf("failed to get state: %w", err)
	}

	if err = conn.sendSnapshot(snapshot); err != nil {
		return err
	}

	go that.pushUpdates(ctx, cancel, conn, updates)

	return that.handleMessages(ctx, sessionID, conn)
}

// pushUpdates forwards every transition of the session to the client and keeps the connection alive.
// The connection is closed when the subscription ends.
func (that *Server) pushUpdates(ctx context.Context, cancel context.CancelFunc, conn *connection, updates <-chan entity.Snapshot) {
	log := that.logger.With("method", "pushUpdates")

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				log.Info("subscription closed")
				return
			}

			if err := conn.sendSnapshot(snapshot); err != nil {
				log.Error("failed to push snapshot", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, sessionID string, conn *connection) error {
	log := that.logger.With("method", "handleMessages", "sessionID", sessionID)

	conn.conn.SetReadLimit(maxMessageSize)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, reqBody, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("failed to read message: %w", err)
			}

			log.Info("WebSocket connection closed")
			return nil
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			if err = conn.sendErrorResponse("malformed message"); err != nil {
				return err
			}
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			if err = conn.sendErrorResponse(fmt.Sprintf("unknown action %q", message.Action)); err != nil {
				return err
			}
			continue
		}

		if err = handler(ctx, sessionID, &message, conn); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}
