// Package transport exposes the HTTP surface: session creation and the
// websocket channel that carries actions in and state frames out.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridvale/server/internal/config"
	"github.com/gridvale/server/internal/game"
	"github.com/gridvale/server/internal/protocol"
)

// Server routes HTTP and websocket traffic to the session manager.
type Server struct {
	cfg      config.ServerConfig
	manager  *game.Manager
	log      *zap.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

func NewServer(cfg config.ServerConfig, manager *game.Manager, log *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/create-game", s.handleCreateGame)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:        cfg.BindAddress,
		Handler:     mux,
		ReadTimeout: cfg.ReadTimeout,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.cfg.BindAddress))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := s.manager.CreateSession()
	if err != nil {
		s.log.Error("create session", zap.Error(err))
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"gameId": id})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.manager.SessionCount(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	playerID := r.URL.Query().Get("playerId")
	if gameID == "" || playerID == "" {
		http.Error(w, "missing gameId or playerId", http.StatusBadRequest)
		return
	}

	session, err := s.manager.Get(gameID)
	if err != nil {
		http.Error(w, "unknown game", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.String("player", playerID), zap.Error(err))
		return
	}

	client := newWSClient(playerID, conn, s.cfg.WriteTimeout, s.log)
	session.Join(client)
	go client.writePump()

	s.log.Info("client connected", zap.String("session", gameID), zap.String("player", playerID))
	s.readLoop(session, client, conn, playerID)

	session.Leave(client)
	client.close()
	s.log.Info("client disconnected", zap.String("session", gameID), zap.String("player", playerID))
}

// readLoop pulls action frames off the wire until the connection dies.
// Malformed frames are dropped, not fatal.
func (s *Server) readLoop(session *game.Session, client *wsClient, conn *websocket.Conn, playerID string) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		action, err := protocol.DecodeEnvelope(payload)
		if err != nil {
			s.log.Debug("discarding malformed action", zap.String("player", playerID), zap.Error(err))
			continue
		}
		// The connection's identity wins over whatever the frame claims.
		action.PlayerID = playerID

		session.Dispatch(action)
	}
}
