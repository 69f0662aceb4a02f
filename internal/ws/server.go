package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CredentialVerifier checks a station's basic-auth password.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, stationID, password string) error
}

// Server upgrades HTTP connections to WebSockets for OCPP. Stations connect
// to /ocpp/<stationID> with HTTP basic auth, username equal to the station
// identifier.
type Server struct {
	manager      *Manager
	processor    MessageProcessor
	credentials  CredentialVerifier
	logger       *zap.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, processor MessageProcessor, credentials CredentialVerifier, readTimeout, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		manager:      manager,
		processor:    processor,
		credentials:  credentials,
		logger:       logger,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"ocpp2.0.1"},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for /ocpp/{stationID}.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	stationID := strings.TrimPrefix(r.URL.Path, "/ocpp/")
	if stationID == "" || strings.Contains(stationID, "/") {
		http.Error(w, "station id is required", http.StatusBadRequest)
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok || username != stationID {
		w.Header().Set("WWW-Authenticate", `Basic realm="ocpp"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := s.credentials.VerifyPassword(r.Context(), stationID, password); err != nil {
		s.logger.Warn("station auth failed", zap.String("station_id", stationID), zap.Error(err))
		w.Header().Set("WWW-Authenticate", `Basic realm="ocpp"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(stationID, conn, s.processor, s.readTimeout, s.writeTimeout, s.logger, func(id string) {
		s.manager.Remove(id)
		cancel()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("station connected", zap.String("station_id", stationID))
}
