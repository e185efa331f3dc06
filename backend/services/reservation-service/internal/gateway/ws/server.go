package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier func(token string) (int64, error)

// Server upgrades HTTP connections to WebSockets for availability subscribers.
type Server struct {
	ctx      context.Context
	hub      *Hub
	verify   TokenVerifier
	opts     ClientOptions
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer builds ws server. Connections live until ctx is cancelled or the peer leaves.
// verify may be nil, in which case a token is ignored.
func NewServer(ctx context.Context, hub *Hub, verify TokenVerifier, opts ClientOptions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ctx:    ctx,
		hub:    hub,
		verify: verify,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws endpoint. Subscriptions are public; a token, when given,
// must be valid.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" && s.verify != nil {
		id, err := s.verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), userID, conn, s.hub, s.opts, s.logger)
	s.hub.Register(client)

	s.logger.Info("client connected", zap.String("client_id", client.ID()), zap.Int64("user_id", client.UserID()))
	go func() {
		client.Run(s.ctx)
		s.logger.Info("client disconnected", zap.String("client_id", client.ID()), zap.Int64("user_id", client.UserID()))
	}()
}
