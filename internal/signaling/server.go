package signaling

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dotnet-simformsolutions/webrtcapp/internal/config"
	"github.com/dotnet-simformsolutions/webrtcapp/internal/metrics"
	"github.com/dotnet-simformsolutions/webrtcapp/internal/ratelimit"
	"github.com/dotnet-simformsolutions/webrtcapp/internal/room"
)

const writeTimeout = 10 * time.Second

// Server accepts signaling WebSockets and runs one session per connection.
type Server struct {
	log *slog.Logger
	cfg config.Config

	hub      *hub
	upgrader websocket.Upgrader
}

func NewServer(cfg config.Config, logger *slog.Logger, registry *room.Registry, m *metrics.Metrics) *Server {
	return &Server{
		log: logger,
		cfg: cfg,
		hub: newHub(logger, registry, m),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement happens in the shared HTTP middleware before
			// the upgrade; re-checking here would double the policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the signaling endpoint on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
}

// Close force-closes every active session. Their read loops unwind through
// the normal disconnect path.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.log.Debug("websocket upgrade failed", "remote_addr", r.RemoteAddr, "err", err)
		return
	}

	sess := &wsSession{
		id:     uuid.NewString(),
		conn:   conn,
		log:    s.log,
		hub:    s.hub,
		limiter: ratelimit.NewTokenBucket(ratelimit.RealClock{},
			s.cfg.MaxSignalingMessagesPerSecond, s.cfg.MaxSignalingMessagesPerSecond),
		idleTimeout:  s.cfg.SignalingWSIdleTimeout,
		pingInterval: s.cfg.SignalingWSPingInterval,
		maxMsgBytes:  s.cfg.MaxSignalingMessageBytes,
		done:         make(chan struct{}),
	}

	s.log.Info("signaling connection opened",
		"conn_id", sess.id,
		"remote_addr", r.RemoteAddr,
		"request_id", r.Header.Get("X-Request-ID"),
	)

	s.hub.register(sess)
	go sess.pingLoop()
	sess.readLoop()
}

// wsSession is one client's WebSocket connection plus its per-connection
// hardening state. The read loop owns all reads; writes from any goroutine
// serialize through writeMu.
type wsSession struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger
	hub  *hub

	limiter      *ratelimit.TokenBucket
	idleTimeout  time.Duration
	pingInterval time.Duration
	maxMsgBytes  int64

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *wsSession) readLoop() {
	defer func() {
		s.hub.disconnect(s)
		s.close()
		s.log.Info("signaling connection closed", "conn_id", s.id)
	}()

	if s.maxMsgBytes > 0 {
		s.conn.SetReadLimit(s.maxMsgBytes)
	}
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.hub.metrics.Drops.WithLabelValues(metrics.DropReasonMessageTooLarge).Inc()
			} else if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug("websocket read error", "conn_id", s.id, "err", err)
			}
			return
		}
		s.extendReadDeadline()

		// The frame is consumed before the limiter runs; rejecting before the
		// read would leave unread bytes in the kernel buffer and turn the
		// eventual close into a RST.
		if !s.limiter.Allow(1) {
			s.hub.metrics.Drops.WithLabelValues(metrics.DropReasonRateLimited).Inc()
			s.closeWithPolicyViolation("rate limit exceeded")
			return
		}

		msg, err := ParseClientMessage(data)
		if err != nil {
			s.log.Debug("malformed client frame", "conn_id", s.id, "err", err)
			s.hub.sendError(s, "bad_message", "malformed message")
			s.closeWithPolicyViolation("malformed message")
			return
		}
		s.dispatch(msg)
	}
}

func (s *wsSession) dispatch(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeCreateRoom:
		s.hub.createRoom(s, msg.Name)
	case MessageTypeJoin:
		s.hub.join(s, msg.RoomID)
	case MessageTypeMessage:
		s.hub.relay(s, msg.RoomID, msg.Payload)
	case MessageTypeLeave:
		s.hub.leave(s, msg.RoomID)
	case MessageTypeGetRoomInfo:
		s.hub.roomInfo(s)
	}
}

// pingLoop keeps NAT bindings warm and detects dead peers. A client that
// neither sends frames nor answers pings within the idle timeout is dropped
// by the read deadline.
func (s *wsSession) pingLoop() {
	if s.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *wsSession) extendReadDeadline() {
	if s.idleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	}
}

func (s *wsSession) closeWithPolicyViolation(reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeTimeout))
	s.writeMu.Unlock()
	s.close()
}
