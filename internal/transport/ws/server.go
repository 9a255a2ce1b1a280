// Package ws streams run events to WebSocket clients.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/millrun/internal/config"
	"github.com/xiaot623/millrun/internal/hub"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub) *Server {
	return &Server{
		cfg: cfg,
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and follows the run named by the
// run_id query parameter, or every run when it is absent.
// GET /api/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR: failed to upgrade WebSocket: %v", err)
		return err
	}

	runID := c.QueryParam("run_id")
	conn := s.hub.NewConnection(ws, runID)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	s.sendSubscribed(conn, runID)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg hub.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case hub.TypeSubscribe:
		s.hub.Subscribe(conn, baseMsg.RunID)
		s.sendSubscribed(conn, baseMsg.RunID)
	default:
		s.sendError(conn, "unknown message type: "+baseMsg.Type)
	}
}

func (s *Server) sendSubscribed(conn *hub.Connection, runID string) {
	ack := hub.SubscribeMessage{
		BaseMessage: hub.BaseMessage{
			Type:  hub.TypeSubscribed,
			Ts:    time.Now().UnixMilli(),
			RunID: runID,
		},
	}
	if err := s.hub.SendJSONToConnection(conn, ack); err != nil {
		log.Printf("WARN: failed to ack subscription on %s: %v", conn.ID, err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, message string) {
	errMsg := hub.ErrorMessage{
		BaseMessage: hub.BaseMessage{
			Type:  hub.TypeError,
			Ts:    time.Now().UnixMilli(),
			RunID: conn.RunID,
		},
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
