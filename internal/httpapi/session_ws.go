package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mzelinka/attune/internal/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session manages a single client's websocket connection. All state here is
// owned by one connection and dies with it; nothing is shared across
// sessions, so no locking is needed beyond the write mutex.
type session struct {
	id         string
	remoteAddr string

	conn   *websocket.Conn
	connMu sync.Mutex

	llmClient llm.Client
	logger    *log.Logger

	// Nudges already surfaced on this connection, threaded into every later
	// analysis call. Grows unbounded for the life of the connection.
	previousNudges []string

	ctx    context.Context
	cancel context.CancelFunc
}

func (r *Router) handleSessionWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("session_ws: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())

	s := &session{
		id:         uuid.NewString(),
		remoteAddr: req.RemoteAddr,
		conn:       conn,
		llmClient:  r.llm,
		logger:     r.logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	r.activeConns.Add(1)
	r.totalConns.Add(1)
	defer r.activeConns.Add(-1)

	r.logger.Printf("session_ws: client connected: %s (session %s)", s.remoteAddr, s.id)

	s.run()
}

func (s *session) run() {
	defer s.cleanup()

	s.send(outboundEnvelope{Type: envelopeConnected, Message: welcomeMessage})

	// One message at a time, in order. A second analysis never starts before
	// the first one finishes.
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("session_ws: client disconnected: %s (session %s)", s.remoteAddr, s.id)
			} else {
				s.logger.Printf("session_ws: read error for session %s: %v", s.id, err)
			}
			return
		}

		var inbound inboundMessage
		if err := json.Unmarshal(msg, &inbound); err != nil {
			s.logger.Printf("session_ws: invalid JSON from session %s", s.id)
			s.send(errorEnvelope("Invalid JSON format"))
			continue
		}

		switch inbound.Type {
		case messageTypeTranscript:
			s.send(s.routeTranscript(s.ctx, inbound.Transcripts))

		case messageTypePing:
			s.send(outboundEnvelope{Type: envelopePong, Message: pongMessage})

		default:
			s.send(errorEnvelope(fmt.Sprintf("Unknown message type: %s", inbound.Type)))
		}
	}
}

func (s *session) send(env outboundEnvelope) {
	s.connMu.Lock()
	err := s.conn.WriteJSON(env)
	s.connMu.Unlock()

	if err != nil {
		s.logger.Printf("session_ws: write error for session %s: %v", s.id, err)
	}
}

func (s *session) cleanup() {
	s.cancel()

	s.connMu.Lock()
	_ = s.conn.Close()
	s.connMu.Unlock()

	s.logger.Printf("session_ws: session %s closed", s.id)
}
