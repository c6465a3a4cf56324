// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/termbridge/termbridge/internal/breaker"
)

const (
	clientBuffer = 16
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds loopback only, so the browser origin carries no
	// trust signal worth checking.
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventHub fans breaker transitions out to websocket subscribers. Each
// event carries a monotonic seq so a reconnecting client can tell whether
// it missed any.
type eventHub struct {
	mu      sync.Mutex
	seq     uint64
	clients map[*websocket.Conn]chan []byte
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *eventHub) publish(ev breaker.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warnf("api: encode event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	data, err = sjson.SetBytes(data, "seq", h.seq)
	if err != nil {
		log.Warnf("api: tag event: %v", err)
		return
	}
	for _, ch := range h.clients {
		// A subscriber that stopped draining loses events rather than
		// stalling the publisher.
		select {
		case ch <- data:
		default:
		}
	}
}

func (h *eventHub) add(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *eventHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) eventsHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("api: websocket upgrade: %v", err)
		return
	}
	ch := s.hub.add(conn)
	defer s.hub.remove(conn)
	defer conn.Close()

	// The stream is one-way. The read loop only exists to notice the peer
	// going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case data := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
