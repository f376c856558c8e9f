package media

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// WebsocketSource receives encoded segments from the rider's camera over a
// websocket. Every binary message is one chunk, stamped on arrival. Only one
// producer may be connected at a time.
type WebsocketSource struct {
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	chunks   chan Chunk

	mu        sync.Mutex
	connected bool
	seq       uint64
	received  uint64
}

// NewWebsocketSource creates a source with a chunk channel of the given
// capacity.
func NewWebsocketSource(clock clockwork.Clock, capacity int) *WebsocketSource {
	return &WebsocketSource{
		clock: clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		chunks: make(chan Chunk, capacity),
	}
}

// Chunks returns the chunk channel.
func (s *WebsocketSource) Chunks() <-chan Chunk { return s.chunks }

// Active reports whether a producer is connected.
func (s *WebsocketSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Received returns the number of chunks accepted so far.
func (s *WebsocketSource) Received() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// ServeHTTP upgrades the request and pumps binary messages into the chunk
// channel until the producer disconnects.
func (s *WebsocketSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		http.Error(w, "a media producer is already connected", http.StatusConflict)
		return
	}
	s.connected = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Media websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("Media producer connected from %s", r.RemoteAddr)

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Media producer connection error: %v", err)
			}
			log.Printf("Media producer disconnected")
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		s.mu.Lock()
		s.seq++
		chunk := Chunk{Seq: s.seq, CapturedAt: s.clock.Now(), Data: data}
		s.mu.Unlock()

		select {
		case s.chunks <- chunk:
			s.mu.Lock()
			s.received++
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
