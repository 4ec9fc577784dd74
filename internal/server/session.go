package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tweetsaver/internal/widget"
	"tweetsaver/pkg/protocol"
)

// session is one browser's widget: a controller plus the sockets open on it.
type session struct {
	id   string
	ctrl *widget.Controller

	mu        sync.Mutex
	clients   map[string]*client
	following bool
	lastSeen  time.Time
}

// client is one WebSocket connection.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newSession(id string, ctrl *widget.Controller) *session {
	sess := &session{
		id:       id,
		ctrl:     ctrl,
		clients:  make(map[string]*client),
		lastSeen: time.Now(),
	}
	ctrl.OnUpdate(sess.broadcast)
	return sess
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients) == 0 && s.lastSeen.Before(cutoff)
}

// activity returns when the session was last used and how many sockets it
// has open.
func (s *session) activity() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, len(s.clients)
}

func (s *session) setFollowing(on bool) {
	s.mu.Lock()
	s.following = on
	s.mu.Unlock()
}

func (s *session) isFollowing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.following
}

func (s *session) addClient(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *session) removeClient(id string) {
	s.mu.Lock()
	if c, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(c.send)
	}
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *session) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

// panelUpdate converts a controller snapshot into the wire message.
func (s *session) panelUpdate(snap widget.Snapshot, replyTo string) *protocol.PanelUpdate {
	return &protocol.PanelUpdate{
		BaseMessage: protocol.NewBase(protocol.TypePanelUpdate),
		State:       snap.State.String(),
		Query:       snap.Query,
		ResultsHTML: snap.ResultsHTML,
		SavedHTML:   snap.SavedHTML,
		SavedCount:  snap.SavedCount,
		Placeholder: snap.PlaceholderVisible,
		Following:   s.isFollowing(),
		ReplyTo:     replyTo,
	}
}

// broadcast pushes snap to every socket on the session. Slow sockets miss
// updates rather than block the controller.
func (s *session) broadcast(snap widget.Snapshot) {
	data, err := json.Marshal(s.panelUpdate(snap, ""))
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("failed to encode panel update")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("component", "server").Str("client", c.id).Msg("client send buffer full, dropping update")
		}
	}
}

// sendTo queues msg for one client.
func (s *session) sendTo(c *client, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("failed to encode message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("component", "server").Str("client", c.id).Msg("client send buffer full, dropping message")
	}
}
