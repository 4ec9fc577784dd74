package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tweetsaver/internal/widget"
	"tweetsaver/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// handleWebSocket upgrades the connection and binds it to the caller's
// session. The current panels are sent straight away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, cookie, err := s.session(r)
	if errors.Is(err, ErrSessionLimit) {
		http.Error(w, "too many open sessions", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("failed to create session")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	var header http.Header
	if cookie != nil {
		header = http.Header{"Set-Cookie": []string{cookie.String()}}
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Warn().Err(err).Str("component", "server").Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ip:   clientIP(r),
	}
	sess.addClient(c)
	log.Debug().Str("component", "server").Str("session", sess.id).Str("client", c.id).Msg("client connected")

	sess.sendTo(c, sess.panelUpdate(sess.ctrl.Page(), ""))

	go s.writePump(c)
	go s.readPump(sess, c)
}

func (s *Server) readPump(sess *session, c *client) {
	defer func() {
		sess.removeClient(c.id)
		c.conn.Close()
		log.Debug().Str("component", "server").Str("client", c.id).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("component", "server").Str("client", c.id).Msg("websocket read error")
			}
			return
		}
		sess.touch()

		parsed, err := protocol.ParseMessage(data)
		if err != nil {
			sess.sendTo(c, protocol.NewErrorResponse("", "unreadable message"))
			continue
		}

		if s.limiter != nil {
			if d := s.limiter.Allow(c.ip); !d.Allowed {
				sess.sendTo(c, protocol.NewErrorResponse(messageID(parsed), "rate limit exceeded, slow down"))
				continue
			}
		}

		s.dispatch(sess, c, parsed)
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("component", "server").Str("client", c.id).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch applies one browser action on the read loop, so actions take
// effect in the order the socket delivered them. Only the search request
// itself runs in the background. Successful actions reach the browser
// through the controller's update hook; only failures are answered here.
func (s *Server) dispatch(sess *session, c *client, parsed interface{}) {
	ctx := context.Background()

	switch msg := parsed.(type) {
	case *protocol.SearchRequest:
		req, err := sess.ctrl.Submit(msg.Query)
		if err != nil {
			return
		}
		go func() {
			raw, err := sess.ctrl.Fetch(ctx, req)
			sess.ctrl.Deliver(req, raw, err)
			if err != nil {
				log.Debug().Err(err).Str("component", "server").Str("query", req.Query).Msg("search failed")
			}
		}()

	case *protocol.DropRequest:
		outcome, err := sess.ctrl.Drop(ctx, msg.Payload)
		if err != nil {
			sess.sendTo(c, protocol.NewErrorResponse(msg.ID, "could not save tweet"))
			return
		}
		if outcome != widget.DropSaved {
			sess.sendTo(c, sess.panelUpdate(sess.ctrl.Page(), msg.ID))
		}

	case *protocol.DeleteRequest:
		if err := sess.ctrl.Delete(ctx, msg.TweetID); err != nil {
			sess.sendTo(c, protocol.NewErrorResponse(msg.ID, "could not delete saved tweet"))
		}

	case *protocol.FollowRequest:
		if s.config.Follower == nil {
			sess.sendTo(c, protocol.NewErrorResponse(msg.ID, "follow is not enabled on this server"))
			return
		}
		if msg.Enabled {
			s.config.Follower.Add(sess.id, sess.ctrl)
		} else {
			s.config.Follower.Remove(sess.id)
		}
		sess.setFollowing(msg.Enabled)
		sess.broadcast(sess.ctrl.Page())

	default:
		sess.sendTo(c, protocol.NewErrorResponse(messageID(parsed), "unsupported action"))
	}
}

func messageID(parsed interface{}) string {
	switch m := parsed.(type) {
	case *protocol.SearchRequest:
		return m.ID
	case *protocol.DropRequest:
		return m.ID
	case *protocol.DeleteRequest:
		return m.ID
	case *protocol.FollowRequest:
		return m.ID
	case *protocol.PanelUpdate:
		return m.ID
	case *protocol.ErrorResponse:
		return m.ID
	}
	return ""
}
