package web

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/juicescan/internal/middleware"
	"github.com/R3E-Network/juicescan/internal/project"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamBuffer     = 64
	streamReadLimit  = 4096
)

// streamCommand switches the project or ruleset a stream follows. Empty
// fields keep their current value.
type streamCommand struct {
	ProjectID string `json:"projectId,omitempty"`
	ChainID   uint64 `json:"chainId,omitempty"`
	Ruleset   string `json:"ruleset,omitempty"`
}

func (c streamCommand) apply(req project.Request) (project.Request, error) {
	if c.ProjectID != "" {
		id, ok := new(big.Int).SetString(c.ProjectID, 10)
		if !ok || id.Sign() <= 0 {
			return req, ErrInvalidProjectID
		}
		req.ProjectID = id
	}
	if c.ChainID != 0 {
		req.ChainID = c.ChainID
	}
	if c.Ruleset != "" {
		req.Selection = project.ParseSelection(c.Ruleset)
	}
	return req, nil
}

func (s *Server) upgrader() *websocket.Upgrader {
	cors := middleware.NewCORS(s.origins)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				return true
			}
			return cors.Allowed(origin)
		},
	}
}

// stream pushes project field updates over a websocket as each read lands.
// Every load is tagged with a generation; a command from the client starts a
// new generation and updates of older ones are never sent.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	req, err := requestFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.WithContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	log := s.log.WithContext(r.Context()).WithField("project_id", req.ProjectID.String())
	log.Debug("project stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	out := make(chan project.Update, streamBuffer)
	session := project.NewSession(s.loader)
	writerDone := make(chan struct{})

	defer func() {
		cancel()
		session.Close()
		<-writerDone
		log.Debug("project stream closed")
	}()

	send := func(u project.Update) {
		select {
		case out <- u:
		case <-ctx.Done():
		}
	}

	go s.writeStream(ctx, cancel, conn, out, session.Generation, writerDone)
	session.Start(ctx, req, send)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("project stream read failed")
			}
			return
		}
		var cmd streamCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			send(project.Update{Generation: session.Generation(), Final: true, Error: fmt.Sprintf("invalid command: %v", err)})
			continue
		}
		next, err := cmd.apply(req)
		if err != nil {
			send(project.Update{Generation: session.Generation(), Final: true, Error: err.Error()})
			continue
		}
		req = next
		session.Start(ctx, req, send)
	}
}

// writeStream writes queued updates to conn. Updates queued before a newer
// generation started are dropped at write time.
func (s *Server) writeStream(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan project.Update, current func() uint64, done chan<- struct{}) {
	defer close(done)
	defer conn.Close()
	defer cancel()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			return
		case u := <-out:
			if u.Generation < current() {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
