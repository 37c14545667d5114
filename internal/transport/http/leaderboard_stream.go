package http

import (
	"encoding/json"
	"net/http"
	"time"

	"contest-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// LeaderboardStream pushes leaderboard snapshots of one contest over a websocket.
type LeaderboardStream struct {
	contests *app.ContestService
	upgrader websocket.Upgrader
}

func NewLeaderboardStream(contests *app.ContestService) *LeaderboardStream {
	return &LeaderboardStream{
		contests: contests,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Serve subscribes before upgrading so an unknown contest is reported as a
// regular error response. Clients may send {"type":"refresh"} to get a fresh board.
func (s *LeaderboardStream) Serve(c *gin.Context) {
	contestID := c.Param("id")
	ctx := c.Request.Context()

	updates, cancel, err := s.contests.Subscribe(ctx, contestID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer cancel()

	log := loggerFrom(c).WithField("contest", contestID)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case lb, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "leaderboard", Payload: lb}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			lb, err := s.contests.Leaderboard(ctx, contestID)
			if err != nil {
				push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage{Type: "leaderboard", Payload: lb})
		default:
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
