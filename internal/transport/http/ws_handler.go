package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizboard-service/internal/game"
)

type WSHandler struct {
	engine   *game.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *game.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game
// engine. The read loop only enqueues frames; the engine replies through the
// client's outbound channel, drained by the writer goroutine. The engine is
// the sole closer of that channel, on detach.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	client := game.NewConn(uuid.New().String(), 64)
	h.engine.Attach(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range client.Outbound() {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", client.ID).Msg("ws write error")
				return
			}
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.engine.Dispatch(client.ID, frame)
	}

	h.engine.Detach(client.ID)
	<-writerDone
}
