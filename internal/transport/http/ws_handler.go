package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizcroc-service/internal/app"
	"quizcroc-service/internal/domain"
	"quizcroc-service/internal/engine"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type answerPayload struct {
	PlayerID   string `json:"playerId"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type spectatePayload struct {
	PlayerID  string `json:"playerId"`
	Spectator bool   `json:"spectator"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsSink feeds session snapshots to one websocket client. Send never
// blocks; when the client cannot keep up the oldest pending snapshot is
// dropped in favor of the newest.
type wsSink struct {
	events chan engine.Snapshot
}

func newWSSink() *wsSink {
	return &wsSink{events: make(chan engine.Snapshot, 16)}
}

func (s *wsSink) Send(snap engine.Snapshot) {
	select {
	case s.events <- snap:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- snap:
		default:
		}
	}
}

// CreateGame handles PUT /game/create?topic=... by building a new game
// around the topic's quiz.
func (h *WSHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, "missing quiz topic", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateGame(r.Context(), topic)
	if errors.Is(err, domain.ErrQuizNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("create game failed: %v", err)
		http.Error(w, "create game failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(created)
}

// ServeWS upgrades GET /game/{gameID}/ws and wires the connection into the
// session: inbound messages drive the engine, outbound snapshots flow back
// through the connection's sink.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sink := newWSSink()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap := <-sink.events:
				select {
				case send <- outboundMessage[any]{Type: "game", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join":
			var payload joinPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PlayerID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid join payload"}}
				continue
			}
			if err := h.service.Join(r.Context(), gameID, payload.PlayerID, sink); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "next_question":
			if err := h.service.NextQuestion(r.Context(), gameID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			// A rejected submission (duplicate, stale question id) is a
			// deliberate silent no-op; only transport failures surface.
			if _, err := h.service.SubmitAnswer(r.Context(), gameID, payload.PlayerID, payload.QuestionID, payload.Answer); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "play_or_spectate":
			var payload spectatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid spectate payload"}}
				continue
			}
			if err := h.service.SetSpectator(r.Context(), gameID, payload.PlayerID, payload.Spectator); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
