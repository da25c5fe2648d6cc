package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizcroc-service/internal/app"
	"quizcroc-service/internal/domain"
	"quizcroc-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.GameService) {
	t.Helper()
	source := memory.NewQuizSource(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"math": {
			Name: "Quick Math",
			Questions: []domain.QuizQuestion{
				{Text: "What is 2 + 2?", CorrectAnswer: "4"},
				{Text: "Pick the prime", CorrectAnswer: "7", Alternatives: []string{"4", "6", "7", "9"}},
			},
		},
	}), time.Minute)
	service := app.NewGameService(memory.NewStateStore(), source)
	handler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /game/create", handler.CreateGame)
	mux.HandleFunc("GET /game/{gameID}/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func createGame(t *testing.T, server *httptest.Server, topic string) app.CreatedGame {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, server.URL+"/game/create?topic="+topic, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create game status %d", resp.StatusCode)
	}
	var created app.CreatedGame
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created game: %v", err)
	}
	return created
}

func dialGame(t *testing.T, server *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/game/" + gameID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}

// readGameState drains messages until a game snapshot in the wanted state
// arrives.
func readGameState(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(t, conn)
		if typ == "game" && payload["gameState"] == want {
			return payload
		}
	}
	t.Fatalf("never saw game state %s", want)
	return nil
}

func TestCreateGameValidation(t *testing.T) {
	server, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, server.URL+"/game/create", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing topic: status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, server.URL+"/game/create?topic=unknown", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown topic: status %d", resp.StatusCode)
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	server, _ := newTestServer(t)
	created := createGame(t, server, "math")
	if created.QuizName != "Quick Math" || created.QuestionCount != 2 {
		t.Fatalf("unexpected created game: %+v", created)
	}

	conn := dialGame(t, server, created.GameID)

	if err := conn.WriteJSON(map[string]any{
		"type":    "join",
		"payload": map[string]any{"playerId": "alice"},
	}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	snap := readGameState(t, conn, "PREPARE")
	if snap["gameId"] != created.GameID {
		t.Fatalf("snapshot for wrong game: %v", snap["gameId"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "next_question"}); err != nil {
		t.Fatalf("write next: %v", err)
	}
	snap = readGameState(t, conn, "QUESTION")
	current, ok := snap["currentQuestion"].(map[string]any)
	if !ok {
		t.Fatalf("no live question in snapshot: %v", snap)
	}
	if _, leaked := current["correctAnswer"]; leaked {
		t.Fatalf("correct answer leaked on live question: %v", current)
	}

	// The only active player answers: early close, reveal follows.
	if err := conn.WriteJSON(map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"playerId":   "alice",
			"questionId": current["id"],
			"answer":     "4",
		},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	snap = readGameState(t, conn, "BETWEEN_QUESTIONS")
	last, ok := snap["lastQuestion"].(map[string]any)
	if !ok || last["correctAnswer"] != "4" {
		t.Fatalf("reveal missing: %v", snap["lastQuestion"])
	}

	score, ok := snap["score"].([]any)
	if !ok || len(score) != 1 {
		t.Fatalf("score table missing: %v", snap["score"])
	}
	row := score[0].(map[string]any)
	if row["playerId"] != "alice" || row["score"] != float64(100) {
		t.Fatalf("unexpected score row: %v", row)
	}
}

func TestWebSocketSpectatorToggle(t *testing.T) {
	server, _ := newTestServer(t)
	created := createGame(t, server, "math")
	conn := dialGame(t, server, created.GameID)

	_ = conn.WriteJSON(map[string]any{"type": "join", "payload": map[string]any{"playerId": "alice"}})
	readGameState(t, conn, "PREPARE")

	_ = conn.WriteJSON(map[string]any{
		"type":    "play_or_spectate",
		"payload": map[string]any{"playerId": "alice", "spectator": true},
	})
	snap := readGameState(t, conn, "PREPARE")
	if score, ok := snap["score"].([]any); ok && len(score) != 0 {
		t.Fatalf("spectator still in score table: %v", score)
	}
}

func TestWebSocketUnknownMessageType(t *testing.T) {
	server, _ := newTestServer(t)
	created := createGame(t, server, "math")
	conn := dialGame(t, server, created.GameID)

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, payload := readNext(t, conn)
	if typ != "error" || payload["message"] != "unsupported message type" {
		t.Fatalf("expected protocol error, got %s %v", typ, payload)
	}
}
