package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"quizboard-service/internal/domain"
	"quizboard-service/internal/game"
	"quizboard-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	quizRepo := memory.NewStaticQuizRepository(sampleQuizzes())
	engine := game.NewEngine(game.Config{GamemasterName: "magnus"}, quizRepo, clockwork.NewRealClock())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(engine).ServeWS)
	mux.HandleFunc("/api/quizzes", NewQuizListHandler(quizRepo))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// readUntil skips unrelated broadcasts until the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			payload := map[string]any{}
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &payload); err != nil {
					t.Fatalf("decode %s payload: %v", want, err)
				}
			}
			return payload
		}
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	server := newTestServer(t)

	gm := dialWS(t, server)
	sendEvent(t, gm, game.EvtRegisterUser, map[string]any{"name": "magnus"})
	registered := readUntil(t, gm, game.EvtUserRegistered)
	if registered["role"] != game.RoleGamemaster {
		t.Fatalf("expected gamemaster role, got %v", registered)
	}

	player := dialWS(t, server)
	sendEvent(t, player, game.EvtRegisterUser, map[string]any{"name": "Alice"})
	registered = readUntil(t, player, game.EvtUserRegistered)
	if registered["role"] != game.RolePlayer {
		t.Fatalf("expected player role, got %v", registered)
	}

	sendEvent(t, gm, game.EvtStartGame, map[string]any{"quizId": "quiz-1"})
	started := readUntil(t, player, game.EvtGameStarted)
	if started["quizName"] != "General" {
		t.Fatalf("unexpected gameStarted payload %v", started)
	}

	sendEvent(t, gm, game.EvtSelectQuestion, map[string]any{"category": "History", "value": 100})
	selected := readUntil(t, player, game.EvtQuestionSelected)
	if selected["question"] != "First US president?" {
		t.Fatalf("unexpected question %v", selected)
	}
	if _, leaked := selected["answer"]; leaked {
		t.Fatalf("player copy must not carry the answer: %v", selected)
	}

	sendEvent(t, player, game.EvtPlayerBuzzIn, map[string]any{"playerName": "Alice"})
	buzzed := readUntil(t, gm, game.EvtPlayerBuzzed)
	if buzzed["playerName"] != "Alice" {
		t.Fatalf("unexpected buzz %v", buzzed)
	}

	sendEvent(t, gm, game.EvtAnswerResult, map[string]any{"correct": true})
	correct := readUntil(t, player, game.EvtCorrectAnswer)
	if correct["newScore"] != float64(100) {
		t.Fatalf("expected score 100, got %v", correct)
	}
}

func TestQuizListEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/quizzes")
	if err != nil {
		t.Fatalf("get quizzes: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}

	var quizzes []domain.Quiz
	if err := json.NewDecoder(resp.Body).Decode(&quizzes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
		t.Fatalf("unexpected quiz list %+v", quizzes)
	}
}

func sampleQuizzes() map[string]domain.QuizContent {
	return map[string]domain.QuizContent{
		"quiz-1": {
			Quiz: domain.Quiz{ID: "quiz-1", Name: "General"},
			Questions: []domain.Question{
				{Category: "History", Value: 100, Prompt: "First US president?", Answer: "Washington"},
				{Category: "History", Value: 200, Prompt: "Year WWII ended?", Answer: "1945"},
			},
		},
	}
}
