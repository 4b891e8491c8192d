package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bigbrain-client/internal/api"
	"bigbrain-client/internal/api/apitest"
	"bigbrain-client/internal/app"
	"bigbrain-client/internal/domain"
	"bigbrain-client/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

func newPlayer(t *testing.T) (*app.PlayerMachine, *apitest.Backend) {
	t.Helper()
	ctx := context.Background()
	backend := apitest.NewBackend()
	server := backend.Serve()
	t.Cleanup(server.Close)

	clock := clockwork.NewFakeClock()
	client := api.NewClient(server.URL, time.Second)
	players := app.NewPlayerService(client, app.NewPlayerStore(memory.NewStore()), clock, app.DefaultMachineConfig())
	if _, err := players.Join(ctx, "12345678", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	machine, err := players.Machine(ctx, "")
	if err != nil {
		t.Fatalf("machine: %v", err)
	}

	backend.Start()
	backend.SetQuestion(apitest.Question{
		ID:             "q1",
		Text:           "What is 2 + 2?",
		Type:           "single",
		Duration:       30,
		Points:         1,
		Answers:        []string{"3", "4", "5"},
		CorrectAnswers: []string{"4"},
		StartedAt:      clock.Now(),
	})
	if err := machine.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	return machine, backend
}

func TestWebSocketSelectFlow(t *testing.T) {
	machine, backend := newPlayer(t)
	server := httptest.NewServer(NewRouter(machine, nil))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "state")
	if payload["state"] != string(domain.StateActive) {
		t.Fatalf("expected active state first, got %v", payload["state"])
	}

	bad := map[string]any{"type": "select", "payload": map[string]any{"answer": "42"}}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write select: %v", err)
	}
	if _, payload := readUntil(conn, t, "error"); payload["message"] != domain.ErrUnknownAnswer.Error() {
		t.Fatalf("unexpected error payload %v", payload)
	}

	pick := map[string]any{"type": "select", "payload": map[string]any{"answer": "4"}}
	if err := conn.WriteJSON(pick); err != nil {
		t.Fatalf("write select: %v", err)
	}
	for {
		_, payload := readUntil(conn, t, "state")
		if payload["submitted"] == true {
			break
		}
	}
	if subs := backend.Submissions(); len(subs) != 1 || subs[0][0] != "4" {
		t.Fatalf("expected one submission of 4, got %v", subs)
	}

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, payload := readUntil(conn, t, "error"); payload["message"] != "unsupported message type" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestStateAndHealth(t *testing.T) {
	machine, _ := newPlayer(t)
	server := httptest.NewServer(NewRouter(machine, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	defer resp.Body.Close()
	var snap app.PlayerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Question == nil || snap.Question.ID != "q1" || snap.Name != "Alice" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	resp, err = http.Get(server.URL + "/admin/state")
	if err != nil {
		t.Fatalf("admin state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("admin routes should be absent without a monitor, got %d", resp.StatusCode)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// readUntil skips interleaved state pushes until a message of type expect.
func readUntil(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == expect {
			return typ, payload
		}
	}
	t.Fatalf("no %s message received", expect)
	return "", nil
}
