package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bigbrain-client/internal/app"
	"bigbrain-client/internal/domain"
)

func newAdmin(h *harness) *app.AdminService {
	return app.NewAdminService(h.client, h.kv, h.clock, app.DefaultMachineConfig())
}

func TestAdminRequiresLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := newAdmin(h)

	if _, err := admin.ListGames(ctx); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if err := admin.Login(ctx, "admin@example.com", "wrong"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if err := admin.Login(ctx, "admin@example.com", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if email, err := admin.Email(ctx); err != nil || email != "admin@example.com" {
		t.Fatalf("expected stored email, got %q %v", email, err)
	}

	if err := admin.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := h.kv.Get(ctx, "token"); ok {
		t.Fatalf("token should be removed on logout")
	}
	if _, err := admin.ListGames(ctx); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated after logout, got %v", err)
	}
}

func TestAdminSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := newAdmin(h)
	if err := admin.Login(ctx, "admin@example.com", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := admin.StartGame(ctx, "nope"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found, got %v", err)
	}
	sessionID, err := admin.StartGame(ctx, "g1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if gameID, _, _ := h.kv.Get(ctx, "session_"+sessionID+"_gameId"); gameID != "g1" {
		t.Fatalf("expected session mapped to g1, got %q", gameID)
	}
	if _, err := admin.StartGame(ctx, "g1"); !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}

	mutations := len(h.backend.Mutations())
	if _, err := admin.Advance(ctx, "99999"); !errors.Is(err, domain.ErrGameIDNotFound) {
		t.Fatalf("expected missing game id, got %v", err)
	}
	if len(h.backend.Mutations()) != mutations {
		t.Fatalf("advance without a game id must not reach the backend")
	}

	h.backend.SetQuestion(h.question("q1", "single", 10, []string{"Paris", "Lyon"}, []string{"Paris"}))
	status, err := admin.Advance(ctx, sessionID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if status.Position != 0 {
		t.Fatalf("expected position 0, got %d", status.Position)
	}

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := h.client.JoinSession(ctx, sessionID, name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}

	stopped, err := admin.EndGame(ctx, "g1")
	if err != nil || stopped != sessionID {
		t.Fatalf("end: %q %v", stopped, err)
	}
	if _, err := admin.EndGame(ctx, "g1"); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}

	rankings, err := admin.SessionResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(rankings) != 3 || rankings[0].Score != 1 || rankings[2].Score != 0 {
		t.Fatalf("unexpected rankings %+v", rankings)
	}
	if rankings[0].Name != "Alice" || rankings[1].Name != "Carol" {
		t.Fatalf("expected ties broken by name, got %+v", rankings)
	}
}

func TestStartGameTreatsFalsyActiveAsIdle(t *testing.T) {
	ctx := context.Background()
	for _, idle := range []any{0, false, "", nil} {
		h := newHarness(t)
		h.backend.SetIdleMarker(idle)
		admin := newAdmin(h)
		if err := admin.Login(ctx, "admin@example.com", "hunter2"); err != nil {
			t.Fatalf("login: %v", err)
		}

		if _, err := admin.EndGame(ctx, "g1"); !errors.Is(err, domain.ErrNoActiveSession) {
			t.Fatalf("active=%#v: expected no active session before start, got %v", idle, err)
		}
		sessionID, err := admin.StartGame(ctx, "g1")
		if err != nil {
			t.Fatalf("active=%#v: start: %v", idle, err)
		}
		if stopped, err := admin.EndGame(ctx, "g1"); err != nil || stopped != sessionID {
			t.Fatalf("active=%#v: end: %q %v", idle, stopped, err)
		}
		if got := h.backend.Mutations(); len(got) != 2 || got[0] != "START" || got[1] != "END" {
			t.Fatalf("active=%#v: unexpected mutations %v", idle, got)
		}
	}
}

func TestSaveGamesValidatesFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := newAdmin(h)
	if err := admin.Login(ctx, "admin@example.com", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	games, err := admin.ListGames(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := admin.SaveGames(ctx, games); err != nil {
		t.Fatalf("save unchanged games: %v", err)
	}

	bad := domain.Game{ID: "g2", Name: "Broken", Questions: []domain.Question{{
		Text:     "Pick one",
		Type:     domain.QuestionSingle,
		Duration: 10,
		Points:   1,
		Answers:  []string{"only"},
	}}}
	err = admin.SaveGames(ctx, append(games, bad))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	saves := h.backend.Calls("save-games")
	for name, question := range map[string]string{
		"judgement with three answers": `{"text":"Sky blue?","type":"judgement","duration":10,"points":1,"answers":[{"text":"a"},{"text":"b"},{"text":"c"}],"correctAnswers":["True"]}`,
		"unknown type":                 `{"text":"Pick","type":"bogus","duration":10,"points":1,"answers":[{"text":"a"},{"text":"b"}],"correctAnswers":["a"]}`,
	} {
		h.backend.SetGames(`[{"id":"g1","name":"Capitals","active":null,"questions":[` + question + `]}]`)
		stored, err := admin.ListGames(ctx)
		if err != nil {
			t.Fatalf("%s: list: %v", name, err)
		}
		if err := admin.SaveGames(ctx, stored); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if n := h.backend.Calls("save-games"); n != saves {
		t.Fatalf("invalid games reached the backend: %d saves, want %d", n, saves)
	}
}

func TestSessionMonitorFollowsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := newAdmin(h)
	if err := admin.Login(ctx, "admin@example.com", "hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	sessionID, err := admin.StartGame(ctx, "g1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	monitor, err := admin.Monitor(ctx, sessionID)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if err := monitor.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if snap := monitor.Snapshot(); snap.Question != nil || snap.Finished {
		t.Fatalf("expected lobby, got %+v", snap)
	}

	h.backend.SetQuestion(h.question("q1", "single", 10, []string{"Paris", "Lyon"}, []string{"Paris"}))
	if err := monitor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	snap := monitor.Snapshot()
	if snap.Question == nil || snap.Question.ID != "q1" || snap.Remaining != 10 || snap.Position != 0 {
		t.Fatalf("expected q1 with 10s, got %+v", snap)
	}

	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Second)
		monitor.Tick()
	}
	if snap := monitor.Snapshot(); snap.Remaining != 7 {
		t.Fatalf("expected 7s left, got %d", snap.Remaining)
	}

	h.backend.Reveal()
	if err := monitor.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if snap := monitor.Snapshot(); !snap.AnswerAvailable || snap.Remaining != 0 {
		t.Fatalf("expected answer available, got %+v", snap)
	}

	if _, err := admin.EndGame(ctx, "g1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := monitor.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !monitor.Finished() {
		t.Fatalf("expected monitor finished once session inactive")
	}
}
