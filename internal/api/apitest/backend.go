// Package apitest provides an in-process fake of the BigBrain REST backend.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Question is the fixture served by the player question endpoint.
type Question struct {
	ID             string
	Text           string
	Type           string
	Duration       int
	Points         int
	Answers        []string
	CorrectAnswers []string
	StartedAt      time.Time
	// Nesting wraps the payload in this many single-element arrays.
	Nesting int
}

func (q Question) payload() any {
	answers := make([]map[string]string, 0, len(q.Answers))
	for _, a := range q.Answers {
		answers = append(answers, map[string]string{"text": a})
	}
	var out any = map[string]any{
		"id":                         q.ID,
		"text":                       q.Text,
		"type":                       q.Type,
		"duration":                   q.Duration,
		"points":                     q.Points,
		"answers":                    answers,
		"isoTimeLastQuestionStarted": q.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	for i := 0; i < q.Nesting; i++ {
		out = []any{out}
	}
	return out
}

// Result is one row of the player results endpoint.
type Result struct {
	Correct           bool
	QuestionStartedAt time.Time
	AnsweredAt        time.Time
}

// Backend is a scripted BigBrain server. Tests mutate it between polls.
type Backend struct {
	mu sync.Mutex

	PlayerID string
	Token    string

	started   bool
	finished  bool
	question  *Question
	revealed  bool
	results   []Result
	gameID    string
	sessionID string
	position  int
	active    bool

	joins        []string
	submissions  [][]string
	calls        map[string]int
	mutations    []string
	failSubmit   bool
	gamesPayload json.RawMessage
	idle         any
}

func NewBackend() *Backend {
	return &Backend{
		PlayerID:  "p1",
		Token:     "secret-token",
		gameID:    "g1",
		sessionID: "12345678",
		position:  -1,
		calls:     make(map[string]int),
		gamesPayload: json.RawMessage(`[{"id":"g1","name":"Capitals","active":null,"questions":[` +
			`[[{"id":"q1","text":"Capital of France?","type":"single","duration":30,"points":10,"answers":[{"text":"Paris"},{"text":"Lyon"}],"correctAnswers":["Paris"]}]]]}]`),
	}
}

// SetGames replaces the stored game list with a raw JSON array.
func (b *Backend) SetGames(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gamesPayload = json.RawMessage(raw)
}

// SetIdleMarker sets what g1's "active" field holds while no session runs:
// nil by default, 0 for games created by the web editor.
func (b *Backend) SetIdleMarker(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idle = v
}

// Start makes the player status report started.
func (b *Backend) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
}

// Finish ends the game.
func (b *Backend) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	b.finished = true
}

// SetQuestion replaces the current question and hides its answer.
func (b *Backend) SetQuestion(q Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.question = &q
	b.revealed = false
}

// Reveal makes the correct answer endpoint available.
func (b *Backend) Reveal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revealed = true
}

// SetResults sets the player results payload.
func (b *Backend) SetResults(results []Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = results
}

// FailSubmissions makes the submit endpoint return 400.
func (b *Backend) FailSubmissions(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSubmit = fail
}

// Submissions returns every answer list the player submitted.
func (b *Backend) Submissions() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]string, len(b.submissions))
	copy(out, b.submissions)
	return out
}

// Joins returns the names that joined.
func (b *Backend) Joins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.joins...)
}

// Mutations returns the mutation types received, in order.
func (b *Backend) Mutations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.mutations...)
}

// Calls returns how many times the named route was hit, e.g. "status".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Serve starts an httptest server for the backend.
func (b *Backend) Serve() *httptest.Server {
	return httptest.NewServer(b.Router())
}

func (b *Backend) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/admin/auth/login", b.handleAuth)
	r.Post("/admin/auth/register", b.handleAuth)
	r.Post("/admin/auth/logout", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	r.Get("/admin/games", b.authed(b.handleGames))
	r.Put("/admin/games", b.authed(b.handleSaveGames))
	r.Post("/admin/game/{gameID}/mutate", b.authed(b.handleMutate))
	r.Get("/admin/session/{sessionID}/status", b.authed(b.handleSessionStatus))
	r.Get("/admin/session/{sessionID}/results", b.authed(b.handleSessionResults))

	r.Post("/play/join/{sessionID}", b.handleJoin)
	r.Route("/play/{playerID}", func(r chi.Router) {
		r.Use(b.knownPlayer)
		r.Get("/status", b.handleStatus)
		r.Get("/question", b.handleQuestion)
		r.Get("/answer", b.handleAnswer)
		r.Put("/answer", b.handleSubmit)
		r.Get("/results", b.handleResults)
	})
	return r
}

func (b *Backend) count(route string) {
	b.mu.Lock()
	b.calls[route]++
	b.mu.Unlock()
}

func (b *Backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.Token {
			writeError(w, http.StatusForbidden, "Invalid token")
			return
		}
		next(w, r)
	}
}

func (b *Backend) knownPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "playerID") != b.PlayerID {
			writeError(w, http.StatusBadRequest, "Player ID does not refer to valid player id")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "hunter2" {
		writeError(w, http.StatusBadRequest, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": b.Token})
}

func (b *Backend) handleGames(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var games []map[string]any
	if err := json.Unmarshal(b.gamesPayload, &games); err != nil {
		writeError(w, http.StatusInternalServerError, "Corrupt games")
		return
	}
	for _, g := range games {
		if g["id"] == b.gameID {
			g["active"] = b.idle
			if b.active {
				g["active"] = b.sessionID
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (b *Backend) handleSaveGames(w http.ResponseWriter, r *http.Request) {
	b.count("save-games")
	var body struct {
		Games json.RawMessage `json:"games"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid games")
		return
	}
	b.mu.Lock()
	b.gamesPayload = body.Games
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *Backend) handleMutate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MutationType string `json:"mutationType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid mutation")
		return
	}
	if chi.URLParam(r, "gameID") != b.gameID {
		writeError(w, http.StatusBadRequest, "Invalid game ID")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, body.MutationType)
	switch body.MutationType {
	case "START":
		b.position = -1
		b.active = true
		b.finished = false
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"sessionId": b.sessionID}})
	case "ADVANCE":
		b.position++
		b.started = true
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]int{"position": b.position}})
	case "END":
		b.started = false
		b.finished = true
		b.active = false
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		writeError(w, http.StatusBadRequest, "Invalid mutation type")
	}
}

func (b *Backend) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	b.count("session-status")
	b.mu.Lock()
	defer b.mu.Unlock()
	var questions []any
	if b.question != nil {
		questions = append(questions, b.question.payload())
	}
	started := ""
	if b.question != nil {
		started = b.question.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": map[string]any{
		"active":                     !b.finished,
		"answerAvailable":            b.revealed,
		"position":                   b.position,
		"questions":                  questions,
		"players":                    b.joins,
		"isoTimeLastQuestionStarted": started,
	}})
}

func (b *Backend) handleSessionResults(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	players := make([]any, 0, len(b.joins))
	for i, name := range b.joins {
		answers := []map[string]any{{"correct": i%2 == 0}}
		players = append(players, map[string]any{"name": name, "answers": answers})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": players})
}

func (b *Backend) handleJoin(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "sessionID") != b.sessionID {
		writeError(w, http.StatusBadRequest, "Session ID is not an active session")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	b.mu.Lock()
	b.joins = append(b.joins, body.Name)
	id := b.PlayerID
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"playerId": id})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.count("status")
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"started": b.started, "finished": b.finished})
}

func (b *Backend) handleQuestion(w http.ResponseWriter, r *http.Request) {
	b.count("question")
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || b.question == nil {
		writeError(w, http.StatusBadRequest, "Session has not started yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question": b.question.payload()})
}

func (b *Backend) handleAnswer(w http.ResponseWriter, r *http.Request) {
	b.count("answer")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.question == nil || !b.revealed {
		writeError(w, http.StatusBadRequest, "Question time has not been completed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": b.question.CorrectAnswers})
}

func (b *Backend) handleSubmit(w http.ResponseWriter, r *http.Request) {
	b.count("submit")
	var body struct {
		Answers []string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid answers")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubmit {
		writeError(w, http.StatusBadRequest, "Can't answer question once answer available")
		return
	}
	b.submissions = append(b.submissions, body.Answers)
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *Backend) handleResults(w http.ResponseWriter, r *http.Request) {
	b.count("results")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.results))
	for _, res := range b.results {
		out = append(out, map[string]any{
			"correct":           res.Correct,
			"questionStartedAt": res.QuestionStartedAt.UTC().Format(time.RFC3339Nano),
			"answeredAt":        res.AnsweredAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
