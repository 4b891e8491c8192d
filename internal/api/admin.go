package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"bigbrain-client/internal/domain"
	"github.com/rs/zerolog/log"
)

// Login authenticates an admin and returns the bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if err := domain.ValidateCredentials(email, password, "", false); err != nil {
		return "", err
	}
	return c.auth(ctx, loginPath, map[string]string{"email": email, "password": password})
}

// Register creates an admin account and returns the bearer token.
func (c *Client) Register(ctx context.Context, email, password, name string) (string, error) {
	if err := domain.ValidateCredentials(email, password, name, true); err != nil {
		return "", err
	}
	return c.auth(ctx, registerPath, map[string]string{"email": email, "password": password, "name": name})
}

func (c *Client) auth(ctx context.Context, path string, body map[string]string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.send(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%s: no token in response", path)
	}
	return resp.Token, nil
}

// Logout invalidates token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.send(ctx, http.MethodPost, logoutPath, token, map[string]string{}, nil)
}

type wireGame struct {
	ID        domain.ID         `json:"id"`
	Name      string            `json:"name"`
	Active    sessionRef        `json:"active"`
	Questions []json.RawMessage `json:"questions"`
}

// sessionRef is a game's "active" field. Idle games carry null, 0, false
// or "" there; anything else is the running session id.
type sessionRef string

func (s *sessionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		if string(data) == "null" || string(data) == "false" {
			*s = ""
			return nil
		}
		if n, err := strconv.ParseFloat(string(data), 64); err == nil && n == 0 {
			*s = ""
			return nil
		}
	}
	var id domain.ID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = sessionRef(id)
	return nil
}

// ListGames returns the admin's games. Questions that fail to decode are
// skipped; the raw document is kept for saving.
func (c *Client) ListGames(ctx context.Context, token string) ([]domain.Game, error) {
	var resp struct {
		Games []json.RawMessage `json:"games"`
	}
	if err := c.get(ctx, gamesPath, token, &resp); err != nil {
		return nil, err
	}
	games := make([]domain.Game, 0, len(resp.Games))
	for _, raw := range resp.Games {
		var w wireGame
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode game: %w", err)
		}
		g := domain.Game{ID: string(w.ID), Name: w.Name, Active: string(w.Active), Raw: raw}
		for i, qraw := range w.Questions {
			q, err := domain.ParseQuestion(qraw)
			if err != nil {
				log.Warn().Err(err).Str("game_id", g.ID).Int("index", i).Msg("skipping undecodable question")
				continue
			}
			g.Questions = append(g.Questions, q)
		}
		games = append(games, g)
	}
	return games, nil
}

// SaveGames replaces the admin's full game list.
func (c *Client) SaveGames(ctx context.Context, token string, games []domain.Game) error {
	docs := make([]json.RawMessage, 0, len(games))
	for _, g := range games {
		if len(g.Raw) > 0 {
			docs = append(docs, g.Raw)
			continue
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode game %s: %w", g.ID, err)
		}
		docs = append(docs, data)
	}
	return c.send(ctx, http.MethodPut, gamesPath, token, map[string][]json.RawMessage{"games": docs}, nil)
}

// MutateGame applies a mutation; START returns the new session id.
func (c *Client) MutateGame(ctx context.Context, token, gameID string, m domain.Mutation) (string, error) {
	var resp struct {
		SessionID domain.ID `json:"sessionId"`
		Data      *struct {
			SessionID domain.ID `json:"sessionId"`
		} `json:"data"`
	}
	if err := c.send(ctx, http.MethodPost, mutatePath(gameID), token, map[string]domain.Mutation{"mutationType": m}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" && resp.Data != nil {
		return string(resp.Data.SessionID), nil
	}
	return string(resp.SessionID), nil
}

type wireSessionStatus struct {
	Active          bool              `json:"active"`
	AnswerAvailable bool              `json:"answerAvailable"`
	Position        int               `json:"position"`
	Questions       []json.RawMessage `json:"questions"`
	Players         json.RawMessage   `json:"players"`
	StartedAt       string            `json:"isoTimeLastQuestionStarted"`
}

// SessionStatus fetches the admin view of a session.
func (c *Client) SessionStatus(ctx context.Context, token, sessionID string) (domain.SessionStatus, error) {
	var w wireSessionStatus
	if err := c.get(ctx, sessionStatusPath(sessionID), token, &envelope{into: &w}); err != nil {
		return domain.SessionStatus{}, err
	}
	status := domain.SessionStatus{
		Active:          w.Active,
		AnswerAvailable: w.AnswerAvailable,
		Position:        w.Position,
		Players:         playerNames(w.Players),
	}
	status.StartedAt, _ = domain.ParseTimestamp(w.StartedAt)
	for _, raw := range w.Questions {
		q, err := domain.ParseQuestion(raw)
		if err != nil {
			return domain.SessionStatus{}, fmt.Errorf("session %s: %w", sessionID, err)
		}
		status.Questions = append(status.Questions, q)
	}
	return status, nil
}

type wireSessionPlayer struct {
	Name    string       `json:"name"`
	Answers []wireResult `json:"answers"`
}

// SessionResults fetches every player's answers for a finished session.
func (c *Client) SessionResults(ctx context.Context, token, sessionID string) ([]domain.SessionPlayer, error) {
	var raw json.RawMessage
	if err := c.get(ctx, sessionResultsPath(sessionID), token, &envelope{into: &raw}); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)

	var list []wireSessionPlayer
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode session results: %w", err)
		}
		return toSessionPlayers(nil, list), nil
	}

	var byID struct {
		Players map[string]wireSessionPlayer `json:"players"`
	}
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("decode session results: %w", err)
	}
	ids := make([]string, 0, len(byID.Players))
	for id := range byID.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		list = append(list, byID.Players[id])
	}
	return toSessionPlayers(ids, list), nil
}

func toSessionPlayers(ids []string, list []wireSessionPlayer) []domain.SessionPlayer {
	players := make([]domain.SessionPlayer, 0, len(list))
	for i, w := range list {
		p := domain.SessionPlayer{Name: w.Name}
		if ids != nil {
			p.ID = ids[i]
		}
		for _, a := range w.Answers {
			p.Answers = append(p.Answers, a.toDomain())
		}
		players = append(players, p)
	}
	return players
}

// envelope unwraps a {"results": ...} body, or decodes the body itself when
// there is no such key.
type envelope struct {
	into any
}

func (e *envelope) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Results) > 0 && !bytes.Equal(wrapped.Results, []byte("null")) {
		data = wrapped.Results
	}
	return json.Unmarshal(data, e.into)
}

func playerNames(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil
	}
	for id := range byID {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
