package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bigbrain-client/internal/domain"
)

// JoinSession joins sessionID as name and returns the assigned player id.
func (c *Client) JoinSession(ctx context.Context, sessionID, name string) (string, error) {
	if err := domain.ValidateJoin(sessionID, name); err != nil {
		return "", err
	}
	var resp struct {
		PlayerID domain.ID `json:"playerId"`
	}
	if err := c.send(ctx, http.MethodPost, joinPath(sessionID), "", map[string]string{"name": name}, &resp); err != nil {
		return "", err
	}
	if resp.PlayerID == "" {
		return "", fmt.Errorf("join session %s: no player id in response", sessionID)
	}
	return string(resp.PlayerID), nil
}

// PlayerStatus reports whether the player's session has started or finished.
func (c *Client) PlayerStatus(ctx context.Context, playerID string) (domain.PlayerStatus, error) {
	var status domain.PlayerStatus
	err := c.get(ctx, playerPath(playerID, "status"), "", &status)
	return status, err
}

// PlayerQuestion fetches and normalizes the current question.
func (c *Client) PlayerQuestion(ctx context.Context, playerID string) (domain.Question, error) {
	var resp struct {
		Question  json.RawMessage `json:"question"`
		StartedAt string          `json:"isoTimeLastQuestionStarted"`
	}
	if err := c.get(ctx, playerPath(playerID, "question"), "", &resp); err != nil {
		return domain.Question{}, err
	}
	q, err := domain.ParseQuestion(resp.Question)
	if err != nil {
		return domain.Question{}, err
	}
	if q.StartedAt.IsZero() && resp.StartedAt != "" {
		if started, err := domain.ParseTimestamp(resp.StartedAt); err == nil {
			q.StartedAt = started
		}
	}
	return q, nil
}

// CorrectAnswer fetches the revealed answers for the current question.
func (c *Client) CorrectAnswer(ctx context.Context, playerID string) ([]string, error) {
	var resp struct {
		Answers []json.RawMessage `json:"answers"`
	}
	if err := c.get(ctx, playerPath(playerID, "answer"), "", &resp); err != nil {
		return nil, err
	}
	return domain.DecodeAnswers(resp.Answers), nil
}

// SubmitAnswer sends the player's answers for the current question.
func (c *Client) SubmitAnswer(ctx context.Context, playerID string, answers []string) error {
	if answers == nil {
		answers = []string{}
	}
	return c.send(ctx, http.MethodPut, playerPath(playerID, "answer"), "", map[string][]string{"answers": answers}, nil)
}

type wireResult struct {
	Answers           []json.RawMessage `json:"answers"`
	Correct           bool              `json:"correct"`
	QuestionStartedAt string            `json:"questionStartedAt"`
	AnsweredAt        string            `json:"answeredAt"`
}

func (w wireResult) toDomain() domain.PlayerResult {
	r := domain.PlayerResult{Answers: domain.DecodeAnswers(w.Answers), Correct: w.Correct}
	r.QuestionStartedAt, _ = domain.ParseTimestamp(w.QuestionStartedAt)
	r.AnsweredAt, _ = domain.ParseTimestamp(w.AnsweredAt)
	return r
}

// PlayerResults fetches the player's per-question results after the game.
func (c *Client) PlayerResults(ctx context.Context, playerID string) ([]domain.PlayerResult, error) {
	var wire []wireResult
	if err := c.get(ctx, playerPath(playerID, "results"), "", &wire); err != nil {
		return nil, err
	}
	results := make([]domain.PlayerResult, 0, len(wire))
	for _, w := range wire {
		results = append(results, w.toDomain())
	}
	return results, nil
}
