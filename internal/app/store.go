package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"bigbrain-client/internal/domain"
)

// Store abstracts the client's key-value persistence (memory, Redis, Postgres).
// Reads see every earlier write; there is no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

const (
	keyToken    = "token"
	keyEmail    = "email"
	keyPlayerID = "playerId"
)

func playerNameKey(playerID string) string    { return "playerName_" + playerID }
func gameStateKey(playerID string) string     { return "gameState_" + playerID }
func totalScoreKey(playerID string) string    { return "totalScore_" + playerID }
func playerStatsKey(playerID string) string   { return "playerStats_" + playerID }
func lastQuestionKey(playerID string) string  { return "lastQuestion_" + playerID }
func playerSessionKey(playerID string) string { return "playerSession_" + playerID }

func selectedAnswersKey(playerID, questionID string) string {
	return fmt.Sprintf("selectedAnswers_%s_%s", playerID, questionID)
}

func sessionGameKey(sessionID string) string {
	return fmt.Sprintf("session_%s_gameId", sessionID)
}

type lastQuestion struct {
	QuestionID     string   `json:"questionId"`
	Revealed       bool     `json:"revealed"`
	Correct        bool     `json:"correct"`
	CorrectAnswers []string `json:"correctAnswers,omitempty"`
}

// PlayerStore maps domain.PlayerSession and its submissions onto Store keys.
type PlayerStore struct {
	kv Store
}

func NewPlayerStore(kv Store) *PlayerStore {
	return &PlayerStore{kv: kv}
}

// CurrentPlayer returns the most recently joined player id.
func (s *PlayerStore) CurrentPlayer(ctx context.Context) (string, error) {
	id, ok, err := s.kv.Get(ctx, keyPlayerID)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", domain.ErrPlayerNotJoined
	}
	return id, nil
}

// Load rebuilds a player's session. Missing keys fall back to a fresh
// waiting session.
func (s *PlayerStore) Load(ctx context.Context, playerID string) (domain.PlayerSession, error) {
	ps := domain.PlayerSession{PlayerID: playerID, State: domain.StateWaiting}

	name, _, err := s.kv.Get(ctx, playerNameKey(playerID))
	if err != nil {
		return ps, fmt.Errorf("load player name: %w", err)
	}
	ps.Name = name

	sessionID, _, err := s.kv.Get(ctx, playerSessionKey(playerID))
	if err != nil {
		return ps, fmt.Errorf("load player session: %w", err)
	}
	ps.SessionID = sessionID

	state, _, err := s.kv.Get(ctx, gameStateKey(playerID))
	if err != nil {
		return ps, fmt.Errorf("load game state: %w", err)
	}
	ps.State = domain.ParseGameState(state)

	if raw, ok, err := s.kv.Get(ctx, totalScoreKey(playerID)); err != nil {
		return ps, fmt.Errorf("load score: %w", err)
	} else if ok {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return ps, fmt.Errorf("parse score %q: %w", raw, err)
		}
		ps.Score = score
	}

	if raw, ok, err := s.kv.Get(ctx, lastQuestionKey(playerID)); err != nil {
		return ps, fmt.Errorf("load last question: %w", err)
	} else if ok {
		var lq lastQuestion
		if err := json.Unmarshal([]byte(raw), &lq); err != nil {
			return ps, fmt.Errorf("parse last question: %w", err)
		}
		ps.QuestionID, ps.Revealed, ps.Correct = lq.QuestionID, lq.Revealed, lq.Correct
		ps.CorrectAnswers = lq.CorrectAnswers
	}
	return ps, nil
}

// Save checkpoints ps. Writes are not transactional; last write wins.
func (s *PlayerStore) Save(ctx context.Context, ps domain.PlayerSession) error {
	lq, err := json.Marshal(lastQuestion{
		QuestionID:     ps.QuestionID,
		Revealed:       ps.Revealed,
		Correct:        ps.Correct,
		CorrectAnswers: ps.CorrectAnswers,
	})
	if err != nil {
		return err
	}
	writes := []struct{ key, value string }{
		{keyPlayerID, ps.PlayerID},
		{playerNameKey(ps.PlayerID), ps.Name},
		{playerSessionKey(ps.PlayerID), ps.SessionID},
		{gameStateKey(ps.PlayerID), string(ps.State)},
		{totalScoreKey(ps.PlayerID), strconv.Itoa(ps.Score)},
		{lastQuestionKey(ps.PlayerID), string(lq)},
	}
	for _, w := range writes {
		if err := s.kv.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("save %s: %w", w.key, err)
		}
	}
	return nil
}

// Submission returns the stored selection for a question.
func (s *PlayerStore) Submission(ctx context.Context, playerID, questionID string) (domain.Submission, bool, error) {
	raw, ok, err := s.kv.Get(ctx, selectedAnswersKey(playerID, questionID))
	if err != nil || !ok {
		return domain.Submission{}, false, err
	}
	var sub domain.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return domain.Submission{}, false, fmt.Errorf("parse submission: %w", err)
	}
	return sub, true, nil
}

// SaveSubmission records a selection; Submitted marks it as sent.
func (s *PlayerStore) SaveSubmission(ctx context.Context, playerID string, sub domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, selectedAnswersKey(playerID, sub.QuestionID), string(data))
}

// SaveStats stores the final statistics of a finished game.
func (s *PlayerStore) SaveStats(ctx context.Context, playerID string, stats domain.PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, playerStatsKey(playerID), string(data))
}

// Stats returns stored statistics, if the game has finished.
func (s *PlayerStore) Stats(ctx context.Context, playerID string) (domain.PlayerStats, bool, error) {
	raw, ok, err := s.kv.Get(ctx, playerStatsKey(playerID))
	if err != nil || !ok {
		return domain.PlayerStats{}, false, err
	}
	var stats domain.PlayerStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return domain.PlayerStats{}, false, fmt.Errorf("parse stats: %w", err)
	}
	return stats, true, nil
}
