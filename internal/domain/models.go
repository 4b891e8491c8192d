package domain

import (
	"encoding/json"
	"time"
)

// QuestionType is the answer mode of a question.
type QuestionType string

const (
	QuestionSingle    QuestionType = "single"
	QuestionMultiple  QuestionType = "multiple"
	QuestionJudgement QuestionType = "judgement"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingle, QuestionMultiple, QuestionJudgement:
		return true
	}
	return false
}

// SubmitsOnSelect reports whether a selection is sent immediately rather than
// waiting for an explicit submit or the timer.
func (t QuestionType) SubmitsOnSelect() bool {
	return t == QuestionSingle || t == QuestionJudgement
}

// GameState is the player's position in the live game.
type GameState string

const (
	StateWaiting  GameState = "waiting"
	StateActive   GameState = "active"
	StateAnswered GameState = "answered"
	StateFinished GameState = "finished"
)

// ParseGameState returns the state for a persisted tag, defaulting to waiting.
func ParseGameState(raw string) GameState {
	switch GameState(raw) {
	case StateActive, StateAnswered, StateFinished:
		return GameState(raw)
	}
	return StateWaiting
}

const (
	// JudgementTrue and JudgementFalse are the canonical judgement answers.
	JudgementTrue  = "True"
	JudgementFalse = "False"
	// JudgementSlot is the single answer entry every judgement question carries.
	JudgementSlot = "True/False"

	// DefaultDuration applies when a question carries no usable duration.
	DefaultDuration = 30 * time.Second
)

// Question is the normalized view of a backend question payload.
type Question struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Duration       int          `json:"duration"`
	Points         int          `json:"points"`
	Answers        []string     `json:"answers"`
	CorrectAnswers []string     `json:"correctAnswers,omitempty"`
	AttachmentType string       `json:"attachmentType,omitempty"`
	AttachmentURL  string       `json:"attachmentUrl,omitempty"`
	StartedAt      time.Time    `json:"isoTimeLastQuestionStarted,omitempty"`
}

// TimeLimit returns the question duration, falling back to DefaultDuration.
func (q Question) TimeLimit() time.Duration {
	if q.Duration <= 0 {
		return DefaultDuration
	}
	return time.Duration(q.Duration) * time.Second
}

// Submission is the player's answer for one question.
type Submission struct {
	QuestionID  string    `json:"questionId"`
	Answers     []string  `json:"answers"`
	SelectedAt  time.Time `json:"selectedAt"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
	Submitted   bool      `json:"submitted"`
}

// PlayerSession is the reload-survivable state of one player.
type PlayerSession struct {
	PlayerID   string
	SessionID  string
	Name       string
	Score      int
	State      GameState
	QuestionID string
	Revealed   bool
	Correct    bool
	// CorrectAnswers is the revealed answer of QuestionID.
	CorrectAnswers []string
}

// PlayerStatus is the response of the player status endpoint.
type PlayerStatus struct {
	Started  bool `json:"started"`
	Finished bool `json:"finished"`
}

// SessionStatus is the admin view of a live session.
type SessionStatus struct {
	Active          bool       `json:"active"`
	AnswerAvailable bool       `json:"answerAvailable"`
	Position        int        `json:"position"`
	Questions       []Question `json:"questions"`
	Players         []string   `json:"players"`
	StartedAt       time.Time  `json:"isoTimeLastQuestionStarted,omitempty"`
}

// CurrentQuestion returns the question at Position, if any.
func (s SessionStatus) CurrentQuestion() (Question, bool) {
	if s.Position < 0 || s.Position >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.Position], true
}

// PlayerResult is one answered question in a player's results.
type PlayerResult struct {
	Answers           []string  `json:"answers,omitempty"`
	Correct           bool      `json:"correct"`
	QuestionStartedAt time.Time `json:"questionStartedAt,omitempty"`
	AnsweredAt        time.Time `json:"answeredAt,omitempty"`
}

// PlayerStats summarizes a finished game for one player.
type PlayerStats struct {
	CorrectAnswers      int     `json:"correctAnswers"`
	IncorrectAnswers    int     `json:"incorrectAnswers"`
	QuestionsAnswered   int     `json:"questionsAnswered"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	Score               int     `json:"score"`
}

// SessionPlayer is one player's answers in the session results.
type SessionPlayer struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Answers []PlayerResult `json:"answers"`
}

// PlayerRanking is a row of the session leaderboard.
type PlayerRanking struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// Game is an admin-owned quiz. Raw keeps the full document so saves
// round-trip fields this client does not model.
type Game struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Active    string          `json:"active,omitempty"`
	Questions []Question      `json:"questions"`
	Raw       json.RawMessage `json:"-"`
}

// Mutation is an admin state change for a game.
type Mutation string

const (
	MutationStart   Mutation = "START"
	MutationAdvance Mutation = "ADVANCE"
	MutationEnd     Mutation = "END"
)
