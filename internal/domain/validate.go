package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	minAnswers = 2
	maxAnswers = 6
)

// AnswerOption is an editable answer with its correctness flag.
type AnswerOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// ValidateQuestion checks an edited question before it is saved.
func ValidateQuestion(text string, t QuestionType, options []AnswerOption, duration, points int) error {
	if strings.TrimSpace(text) == "" {
		return invalid("text", "Question text is required")
	}
	if !t.Valid() {
		return invalid("type", "Unknown question type %q", string(t))
	}
	if duration <= 0 {
		return invalid("duration", "Time limit must be a positive number of seconds")
	}
	if points <= 0 {
		return invalid("points", "Points must be a positive number")
	}

	if t == QuestionJudgement {
		if len(options) != 1 {
			return invalid("answers", "Judgement questions must have exactly one answer")
		}
		return nil
	}

	if len(options) < minAnswers {
		return invalid("answers", "At least %d answers are required for non-judgement questions", minAnswers)
	}
	if len(options) > maxAnswers {
		return invalid("answers", "Maximum of %d answers allowed", maxAnswers)
	}
	correct := 0
	for _, opt := range options {
		if strings.TrimSpace(opt.Text) == "" {
			return invalid("answers", "Answer text cannot be empty")
		}
		if opt.Correct {
			correct++
		}
	}
	switch {
	case t == QuestionSingle && correct != 1:
		return invalid("answers", "Single choice questions must have one correct answer")
	case t == QuestionMultiple && correct == 0:
		return invalid("answers", "Multiple choice questions must have at least one correct answer")
	}
	return nil
}

// ValidateStoredQuestion applies ValidateQuestion to a question built in code.
func ValidateStoredQuestion(q Question) error {
	options := make([]AnswerOption, 0, len(q.Answers))
	for _, a := range q.Answers {
		options = append(options, AnswerOption{Text: a, Correct: contains(q.CorrectAnswers, a)})
	}
	return ValidateQuestion(q.Text, q.Type, options, q.Duration, q.Points)
}

// ValidateQuestionPayload applies ValidateQuestion to a question document as
// it will be sent, before ParseQuestion coerces its type or answers.
func ValidateQuestionPayload(raw json.RawMessage) error {
	obj, err := UnwrapQuestion(raw)
	if err != nil {
		return err
	}
	var w wireQuestion
	if err := json.Unmarshal(obj, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	answers := w.Answers
	if len(answers) == 0 {
		answers = w.LegacyAnswers
	}
	correct := NormalizeAnswers(w.Type, DecodeAnswers(w.CorrectAnswers))
	options := make([]AnswerOption, 0, len(answers))
	for _, a := range answers {
		text, _ := answerText(a)
		text = strings.TrimSpace(text)
		options = append(options, AnswerOption{Text: text, Correct: flaggedCorrect(a) || contains(correct, text)})
	}
	return ValidateQuestion(w.Text, w.Type, options, int(w.Duration), int(w.Points))
}

func flaggedCorrect(raw json.RawMessage) bool {
	var obj struct {
		Correct bool `json:"isCorrect"`
	}
	return json.Unmarshal(raw, &obj) == nil && obj.Correct
}

// ValidateGame checks every question of g. A game read from the backend is
// checked against its raw document, which is what gets saved.
func ValidateGame(g Game) error {
	if len(g.Raw) == 0 {
		for i, q := range g.Questions {
			if err := ValidateStoredQuestion(q); err != nil {
				return fmt.Errorf("game %q question %d: %w", g.Name, i+1, err)
			}
		}
		return nil
	}
	var doc struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(g.Raw, &doc); err != nil {
		return fmt.Errorf("game %q: %w", g.Name, err)
	}
	for i, raw := range doc.Questions {
		if err := ValidateQuestionPayload(raw); err != nil {
			return fmt.Errorf("game %q question %d: %w", g.Name, i+1, err)
		}
	}
	return nil
}

// ValidateJoin checks the join form.
func ValidateJoin(sessionID, name string) error {
	if strings.TrimSpace(sessionID) == "" {
		return invalid("sessionId", "Session ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return invalid("name", "Player name is required")
	}
	return nil
}

// ValidateCredentials checks the login and register forms; name is only
// checked when register is set.
func ValidateCredentials(email, password, name string, register bool) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email", "Email is required")
	}
	if !strings.Contains(email, "@") {
		return invalid("email", "Please enter a valid email address")
	}
	if password == "" {
		return invalid("password", "Password is required")
	}
	if register && strings.TrimSpace(name) == "" {
		return invalid("name", "Name is required")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
