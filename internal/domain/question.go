package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// UnwrapQuestion strips any depth of array wrapping ([[[{...}]]], [{...}])
// and returns the innermost object. An object is returned unchanged.
func UnwrapQuestion(raw json.RawMessage) (json.RawMessage, error) {
	cur := bytes.TrimSpace(raw)
	for len(cur) > 0 && cur[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(cur, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
		}
		if len(items) == 0 {
			return nil, ErrInvalidQuestion
		}
		cur = bytes.TrimSpace(items[0])
	}
	if len(cur) == 0 || cur[0] != '{' {
		return nil, ErrInvalidQuestion
	}
	return cur, nil
}

type wireQuestion struct {
	ID             ID                `json:"id"`
	Text           string            `json:"text"`
	Type           QuestionType      `json:"type"`
	Duration       flexInt           `json:"duration"`
	Points         flexInt           `json:"points"`
	Answers        []json.RawMessage `json:"answers"`
	LegacyAnswers  []json.RawMessage `json:"Answers"`
	CorrectAnswers []json.RawMessage `json:"correctAnswers"`
	AttachmentType string            `json:"attachmentType"`
	AttachmentURL  string            `json:"attachmentUrl"`
	StartedAt      flexTime          `json:"isoTimeLastQuestionStarted"`
}

// ParseQuestion unwraps and decodes a backend question payload in any of the
// shapes the backend has produced.
func ParseQuestion(raw json.RawMessage) (Question, error) {
	obj, err := UnwrapQuestion(raw)
	if err != nil {
		return Question{}, err
	}
	var w wireQuestion
	if err := json.Unmarshal(obj, &w); err != nil {
		return Question{}, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}

	q := Question{
		ID:             string(w.ID),
		Text:           w.Text,
		Type:           w.Type,
		Duration:       int(w.Duration),
		Points:         int(w.Points),
		AttachmentType: w.AttachmentType,
		AttachmentURL:  w.AttachmentURL,
		StartedAt:      time.Time(w.StartedAt),
	}
	if !q.Type.Valid() {
		q.Type = QuestionSingle
	}

	answers := w.Answers
	if len(answers) == 0 {
		answers = w.LegacyAnswers
	}
	if q.Type == QuestionJudgement {
		q.Answers = []string{JudgementSlot}
	} else {
		q.Answers = DecodeAnswers(answers)
	}
	if len(w.CorrectAnswers) > 0 {
		q.CorrectAnswers = NormalizeAnswers(q.Type, DecodeAnswers(w.CorrectAnswers))
	}
	return q, nil
}

// DecodeAnswers turns a list of answer entries into their texts. Entries may be
// strings, booleans, numbers, or objects carrying text/Answer/answer.
func DecodeAnswers(raws []json.RawMessage) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		if text, ok := answerText(raw); ok {
			out = append(out, text)
		}
	}
	return out
}

func answerText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", false
		}
		if b {
			return JudgementTrue, true
		}
		return JudgementFalse, true
	case '{':
		var obj struct {
			Text   *string `json:"text"`
			Answer *string `json:"Answer"`
			Lower  *string `json:"answer"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", false
		}
		for _, s := range []*string{obj.Text, obj.Answer, obj.Lower} {
			if s != nil {
				return *s, true
			}
		}
		return "", false
	default:
		return string(raw), true
	}
}

// NormalizeAnswers trims answers and, for judgement questions, maps every
// spelling of a boolean onto JudgementTrue or JudgementFalse.
func NormalizeAnswers(t QuestionType, answers []string) []string {
	out := make([]string, 0, len(answers))
	for _, a := range answers {
		a = strings.TrimSpace(a)
		if t == QuestionJudgement {
			a = canonicalJudgement(a)
		}
		out = append(out, a)
	}
	return out
}

func canonicalJudgement(a string) string {
	switch strings.ToLower(a) {
	case "true", "1", "yes", strings.ToLower(JudgementSlot):
		return JudgementTrue
	default:
		return JudgementFalse
	}
}

// ParseJudgement maps a player's true/false choice onto JudgementTrue or
// JudgementFalse. Anything else is rejected.
func ParseJudgement(a string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(a)) {
	case "true", "1", "yes":
		return JudgementTrue, true
	case "false", "0", "no":
		return JudgementFalse, true
	}
	return "", false
}

// AnswersMatch compares two answer lists ignoring order.
func AnswersMatch(selected, correct []string) bool {
	a := slices.Clone(selected)
	b := slices.Clone(correct)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Remaining returns whole seconds left on a question that started at start
// and lasts limit, never negative. A zero start means the clock has not begun.
func Remaining(start time.Time, limit time.Duration, now time.Time) int {
	if start.IsZero() {
		return int(limit / time.Second)
	}
	left := start.Add(limit).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// ID is a backend identifier that may arrive as a JSON string or number.
type ID string

func (f *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = ID(s)
		return nil
	}
	*f = ID(data)
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s ID
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", string(s))
	}
	*f = flexInt(n)
	return nil
}

type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s ID
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = flexTime{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(s))
	if err != nil {
		return err
	}
	*f = flexTime(t)
	return nil
}

// ParseTimestamp parses a backend ISO timestamp; empty input yields the zero time.
func ParseTimestamp(raw string) (time.Time, error) {
	var f flexTime
	b, _ := json.Marshal(raw)
	if err := f.UnmarshalJSON(b); err != nil {
		return time.Time{}, err
	}
	return time.Time(f), nil
}
