package domain

import (
	"encoding/json"
	"testing"
	"time"
)

const flatQuestion = `{"id":1712,"text":"Capital of France?","type":"single","duration":30,"points":10,"answers":[{"text":"Paris"},{"text":"Lyon"}],"correctAnswers":["Paris"]}`

func TestUnwrapQuestionReturnsSameObject(t *testing.T) {
	inputs := []string{
		flatQuestion,
		"[" + flatQuestion + "]",
		"[[" + flatQuestion + "]]",
		"[[[" + flatQuestion + "]]]",
		"[[[[" + flatQuestion + "]]]]",
	}
	for _, in := range inputs {
		got, err := UnwrapQuestion(json.RawMessage(in))
		if err != nil {
			t.Fatalf("unwrap %s: %v", in[:5], err)
		}
		if string(got) != flatQuestion {
			t.Fatalf("expected innermost object, got %s", got)
		}
	}
}

func TestUnwrapQuestionRejectsEmpty(t *testing.T) {
	for _, in := range []string{`[]`, `[[]]`, `null`, `"text"`, ``} {
		if _, err := UnwrapQuestion(json.RawMessage(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestParseQuestionFormats(t *testing.T) {
	q, err := ParseQuestion(json.RawMessage("[[" + flatQuestion + "]]"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.ID != "1712" || q.Type != QuestionSingle || q.Duration != 30 || q.Points != 10 {
		t.Fatalf("unexpected question %+v", q)
	}
	if len(q.Answers) != 2 || q.Answers[0] != "Paris" {
		t.Fatalf("unexpected answers %v", q.Answers)
	}

	legacy := `{"id":"q2","text":"Pick","type":"multiple","duration":"20","points":5,"Answers":[{"Answer":"A"},{"Answer":"B"},{"Answer":"C"}],"isoTimeLastQuestionStarted":"2026-10-18T10:00:00.000Z"}`
	q, err = ParseQuestion(json.RawMessage(legacy))
	if err != nil {
		t.Fatalf("parse legacy: %v", err)
	}
	if len(q.Answers) != 3 || q.Answers[2] != "C" || q.Duration != 20 {
		t.Fatalf("unexpected legacy question %+v", q)
	}
	want := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	if !q.StartedAt.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, q.StartedAt)
	}
}

func TestParseJudgementHasSingleSlot(t *testing.T) {
	raw := `{"id":"j1","text":"The sky is blue","type":"judgement","duration":10,"points":1,"answers":[{"text":"True/False"},{"text":"stray"}],"correctAnswers":["True/False"]}`
	q, err := ParseQuestion(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Answers) != 1 || q.Answers[0] != JudgementSlot {
		t.Fatalf("expected one judgement slot, got %v", q.Answers)
	}
	if len(q.CorrectAnswers) != 1 || q.CorrectAnswers[0] != JudgementTrue {
		t.Fatalf("expected sentinel to normalize to True, got %v", q.CorrectAnswers)
	}
}

func TestJudgementComparisonIsExclusive(t *testing.T) {
	for _, correct := range [][]string{{"True"}, {"False"}, {"true"}, {"True/False"}} {
		norm := NormalizeAnswers(QuestionJudgement, correct)
		yes := AnswersMatch(NormalizeAnswers(QuestionJudgement, []string{"True"}), norm)
		no := AnswersMatch(NormalizeAnswers(QuestionJudgement, []string{"False"}), norm)
		if yes == no {
			t.Fatalf("expected exactly one of True/False to match %v", correct)
		}
	}
}

func TestDecodeAnswersBooleans(t *testing.T) {
	got := DecodeAnswers([]json.RawMessage{json.RawMessage(`true`), json.RawMessage(`false`), json.RawMessage(`3`)})
	if len(got) != 3 || got[0] != "True" || got[1] != "False" || got[2] != "3" {
		t.Fatalf("unexpected decoded answers %v", got)
	}
}

func TestAnswersMatchIgnoresOrder(t *testing.T) {
	if !AnswersMatch([]string{"b", "a"}, []string{"a", "b"}) {
		t.Fatalf("expected order-insensitive match")
	}
	if AnswersMatch([]string{"a"}, []string{"a", "b"}) {
		t.Fatalf("expected partial selection to be incorrect")
	}
	if AnswersMatch(nil, []string{"Paris"}) {
		t.Fatalf("expected empty selection to be incorrect")
	}
}

func TestRemainingIsMonotonic(t *testing.T) {
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	limit := 30 * time.Second

	prev := Remaining(start, limit, start)
	if prev != 30 {
		t.Fatalf("expected 30 at start, got %d", prev)
	}
	for ms := 0; ms <= 40_000; ms += 250 {
		now := start.Add(time.Duration(ms) * time.Millisecond)
		got := Remaining(start, limit, now)
		if got > prev {
			t.Fatalf("remaining increased at %dms: %d > %d", ms, got, prev)
		}
		if got < 0 {
			t.Fatalf("remaining negative at %dms", ms)
		}
		prev = got
	}
	if got := Remaining(start, limit, start.Add(limit)); got != 0 {
		t.Fatalf("expected 0 at deadline, got %d", got)
	}
}

func TestParseJudgementRejectsUnknown(t *testing.T) {
	for in, want := range map[string]string{"true": JudgementTrue, " YES ": JudgementTrue, "1": JudgementTrue, "False": JudgementFalse, "no": JudgementFalse, "0": JudgementFalse} {
		got, ok := ParseJudgement(in)
		if !ok || got != want {
			t.Fatalf("ParseJudgement(%q) = %q %v, want %q", in, got, ok, want)
		}
	}
	for _, in := range []string{"tru", "", "maybe", JudgementSlot} {
		if got, ok := ParseJudgement(in); ok {
			t.Fatalf("ParseJudgement(%q) accepted as %q", in, got)
		}
	}
}
