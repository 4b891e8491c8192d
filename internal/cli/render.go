package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"bigbrain-client/internal/app"
	"bigbrain-client/internal/domain"
)

// playerView prints the parts of a snapshot that changed since the last one.
type playerView struct {
	out  io.Writer
	last app.PlayerSnapshot
	seen bool
}

func (v *playerView) render(s app.PlayerSnapshot) {
	prev := v.last
	v.last = s
	first := !v.seen
	v.seen = true

	if s.Error != "" && s.Error != prev.Error {
		fmt.Fprintf(v.out, "! %s\n", s.Error)
	}

	switch s.State {
	case domain.StateWaiting:
		if first || prev.State != s.State {
			fmt.Fprintln(v.out, "Waiting for the host to start the game...")
		}
	case domain.StateActive:
		if s.Question != nil && (first || prev.Question == nil || prev.Question.ID != s.Question.ID || prev.State != s.State) {
			printQuestion(v.out, *s.Question, s.Remaining)
		}
		if s.Submitted && !prev.Submitted {
			fmt.Fprintf(v.out, "Answer locked in: %s\n", strings.Join(s.Selected, ", "))
		} else if !s.Submitted && !slices.Equal(s.Selected, prev.Selected) && len(s.Selected) > 0 {
			fmt.Fprintf(v.out, "Selected: %s (type 'submit' to send)\n", strings.Join(s.Selected, ", "))
		}
		if s.Remaining != prev.Remaining && (s.Remaining%10 == 0 || s.Remaining <= 5) && s.Remaining > 0 {
			fmt.Fprintf(v.out, "%ds left\n", s.Remaining)
		}
	case domain.StateAnswered:
		if first || prev.State != s.State {
			fmt.Fprintln(v.out, "Time's up!")
		}
		if s.Correct != nil && (prev.Correct == nil || first) {
			verdict := "Wrong"
			if *s.Correct {
				verdict = "Correct"
			}
			fmt.Fprintf(v.out, "%s. Answer: %s. Score: %d\n", verdict, strings.Join(s.CorrectAnswers, ", "), s.Score)
		}
	case domain.StateFinished:
		if first || prev.State != s.State {
			fmt.Fprintln(v.out, "Game over!")
			if s.Stats != nil {
				printStats(v.out, *s.Stats)
			}
		}
	}
}

func printQuestion(out io.Writer, q domain.Question, remaining int) {
	fmt.Fprintf(out, "\n%s  [%s, %d points, %ds]\n", q.Text, q.Type, q.Points, remaining)
	if q.AttachmentURL != "" {
		fmt.Fprintf(out, "  %s: %s\n", q.AttachmentType, q.AttachmentURL)
	}
	for i, a := range answerChoices(q) {
		fmt.Fprintf(out, "  %d) %s\n", i+1, a)
	}
}

func printStats(out io.Writer, s domain.PlayerStats) {
	fmt.Fprintf(out, "Score: %d\n", s.Score)
	fmt.Fprintf(out, "Correct: %d  Incorrect: %d  Answered: %d\n", s.CorrectAnswers, s.IncorrectAnswers, s.QuestionsAnswered)
	fmt.Fprintf(out, "Average response time: %.1fs\n", s.AverageResponseTime)
}

// answerChoices lists what the player picks from; judgement questions offer
// True and False in place of their single stored slot.
func answerChoices(q domain.Question) []string {
	if q.Type == domain.QuestionJudgement {
		return []string{domain.JudgementTrue, domain.JudgementFalse}
	}
	return q.Answers
}

// parseAnswerInput maps a typed line to an answer: a 1-based index or the
// answer text itself.
func parseAnswerInput(q domain.Question, line string) string {
	choices := answerChoices(q)
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1]
	}
	for _, c := range choices {
		if strings.EqualFold(c, line) {
			return c
		}
	}
	return line
}

func printSession(out io.Writer, prev, s app.SessionSnapshot, first bool) {
	if s.Error != "" && s.Error != prev.Error {
		fmt.Fprintf(out, "! %s\n", s.Error)
	}
	if s.Finished {
		fmt.Fprintln(out, "Session finished.")
		return
	}
	if first || len(s.Players) != len(prev.Players) {
		fmt.Fprintf(out, "Players (%d): %s\n", len(s.Players), strings.Join(s.Players, ", "))
	}
	if s.Question == nil {
		if first || prev.Question != nil {
			fmt.Fprintln(out, "Lobby open. Type 'next' to show the first question.")
		}
		return
	}
	if first || prev.Question == nil || prev.Position != s.Position {
		fmt.Fprintf(out, "\nQuestion %d/%d: %s\n", s.Position+1, s.Total, s.Question.Text)
	}
	if s.AnswerAvailable && !prev.AnswerAvailable {
		fmt.Fprintln(out, "Answer revealed. Type 'next' to continue.")
	} else if s.Remaining != prev.Remaining && s.Remaining%10 == 0 && s.Remaining > 0 {
		fmt.Fprintf(out, "%ds left\n", s.Remaining)
	}
}
