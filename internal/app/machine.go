package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"bigbrain-client/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PlayerAPI is the subset of the backend the player side talks to.
type PlayerAPI interface {
	JoinSession(ctx context.Context, sessionID, name string) (string, error)
	PlayerStatus(ctx context.Context, playerID string) (domain.PlayerStatus, error)
	PlayerQuestion(ctx context.Context, playerID string) (domain.Question, error)
	CorrectAnswer(ctx context.Context, playerID string) ([]string, error)
	SubmitAnswer(ctx context.Context, playerID string, answers []string) error
	PlayerResults(ctx context.Context, playerID string) ([]domain.PlayerResult, error)
}

// MachineConfig tunes the tick loop shared by the player machine and the
// admin session monitor.
type MachineConfig struct {
	// TickInterval drives the visible countdown.
	TickInterval time.Duration
	// PollEvery is how many ticks pass between server polls.
	PollEvery int
	// DriftTolerance is how far the local countdown may stray from the
	// server-derived one before it is reset.
	DriftTolerance time.Duration
}

// DefaultMachineConfig ticks every second and polls every other tick.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		TickInterval:   time.Second,
		PollEvery:      2,
		DriftTolerance: 2 * time.Second,
	}
}

func (c MachineConfig) withDefaults() MachineConfig {
	def := DefaultMachineConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.PollEvery <= 0 {
		c.PollEvery = def.PollEvery
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = def.DriftTolerance
	}
	return c
}

// PlayerSnapshot is what presentation layers render.
type PlayerSnapshot struct {
	PlayerID       string              `json:"playerId"`
	Name           string              `json:"name"`
	State          domain.GameState    `json:"state"`
	Question       *domain.Question    `json:"question,omitempty"`
	Remaining      int                 `json:"remaining"`
	Selected       []string            `json:"selected"`
	Submitted      bool                `json:"submitted"`
	CorrectAnswers []string            `json:"correctAnswers,omitempty"`
	Correct        *bool               `json:"correct,omitempty"`
	Score          int                 `json:"score"`
	Stats          *domain.PlayerStats `json:"stats,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// PlayerMachine follows one player through a live session by polling the
// backend. Every event (tick, poll, selection) runs under one lock, so the
// machine is the single writer of its state.
type PlayerMachine struct {
	api    PlayerAPI
	store  *PlayerStore
	clock  clockwork.Clock
	cfg    MachineConfig
	logger zerolog.Logger

	mu         sync.Mutex
	session    domain.PlayerSession
	question   *domain.Question
	startedAt  time.Time
	remaining  int
	selection  []string
	selectedAt time.Time
	submitted  bool
	stats      *domain.PlayerStats
	lastErr    string

	updates *broadcaster[PlayerSnapshot]
}

// NewPlayerMachine restores playerID's checkpoint from store, including any
// selection already sent for the current question.
func NewPlayerMachine(ctx context.Context, api PlayerAPI, store *PlayerStore, clock clockwork.Clock, cfg MachineConfig, playerID string) (*PlayerMachine, error) {
	session, err := store.Load(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	m := &PlayerMachine{
		api:   api,
		store: store,
		clock: clock,
		cfg:   cfg.withDefaults(),
		logger: log.With().
			Str("player_id", playerID).
			Str("instance", uuid.New().String()[:8]).
			Logger(),
		session: session,
	}

	if session.QuestionID != "" && session.State != domain.StateWaiting {
		sub, ok, err := store.Submission(ctx, playerID, session.QuestionID)
		if err != nil {
			return nil, err
		}
		if ok {
			m.selection = sub.Answers
			m.selectedAt = sub.SelectedAt
			m.submitted = sub.Submitted
		}
	}
	if session.State == domain.StateFinished {
		if stats, ok, err := store.Stats(ctx, playerID); err == nil && ok {
			m.stats = &stats
		}
	}

	m.updates = newBroadcaster(m.snapshotLocked())
	if session.State == domain.StateFinished {
		m.updates.closeAll()
	}
	m.logger.Debug().Str("state", string(session.State)).Str("question_id", session.QuestionID).Msg("player machine restored")
	return m, nil
}

// Run ticks until the game finishes or ctx is cancelled. It polls once
// immediately and then every PollEvery ticks.
func (m *PlayerMachine) Run(ctx context.Context) error {
	if m.Finished() {
		return nil
	}
	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	_ = m.Poll(ctx)
	ticks := 0
	for !m.Finished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			ticks++
			m.Tick(ctx)
			if ticks%m.cfg.PollEvery == 0 {
				_ = m.Poll(ctx)
			}
		}
	}
	return nil
}

// Poll reconciles with the server: status first, then the current question.
func (m *PlayerMachine) Poll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.State == domain.StateFinished {
		return nil
	}
	defer m.publishLocked()

	status, err := m.api.PlayerStatus(ctx, m.session.PlayerID)
	if err != nil {
		m.failLocked("Failed to get game status", err)
		return err
	}
	if status.Finished {
		m.finishLocked(ctx)
		return nil
	}
	if !status.Started {
		m.logger.Debug().Msg("waiting for the game to start")
		return nil
	}

	q, err := m.api.PlayerQuestion(ctx, m.session.PlayerID)
	if err != nil {
		m.failLocked("Failed to get current question", err)
		return err
	}
	m.lastErr = ""
	m.applyQuestionLocked(ctx, q)

	if m.session.State == domain.StateAnswered && !m.session.Revealed {
		m.revealLocked(ctx)
	}
	return nil
}

// Tick advances the local countdown by one step and expires the question
// when it reaches zero.
func (m *PlayerMachine) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.State != domain.StateActive || m.question == nil {
		return
	}
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining == 0 {
		m.expireLocked(ctx)
	}
	m.publishLocked()
}

// Select records a choice. Single and judgement questions submit
// immediately; multiple-choice selections toggle until Submit or expiry.
func (m *PlayerMachine) Select(ctx context.Context, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.publishLocked()

	if m.session.State != domain.StateActive || m.question == nil {
		return domain.ErrNotAcceptingAnswers
	}
	if m.submitted {
		return domain.ErrAlreadySubmitted
	}

	q := m.question
	if q.Type == domain.QuestionJudgement {
		canonical, ok := domain.ParseJudgement(answer)
		if !ok {
			return domain.ErrUnknownAnswer
		}
		answer = canonical
	} else if !slices.Contains(q.Answers, answer) {
		return domain.ErrUnknownAnswer
	}

	if q.Type.SubmitsOnSelect() {
		m.selection = []string{answer}
	} else if i := slices.Index(m.selection, answer); i >= 0 {
		m.selection = slices.Delete(slices.Clone(m.selection), i, i+1)
	} else {
		m.selection = append(slices.Clone(m.selection), answer)
	}
	m.selectedAt = m.clock.Now()
	m.saveSubmissionLocked(ctx)

	if q.Type.SubmitsOnSelect() {
		return m.submitLocked(ctx)
	}
	return nil
}

// Submit sends the current selection before the timer runs out.
func (m *PlayerMachine) Submit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.publishLocked()

	if m.session.State != domain.StateActive || m.question == nil {
		return domain.ErrNotAcceptingAnswers
	}
	return m.submitLocked(ctx)
}

// Snapshot returns the current view of the machine.
func (m *PlayerMachine) Snapshot() PlayerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe streams snapshots, starting with the current one. The channel
// closes once the game finishes; cancel must be called to release it.
func (m *PlayerMachine) Subscribe() (<-chan PlayerSnapshot, func()) {
	return m.updates.subscribe()
}

// Finished reports whether the machine reached its terminal state.
func (m *PlayerMachine) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.State == domain.StateFinished
}

func (m *PlayerMachine) applyQuestionLocked(ctx context.Context, q domain.Question) {
	now := m.clock.Now()

	switch {
	case m.question == nil && q.ID == m.session.QuestionID && m.session.State != domain.StateWaiting:
		// Reload: the checkpoint already covers this question.
		m.question = &q
		m.startedAt = q.StartedAt
		if m.startedAt.IsZero() {
			m.startedAt = now
		}
		m.remaining = domain.Remaining(m.startedAt, q.TimeLimit(), now)
		m.logger.Info().Str("question_id", q.ID).Str("state", string(m.session.State)).Msg("resumed question")
	case m.question != nil && q.ID == m.question.ID:
		m.resyncLocked(q, now)
	default:
		m.enterQuestionLocked(ctx, q, now)
		return
	}

	if m.session.State == domain.StateActive && m.remaining == 0 {
		m.expireLocked(ctx)
	}
}

func (m *PlayerMachine) enterQuestionLocked(ctx context.Context, q domain.Question, now time.Time) {
	q.CorrectAnswers = nil
	m.question = &q
	m.selection = nil
	m.selectedAt = time.Time{}
	m.submitted = false

	m.startedAt = q.StartedAt
	if m.startedAt.IsZero() {
		m.startedAt = now
	}
	m.remaining = domain.Remaining(m.startedAt, q.TimeLimit(), now)

	m.session.QuestionID = q.ID
	m.session.Revealed = false
	m.session.Correct = false
	m.session.CorrectAnswers = nil
	m.session.State = domain.StateActive
	m.checkpointLocked(ctx)

	m.logger.Info().
		Str("question_id", q.ID).
		Str("type", string(q.Type)).
		Int("remaining", m.remaining).
		Msg("question started")

	if m.remaining == 0 {
		m.expireLocked(ctx)
	}
}

// resyncLocked refreshes only the countdown for a question already on screen.
func (m *PlayerMachine) resyncLocked(q domain.Question, now time.Time) {
	if !q.StartedAt.IsZero() {
		m.startedAt = q.StartedAt
	}
	server := domain.Remaining(m.startedAt, m.question.TimeLimit(), now)
	drift := time.Duration(server-m.remaining) * time.Second
	if drift < 0 {
		drift = -drift
	}
	if drift > m.cfg.DriftTolerance {
		m.logger.Debug().Int("local", m.remaining).Int("server", server).Msg("countdown resynced")
		m.remaining = server
	}
}

// expireLocked closes the answer window: a pending selection (possibly
// empty) is submitted, then the answer is fetched. A failed submit does not
// stop the reveal.
func (m *PlayerMachine) expireLocked(ctx context.Context) {
	if m.session.State != domain.StateActive {
		return
	}
	m.remaining = 0
	if !m.submitted {
		if err := m.submitLocked(ctx); err != nil {
			m.logger.Warn().Err(err).Str("question_id", m.session.QuestionID).Msg("auto-submit failed")
		}
	}
	m.session.State = domain.StateAnswered
	m.checkpointLocked(ctx)
	m.logger.Info().Str("question_id", m.session.QuestionID).Msg("question time lapsed")
	m.revealLocked(ctx)
}

func (m *PlayerMachine) submitLocked(ctx context.Context) error {
	if m.submitted {
		return domain.ErrAlreadySubmitted
	}
	answers := slices.Clone(m.selection)
	if answers == nil {
		answers = []string{}
	}
	if err := m.api.SubmitAnswer(ctx, m.session.PlayerID, answers); err != nil {
		m.failLocked("Failed to submit answer", err)
		return err
	}
	m.submitted = true
	m.saveSubmissionLocked(ctx)
	m.logger.Info().Str("question_id", m.session.QuestionID).Strs("answers", answers).Msg("answer submitted")
	return nil
}

// revealLocked scores the question once the backend exposes the answer. It
// runs at most once per question; failures are retried on the next poll.
func (m *PlayerMachine) revealLocked(ctx context.Context) {
	if m.session.Revealed || m.question == nil {
		return
	}
	answers, err := m.api.CorrectAnswer(ctx, m.session.PlayerID)
	if err != nil {
		m.logger.Warn().Err(err).Str("question_id", m.session.QuestionID).Msg("answer not available yet")
		return
	}

	q := m.question
	correct := domain.NormalizeAnswers(q.Type, answers)
	selected := domain.NormalizeAnswers(q.Type, m.selection)
	isCorrect := domain.AnswersMatch(selected, correct)

	m.session.Revealed = true
	m.session.Correct = isCorrect
	m.session.CorrectAnswers = correct
	if isCorrect {
		m.session.Score += q.Points
	}
	m.checkpointLocked(ctx)

	m.logger.Info().
		Str("question_id", q.ID).
		Bool("correct", isCorrect).
		Int("score", m.session.Score).
		Msg("answer revealed")
}

// finishLocked stops the game: results are fetched once, stats persisted.
func (m *PlayerMachine) finishLocked(ctx context.Context) {
	results, err := m.api.PlayerResults(ctx, m.session.PlayerID)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not load results")
	}
	stats := domain.ComputePlayerStats(results, m.session.Score)
	m.stats = &stats
	if err := m.store.SaveStats(ctx, m.session.PlayerID, stats); err != nil {
		m.logger.Error().Err(err).Msg("save player stats")
	}

	m.session.State = domain.StateFinished
	m.remaining = 0
	m.checkpointLocked(ctx)
	m.logger.Info().Int("score", m.session.Score).Int("correct", stats.CorrectAnswers).Msg("game finished")
}

func (m *PlayerMachine) saveSubmissionLocked(ctx context.Context) {
	sub := domain.Submission{
		QuestionID: m.session.QuestionID,
		Answers:    slices.Clone(m.selection),
		SelectedAt: m.selectedAt,
		Submitted:  m.submitted,
	}
	if m.submitted {
		sub.SubmittedAt = m.clock.Now()
	}
	if err := m.store.SaveSubmission(ctx, m.session.PlayerID, sub); err != nil {
		m.logger.Error().Err(err).Msg("save submission")
	}
}

func (m *PlayerMachine) checkpointLocked(ctx context.Context) {
	if err := m.store.Save(ctx, m.session); err != nil {
		m.logger.Error().Err(err).Msg("checkpoint player session")
	}
}

func (m *PlayerMachine) failLocked(msg string, err error) {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		msg = msg + ": " + apiErr.Message
	}
	m.lastErr = msg
	m.logger.Error().Err(err).Msg(msg)
}

func (m *PlayerMachine) publishLocked() {
	m.updates.publish(m.snapshotLocked())
	if m.session.State == domain.StateFinished {
		m.updates.closeAll()
	}
}

func (m *PlayerMachine) snapshotLocked() PlayerSnapshot {
	snap := PlayerSnapshot{
		PlayerID:  m.session.PlayerID,
		Name:      m.session.Name,
		State:     m.session.State,
		Remaining: m.remaining,
		Selected:  slices.Clone(m.selection),
		Submitted: m.submitted,
		Score:     m.session.Score,
		Stats:     m.stats,
		Error:     m.lastErr,
	}
	if m.question != nil && m.session.State != domain.StateFinished {
		q := *m.question
		snap.Question = &q
	}
	if m.session.Revealed {
		snap.CorrectAnswers = slices.Clone(m.session.CorrectAnswers)
		correct := m.session.Correct
		snap.Correct = &correct
	}
	return snap
}
