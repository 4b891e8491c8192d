package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"bigbrain-client/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionSnapshot is the admin's view of a running session.
type SessionSnapshot struct {
	SessionID       string           `json:"sessionId"`
	Position        int              `json:"position"`
	Total           int              `json:"total"`
	Question        *domain.Question `json:"question,omitempty"`
	Remaining       int              `json:"remaining"`
	AnswerAvailable bool             `json:"answerAvailable"`
	Players         []string         `json:"players"`
	Finished        bool             `json:"finished"`
	Error           string           `json:"error,omitempty"`
}

// SessionMonitor polls a session's status on the same tick model as the
// player machine and keeps a local countdown for the current question.
type SessionMonitor struct {
	api       AdminAPI
	clock     clockwork.Clock
	cfg       MachineConfig
	token     string
	sessionID string
	gameID    string
	logger    zerolog.Logger

	mu        sync.Mutex
	status    domain.SessionStatus
	question  *domain.Question
	startedAt time.Time
	remaining int
	finished  bool
	lastErr   string

	updates *broadcaster[SessionSnapshot]
}

func newSessionMonitor(api AdminAPI, clock clockwork.Clock, cfg MachineConfig, token, sessionID, gameID string) *SessionMonitor {
	m := &SessionMonitor{
		api:       api,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		token:     token,
		sessionID: sessionID,
		gameID:    gameID,
		logger:    log.With().Str("session_id", sessionID).Logger(),
	}
	m.updates = newBroadcaster(m.snapshotLocked())
	return m
}

// Run ticks until the session stops being active or ctx is cancelled.
func (m *SessionMonitor) Run(ctx context.Context) error {
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
			m.Tick()
			if ticks%m.cfg.PollEvery == 0 {
				_ = m.Poll(ctx)
			}
		}
	}
	return nil
}

// Poll refreshes the session status.
func (m *SessionMonitor) Poll(ctx context.Context) error {
	status, err := m.api.SessionStatus(ctx, m.token, m.sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return nil
	}
	defer m.publishLocked()

	if err != nil {
		m.lastErr = "Failed to get session status"
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			m.lastErr += ": " + apiErr.Message
		}
		m.logger.Error().Err(err).Msg("poll session status")
		return err
	}
	m.lastErr = ""
	m.applyLocked(status)
	return nil
}

func (m *SessionMonitor) applyLocked(status domain.SessionStatus) {
	now := m.clock.Now()
	prevPosition := m.status.Position
	m.status = status
	if !status.Active {
		m.finished = true
		m.question = nil
		m.remaining = 0
		m.logger.Info().Msg("session finished")
		return
	}

	q, ok := status.CurrentQuestion()
	if !ok {
		m.question = nil
		m.remaining = 0
		return
	}
	if status.StartedAt.IsZero() && !q.StartedAt.IsZero() {
		status.StartedAt = q.StartedAt
	}

	sameQuestion := m.question != nil && m.question.ID == q.ID && prevPosition == status.Position
	start := status.StartedAt
	if start.IsZero() {
		if sameQuestion {
			start = m.startedAt
		} else {
			start = now
		}
	}
	server := domain.Remaining(start, q.TimeLimit(), now)
	if status.AnswerAvailable {
		server = 0
	}

	if !sameQuestion {
		m.logger.Info().Int("position", status.Position).Str("question_id", q.ID).Msg("question on screen")
		m.remaining = server
	} else if drift := time.Duration(abs(server-m.remaining)) * time.Second; drift > m.cfg.DriftTolerance || server == 0 {
		m.remaining = server
	}
	m.question = &q
	m.startedAt = start
}

// Tick advances the local countdown.
func (m *SessionMonitor) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished || m.question == nil || m.remaining == 0 {
		return
	}
	m.remaining--
	m.publishLocked()
}

// Advance moves the session forward and refreshes the view immediately.
func (m *SessionMonitor) Advance(ctx context.Context) error {
	if m.gameID == "" {
		return domain.ErrGameIDNotFound
	}
	if _, err := m.api.MutateGame(ctx, m.token, m.gameID, domain.MutationAdvance); err != nil {
		return err
	}
	return m.Poll(ctx)
}

// Snapshot returns the current view.
func (m *SessionMonitor) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe streams snapshots until the session finishes.
func (m *SessionMonitor) Subscribe() (<-chan SessionSnapshot, func()) {
	return m.updates.subscribe()
}

// Finished reports whether the session is no longer active.
func (m *SessionMonitor) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

func (m *SessionMonitor) publishLocked() {
	m.updates.publish(m.snapshotLocked())
	if m.finished {
		m.updates.closeAll()
	}
}

func (m *SessionMonitor) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		SessionID:       m.sessionID,
		Position:        m.status.Position,
		Total:           len(m.status.Questions),
		Remaining:       m.remaining,
		AnswerAvailable: m.status.AnswerAvailable,
		Players:         append([]string(nil), m.status.Players...),
		Finished:        m.finished,
		Error:           m.lastErr,
	}
	if m.question != nil {
		q := *m.question
		snap.Question = &q
	}
	return snap
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
