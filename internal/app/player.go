package app

import (
	"context"
	"fmt"

	"bigbrain-client/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// PlayerService contains the player use cases around the polling machine.
type PlayerService struct {
	api   PlayerAPI
	store *PlayerStore
	clock clockwork.Clock
	cfg   MachineConfig
}

func NewPlayerService(api PlayerAPI, store *PlayerStore, clock clockwork.Clock, cfg MachineConfig) *PlayerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PlayerService{api: api, store: store, clock: clock, cfg: cfg}
}

// Join registers name in sessionID and checkpoints a fresh waiting session.
func (s *PlayerService) Join(ctx context.Context, sessionID, name string) (domain.PlayerSession, error) {
	playerID, err := s.api.JoinSession(ctx, sessionID, name)
	if err != nil {
		return domain.PlayerSession{}, err
	}
	session := domain.PlayerSession{
		PlayerID:  playerID,
		SessionID: sessionID,
		Name:      name,
		State:     domain.StateWaiting,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return domain.PlayerSession{}, fmt.Errorf("save joined player: %w", err)
	}
	log.Info().Str("session_id", sessionID).Str("player_id", playerID).Str("name", name).Msg("joined session")
	return session, nil
}

// Machine builds the polling machine for playerID, or for the last joined
// player when playerID is empty.
func (s *PlayerService) Machine(ctx context.Context, playerID string) (*PlayerMachine, error) {
	if playerID == "" {
		current, err := s.store.CurrentPlayer(ctx)
		if err != nil {
			return nil, err
		}
		playerID = current
	}
	return NewPlayerMachine(ctx, s.api, s.store, s.clock, s.cfg, playerID)
}

// Results returns the stored stats of a finished game, computing them from
// the backend when none were saved.
func (s *PlayerService) Results(ctx context.Context, playerID string) (domain.PlayerStats, error) {
	if playerID == "" {
		current, err := s.store.CurrentPlayer(ctx)
		if err != nil {
			return domain.PlayerStats{}, err
		}
		playerID = current
	}
	if stats, ok, err := s.store.Stats(ctx, playerID); err != nil {
		return domain.PlayerStats{}, err
	} else if ok {
		return stats, nil
	}

	results, err := s.api.PlayerResults(ctx, playerID)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	session, err := s.store.Load(ctx, playerID)
	if err != nil {
		return domain.PlayerStats{}, err
	}
	stats := domain.ComputePlayerStats(results, session.Score)
	if err := s.store.SaveStats(ctx, playerID, stats); err != nil {
		return domain.PlayerStats{}, err
	}
	return stats, nil
}
