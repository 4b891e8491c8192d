package app

import (
	"context"
	"fmt"

	"bigbrain-client/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// AdminAPI is the subset of the backend the admin side talks to.
type AdminAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, name string) (string, error)
	Logout(ctx context.Context, token string) error
	ListGames(ctx context.Context, token string) ([]domain.Game, error)
	SaveGames(ctx context.Context, token string, games []domain.Game) error
	MutateGame(ctx context.Context, token, gameID string, m domain.Mutation) (string, error)
	SessionStatus(ctx context.Context, token, sessionID string) (domain.SessionStatus, error)
	SessionResults(ctx context.Context, token, sessionID string) ([]domain.SessionPlayer, error)
}

// AdminService contains the admin use cases: auth, games and session control.
type AdminService struct {
	api   AdminAPI
	kv    Store
	clock clockwork.Clock
	cfg   MachineConfig
}

func NewAdminService(api AdminAPI, kv Store, clock clockwork.Clock, cfg MachineConfig) *AdminService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminService{api: api, kv: kv, clock: clock, cfg: cfg}
}

// Login authenticates and stores the token and email.
func (s *AdminService) Login(ctx context.Context, email, password string) error {
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.remember(ctx, token, email)
}

// Register creates the account and stores the token and email.
func (s *AdminService) Register(ctx context.Context, email, password, name string) error {
	token, err := s.api.Register(ctx, email, password, name)
	if err != nil {
		return err
	}
	return s.remember(ctx, token, email)
}

func (s *AdminService) remember(ctx context.Context, token, email string) error {
	if err := s.kv.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.kv.Set(ctx, keyEmail, email); err != nil {
		return fmt.Errorf("store email: %w", err)
	}
	log.Info().Str("email", email).Msg("admin logged in")
	return nil
}

// Logout tells the backend and forgets the local credentials even when the
// backend call fails.
func (s *AdminService) Logout(ctx context.Context) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	apiErr := s.api.Logout(ctx, token)
	if apiErr != nil {
		log.Warn().Err(apiErr).Msg("backend logout failed")
	}
	for _, key := range []string{keyToken, keyEmail} {
		if err := s.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("forget %s: %w", key, err)
		}
	}
	return apiErr
}

// Email returns the logged-in admin's email.
func (s *AdminService) Email(ctx context.Context) (string, error) {
	if _, err := s.token(ctx); err != nil {
		return "", err
	}
	email, _, err := s.kv.Get(ctx, keyEmail)
	return email, err
}

func (s *AdminService) token(ctx context.Context) (string, error) {
	token, ok, err := s.kv.Get(ctx, keyToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", domain.ErrNotAuthenticated
	}
	return token, nil
}

// ListGames returns the admin's games.
func (s *AdminService) ListGames(ctx context.Context) ([]domain.Game, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.ListGames(ctx, token)
}

// SaveGames validates every question and replaces the game list.
func (s *AdminService) SaveGames(ctx context.Context, games []domain.Game) error {
	for _, g := range games {
		if err := domain.ValidateGame(g); err != nil {
			return err
		}
	}
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	return s.api.SaveGames(ctx, token, games)
}

func (s *AdminService) findGame(ctx context.Context, token, gameID string) (domain.Game, error) {
	games, err := s.api.ListGames(ctx, token)
	if err != nil {
		return domain.Game{}, err
	}
	for _, g := range games {
		if g.ID == gameID {
			return g, nil
		}
	}
	return domain.Game{}, fmt.Errorf("%w: %s", domain.ErrGameNotFound, gameID)
}

// StartGame starts a session for gameID and remembers which game it belongs to.
func (s *AdminService) StartGame(ctx context.Context, gameID string) (string, error) {
	token, err := s.token(ctx)
	if err != nil {
		return "", err
	}
	game, err := s.findGame(ctx, token, gameID)
	if err != nil {
		return "", err
	}
	if game.Active != "" {
		return "", fmt.Errorf("game %q: %w", game.Name, domain.ErrSessionAlreadyActive)
	}

	sessionID, err := s.api.MutateGame(ctx, token, gameID, domain.MutationStart)
	if err != nil {
		return "", fmt.Errorf("failed to start game session: %w", err)
	}
	if sessionID == "" {
		return "", fmt.Errorf("failed to start game session: no session id returned")
	}
	if err := s.kv.Set(ctx, sessionGameKey(sessionID), gameID); err != nil {
		return "", fmt.Errorf("remember session game: %w", err)
	}
	log.Info().Str("game_id", gameID).Str("session_id", sessionID).Msg("session started")
	return sessionID, nil
}

// GameForSession returns the game id recorded when the session started.
func (s *AdminService) GameForSession(ctx context.Context, sessionID string) (string, error) {
	gameID, ok, err := s.kv.Get(ctx, sessionGameKey(sessionID))
	if err != nil {
		return "", err
	}
	if !ok || gameID == "" {
		return "", domain.ErrGameIDNotFound
	}
	return gameID, nil
}

// Advance moves the session to its next question and returns the new status.
func (s *AdminService) Advance(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	gameID, err := s.GameForSession(ctx, sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	token, err := s.token(ctx)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	if _, err := s.api.MutateGame(ctx, token, gameID, domain.MutationAdvance); err != nil {
		return domain.SessionStatus{}, fmt.Errorf("failed to advance question: %w", err)
	}
	status, err := s.api.SessionStatus(ctx, token, sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	log.Info().Str("session_id", sessionID).Int("position", status.Position).Msg("session advanced")
	return status, nil
}

// EndGame stops gameID's active session and returns the stopped session id.
func (s *AdminService) EndGame(ctx context.Context, gameID string) (string, error) {
	token, err := s.token(ctx)
	if err != nil {
		return "", err
	}
	game, err := s.findGame(ctx, token, gameID)
	if err != nil {
		return "", err
	}
	if game.Active == "" {
		return "", fmt.Errorf("game %q: %w", game.Name, domain.ErrNoActiveSession)
	}
	if _, err := s.api.MutateGame(ctx, token, gameID, domain.MutationEnd); err != nil {
		return "", fmt.Errorf("failed to stop game session: %w", err)
	}
	log.Info().Str("game_id", gameID).Str("session_id", game.Active).Msg("session ended")
	return game.Active, nil
}

// SessionResults ranks the players of a finished session.
func (s *AdminService) SessionResults(ctx context.Context, sessionID string) ([]domain.PlayerRanking, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	players, err := s.api.SessionResults(ctx, token, sessionID)
	if err != nil {
		return nil, err
	}
	return domain.RankPlayers(players), nil
}

// Monitor builds a SessionMonitor for sessionID.
func (s *AdminService) Monitor(ctx context.Context, sessionID string) (*SessionMonitor, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	gameID, err := s.GameForSession(ctx, sessionID)
	if err != nil {
		log.Warn().Str("session_id", sessionID).Msg("no game recorded for session, advancing disabled")
	}
	return newSessionMonitor(s.api, s.clock, s.cfg, token, sessionID, gameID), nil
}
