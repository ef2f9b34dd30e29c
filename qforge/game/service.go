// Package game is the player-facing surface: starting, resuming and
// retrying sessions, and playing turns once a session is active.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/questforge/qforge/engine"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// ErrNotActive is returned for play operations on sessions still in setup,
// failed, or already concluded.
var ErrNotActive = errors.New("session is not active")

// Service glues the session store, the setup pipeline and the provider
// gateway into the operations a frontend calls.
type Service struct {
	store     session.Store
	orch      *engine.Orchestrator
	gateway   *engine.Gateway
	transport ports.Transport
	windower  *engine.Windower
	logger    zerolog.Logger
}

// NewService wires a game service. All dependencies are required.
func NewService(store session.Store, orch *engine.Orchestrator, gateway *engine.Gateway, transport ports.Transport, logger zerolog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("game service requires a session store")
	}
	if orch == nil {
		return nil, errors.New("game service requires an orchestrator")
	}
	if gateway == nil {
		return nil, errors.New("game service requires a gateway")
	}
	if transport == nil {
		return nil, errors.New("game service requires a transport")
	}
	return &Service{
		store:     store,
		orch:      orch,
		gateway:   gateway,
		transport: transport,
		windower:  engine.NewWindower(engine.Budget{}, nil),
		logger:    logger.With().Str("component", "game").Logger(),
	}, nil
}

// StartGame creates a session from the player's preferences and drives
// setup. The returned session reflects the stored state even when setup
// ended in failure, so callers can show what happened.
func (s *Service) StartGame(ctx context.Context, prefs map[string]string) (*session.Session, error) {
	sess := session.New(prefs)
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info().Str("session_id", sess.ID).Msg("starting new game")

	runErr := s.orch.Run(ctx, sess.ID)
	latest, err := s.store.Get(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return latest, runErr
}

// Resume picks an existing session back up: setup continues where its
// artifacts left off, active sessions come back untouched.
func (s *Service) Resume(ctx context.Context, id string) (*session.Session, error) {
	s.logger.Info().Str("session_id", id).Msg("resuming game")

	runErr := s.orch.Run(ctx, id)
	latest, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return latest, runErr
}

// Retry clears a failed session's marker and resumes setup from the first
// missing artifact.
func (s *Service) Retry(ctx context.Context, id string) (*session.Session, error) {
	retryErr := s.orch.Retry(ctx, id)
	latest, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return latest, retryErr
}

// HandleTurn narrates one player action. The player's input and the
// narration are committed to the log in a single write, then the narration
// goes out over the transport.
func (s *Service) HandleTurn(ctx context.Context, id, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty player input")
	}

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Status != session.StatusActive {
		return "", fmt.Errorf("%w: session is %s", ErrNotActive, sess.Status)
	}

	prompt, err := engine.NarrativePrompt(sess, input)
	if err != nil {
		return "", err
	}
	budget := s.orch.Tunables().History
	history := s.windower.Window(sess.Log, &budget)

	reply, err := s.gateway.Generate(ctx, prompt, history)
	if err != nil {
		return "", fmt.Errorf("narrate turn: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: provider returned empty narration", engine.ErrProviderUnavailable)
	}

	now := time.Now().UTC()
	patch := session.Patch{AppendTurns: []session.Turn{
		{Role: session.RoleUser, Content: input, Timestamp: now},
		{Role: session.RoleCharacter, Content: reply, Timestamp: now},
	}}
	if err := s.store.Patch(ctx, id, patch); err != nil {
		return "", fmt.Errorf("persist turn: %w", err)
	}

	s.transport.EmitGameMessage(ports.GameMessage{
		SessionID: id,
		Role:      session.RoleCharacter,
		Content:   reply,
	})
	return reply, nil
}

// End concludes an active session. The closing entry lands in the log
// before the status flips to completed, which is final.
func (s *Service) End(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusActive {
		return nil, fmt.Errorf("%w: session is %s", ErrNotActive, sess.Status)
	}

	patch := session.Patch{AppendTurns: []session.Turn{{
		Role:      session.RoleSystem,
		Content:   "The adventure concludes here.",
		Timestamp: time.Now().UTC(),
		Meta:      map[string]string{"kind": "epilogue"},
	}}}
	if err := s.store.Patch(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("close session log: %w", err)
	}
	if err := s.store.TransitionStatus(ctx, id, session.StatusActive, session.StatusCompleted); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	s.transport.EmitStateUpdate(ports.StateUpdate{
		SessionID: id,
		Status:    string(session.StatusCompleted),
	})
	s.logger.Info().Str("session_id", id).Msg("session completed")

	return s.store.Get(ctx, id)
}

// Session loads the current state of a session.
func (s *Service) Session(ctx context.Context, id string) (*session.Session, error) {
	return s.store.Get(ctx, id)
}
