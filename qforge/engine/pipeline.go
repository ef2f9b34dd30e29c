// Package engine drives game session setup: a pipeline of generation
// stages that turns player preferences into a fully furnished world, the
// status machine that tracks it, and the gateway that mediates all provider
// traffic along the way.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// Tunables are the pipeline knobs that may change at runtime via config
// reload. Gate width and transport retry policy are fixed at startup; these
// are not.
type Tunables struct {
	StageAttempts      int    // generation attempts per stage
	SiblingParallelism int    // concurrent stages inside a group
	History            Budget // context window for narrative turns
}

func (t Tunables) withDefaults() Tunables {
	if t.StageAttempts <= 0 {
		t.StageAttempts = 3
	}
	if t.SiblingParallelism <= 0 {
		t.SiblingParallelism = 3
	}
	if t.History.MaxTokens <= 0 {
		t.History.MaxTokens = 2048
	}
	if t.History.MaxTurns <= 0 {
		t.History.MaxTurns = 40
	}
	return t
}

// Orchestrator drives sessions through the setup pipeline, persisting every
// artifact as it lands so a crashed or disconnected run resumes where it
// stopped instead of burning provider calls again.
type Orchestrator struct {
	store     session.Store
	gateway   *Gateway
	transport ports.Transport
	parser    *content.Parser
	validator *content.Validator
	logger    zerolog.Logger
	plan      []group
	tunables  atomic.Pointer[Tunables]

	// one Run per session per process; concurrent callers bounce off
	inflight sync.Map
}

// NewOrchestrator builds the pipeline around a store and gateway. A nil
// transport drops all events.
func NewOrchestrator(store session.Store, gateway *Gateway, transport ports.Transport, tun Tunables, logger zerolog.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator requires a session store")
	}
	if gateway == nil {
		return nil, errors.New("orchestrator requires a gateway")
	}
	if transport == nil {
		transport = nopTransport{}
	}

	validator, err := content.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	o := &Orchestrator{
		store:     store,
		gateway:   gateway,
		transport: transport,
		parser:    content.NewParser(),
		validator: validator,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		plan:      buildPlan(),
	}
	t := tun.withDefaults()
	o.tunables.Store(&t)
	return o, nil
}

// UpdateTunables swaps the runtime knobs. In-flight runs pick the new
// values up at their next stage wave.
func (o *Orchestrator) UpdateTunables(t Tunables) {
	fresh := t.withDefaults()
	o.tunables.Store(&fresh)
}

// Tunables returns the currently active knobs.
func (o *Orchestrator) Tunables() Tunables {
	return *o.tunables.Load()
}

// Run drives the session from wherever it stands until it is active. It is
// safe to call again after a crash or disconnect: finished stages are
// recognized by their stored artifacts and never regenerated. A canceled
// context stops the run without marking the session failed; only exhausted
// stages do that.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	if _, loaded := o.inflight.LoadOrStore(id, struct{}{}); loaded {
		return fmt.Errorf("%w: %s", ErrRunInProgress, id)
	}
	defer o.inflight.Delete(id)

	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}

	switch s.Status {
	case session.StatusCompleted, session.StatusActive:
		return nil
	case session.StatusFailed:
		return fmt.Errorf("%w: %s", ErrSessionFailed, id)
	}

	logger := o.logger.With().Str("session_id", id).Logger()
	o.pruneInvalidArtifacts(s, logger)
	if s.Artifacts == nil {
		// Stores that round-trip the aggregate through JSON hand back a
		// nil map when no artifact exists yet.
		s.Artifacts = make(map[content.Kind]json.RawMessage)
	}

	for _, grp := range o.plan {
		pending := pendingStages(grp, s)
		if len(pending) == 0 {
			continue
		}

		if err := o.advance(ctx, s, grp.status); err != nil {
			return err
		}

		if err := o.runGroup(ctx, s, pending, logger); err != nil {
			var stageErr *StageError
			if errors.As(err, &stageErr) {
				return o.escalate(ctx, s, stageErr, logger)
			}
			if errors.Is(err, ErrDependencyMissing) {
				logger.Error().Err(err).Msg("pipeline wiring violated, leaving session as is")
			}
			return err
		}
	}

	if err := o.advance(ctx, s, session.StatusActive); err != nil {
		return err
	}
	o.deliverIntroduction(s, logger)
	logger.Info().Msg("session setup complete")
	return nil
}

// Retry clears a failed session's marker and resumes setup from the first
// missing artifact. This is the only path out of the failed status.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.Status != session.StatusFailed {
		return fmt.Errorf("%w: session is %s, only failed sessions can be retried", session.ErrStatusConflict, s.Status)
	}

	logger := o.logger.With().Str("session_id", id).Logger()
	o.pruneInvalidArtifacts(s, logger)
	target := o.deriveStatus(s)

	if err := o.store.Patch(ctx, id, session.Patch{ClearFailure: true}); err != nil {
		return fmt.Errorf("clear failure marker: %w", err)
	}
	if err := o.store.TransitionStatus(ctx, id, session.StatusFailed, target); err != nil {
		return fmt.Errorf("leave failed status: %w", err)
	}
	o.transport.EmitStateUpdate(ports.StateUpdate{SessionID: id, Status: string(target)})
	logger.Info().Str("resuming_at", string(target)).Msg("retrying failed session")

	return o.Run(ctx, id)
}

// deriveStatus reads progress purely from the artifacts present: the status
// of the first group with work left, or active when none remains.
func (o *Orchestrator) deriveStatus(s *session.Session) session.Status {
	for _, grp := range o.plan {
		if len(pendingStages(grp, s)) > 0 {
			return grp.status
		}
	}
	return session.StatusActive
}

// pruneInvalidArtifacts drops stored artifacts that no longer pass their
// schema so the owning stage regenerates them on this run.
func (o *Orchestrator) pruneInvalidArtifacts(s *session.Session, logger zerolog.Logger) {
	for kind, raw := range s.Artifacts {
		if err := o.validator.Validate(kind, raw); err != nil {
			logger.Warn().Err(err).Str("kind", string(kind)).Msg("stored artifact failed revalidation, will regenerate")
			delete(s.Artifacts, kind)
		}
	}
}

// advance moves the session forward to the given status, emitting the
// update. Targets at or behind the current status are a no-op: status never
// regresses, even when a pruned early artifact is being regenerated.
func (o *Orchestrator) advance(ctx context.Context, s *session.Session, to session.Status) error {
	if s.Status == to || to.Before(s.Status) {
		return nil
	}
	if err := o.store.TransitionStatus(ctx, s.ID, s.Status, to); err != nil {
		return fmt.Errorf("advance to %s: %w", to, err)
	}
	s.Status = to
	o.transport.EmitStateUpdate(ports.StateUpdate{SessionID: s.ID, Status: string(to)})
	o.logger.Debug().Str("session_id", s.ID).Str("status", string(to)).Msg("session advanced")
	return nil
}

type stageResult struct {
	stage *Stage
	raw   json.RawMessage
	err   error
}

// runGroup executes the group's pending stages in dependency waves. Stages
// whose inputs exist run concurrently up to the sibling parallelism bound;
// a failing stage never cancels its siblings, so their finished artifacts
// are kept even when the group as a whole fails.
func (o *Orchestrator) runGroup(ctx context.Context, s *session.Session, pending []*Stage, logger zerolog.Logger) error {
	for len(pending) > 0 {
		tun := o.Tunables()

		var ready, blocked []*Stage
		for _, st := range pending {
			if st.Ready(s) {
				ready = append(ready, st)
			} else {
				blocked = append(blocked, st)
			}
		}
		if len(ready) == 0 {
			return fmt.Errorf("%w: stages %s have unmet inputs", ErrDependencyMissing, strings.Join(stageNames(blocked), ", "))
		}

		results := make([]stageResult, len(ready))
		p := pool.New().WithContext(ctx).WithMaxGoroutines(tun.SiblingParallelism)
		for i, st := range ready {
			p.Go(func(ctx context.Context) error {
				raw, err := o.runStage(ctx, s, st, tun.StageAttempts, logger)
				results[i] = stageResult{stage: st, raw: raw, err: err}
				return nil
			})
		}
		_ = p.Wait()

		if err := ctx.Err(); err != nil {
			return err
		}

		var firstErr error
		for _, res := range results {
			if res.err != nil {
				if firstErr == nil {
					firstErr = res.err
				}
				continue
			}
			s.Artifacts[res.stage.Kind] = res.raw
			o.transport.EmitStateUpdate(ports.StateUpdate{
				SessionID: s.ID,
				Status:    string(s.Status),
				Stage:     res.stage.Name,
			})
		}
		if firstErr != nil {
			return firstErr
		}

		pending = blocked
	}
	return nil
}

// runStage makes bounded generation attempts for one stage and commits the
// artifact on success. Unusable content earns another attempt with the
// failure phrased as feedback; everything else is terminal for the stage.
func (o *Orchestrator) runStage(ctx context.Context, s *session.Session, st *Stage, attempts int, logger zerolog.Logger) (json.RawMessage, error) {
	stageLogger := logger.With().Str("stage", st.Name).Logger()

	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		prompt, err := st.Prompt(PromptRequest{Session: s, Attempt: attempt, Feedback: feedback})
		if err != nil {
			return nil, err
		}

		raw, err := o.generateOnce(ctx, st, prompt)
		if err == nil {
			if err := o.commitStage(ctx, s, st, raw); err != nil {
				return nil, err
			}
			stageLogger.Info().Int("attempt", attempt).Msg("stage complete")
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if !retryable(err) {
			return nil, &StageError{Stage: st.Name, Attempts: attempt, Err: err}
		}
		feedback = retryFeedback(err)
		stageLogger.Warn().Err(err).Int("attempt", attempt).Msg("stage produced unusable content")
	}
	return nil, &StageError{Stage: st.Name, Attempts: attempts, Err: lastErr}
}

// generateOnce is one full generation attempt: provider call, payload
// extraction, schema validation.
func (o *Orchestrator) generateOnce(ctx context.Context, st *Stage, prompt string) (json.RawMessage, error) {
	text, err := o.gateway.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	raw, err := o.parser.Extract(text)
	if err != nil {
		return nil, err
	}
	if err := o.validator.Validate(st.Kind, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// commitStage persists the artifact, seeding the conversation log in the
// same write when the stage produced the introduction. A canceled context
// discards the result instead of committing it.
func (o *Orchestrator) commitStage(ctx context.Context, s *session.Session, st *Stage, raw json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	patch := session.Patch{Artifacts: map[content.Kind]json.RawMessage{st.Kind: raw}}
	if st.Kind == content.KindIntroduction {
		intro, err := content.DecodeIntroduction(raw)
		if err != nil {
			return fmt.Errorf("decode introduction: %w", err)
		}
		patch.AppendTurns = []session.Turn{{
			Role:      session.RoleCharacter,
			Content:   intro.Text,
			Timestamp: time.Now().UTC(),
			Meta:      map[string]string{"kind": string(content.KindIntroduction)},
		}}
	}

	if err := o.store.Patch(ctx, s.ID, patch); err != nil {
		return fmt.Errorf("persist %s artifact: %w", st.Kind, err)
	}
	return nil
}

// escalate records the stage failure on the session and moves it to
// failed. The stage error itself is returned so callers can inspect the
// underlying cause.
func (o *Orchestrator) escalate(ctx context.Context, s *session.Session, stageErr *StageError, logger zerolog.Logger) error {
	reason := friendlyReason(stageErr.Err)
	logger.Error().Err(stageErr.Err).
		Str("stage", stageErr.Stage).
		Int("attempts", stageErr.Attempts).
		Msg("stage exhausted its attempts, failing session")

	if err := o.store.Patch(ctx, s.ID, session.Patch{
		SetFailure: &session.Failure{Stage: stageErr.Stage, Reason: reason},
	}); err != nil {
		logger.Error().Err(err).Msg("could not record failure marker")
	}
	if err := o.store.TransitionStatus(ctx, s.ID, s.Status, session.StatusFailed); err != nil {
		return fmt.Errorf("mark session failed: %w", err)
	}
	s.Status = session.StatusFailed

	o.transport.EmitStateUpdate(ports.StateUpdate{
		SessionID:     s.ID,
		Status:        string(session.StatusFailed),
		FailureStage:  stageErr.Stage,
		FailureReason: reason,
	})
	return stageErr
}

// deliverIntroduction pushes the opening narration to the player once the
// session turns active.
func (o *Orchestrator) deliverIntroduction(s *session.Session, logger zerolog.Logger) {
	raw, ok := s.Artifact(content.KindIntroduction)
	if !ok {
		logger.Warn().Msg("session went active without an introduction artifact")
		return
	}
	intro, err := content.DecodeIntroduction(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("introduction artifact undecodable")
		return
	}
	o.transport.EmitGameMessage(ports.GameMessage{
		SessionID: s.ID,
		Role:      session.RoleCharacter,
		Content:   intro.Text,
	})
}
