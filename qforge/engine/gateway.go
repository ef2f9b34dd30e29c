package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

const (
	defaultCallTimeout = 60 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	backoffJitter      = 100 * time.Millisecond
)

// GatewayConfig tunes per-call behavior. Zero values fall back to the
// defaults above.
type GatewayConfig struct {
	CallTimeout time.Duration // deadline per provider attempt
	MaxAttempts int           // transport attempts per Generate
	BackoffBase time.Duration // base delay for exponential backoff
}

// Gateway mediates every provider call in the process: admission through
// the global gate, a deadline per attempt, and bounded retries with
// exponential backoff for transient failures. The gateway only moves text;
// parsing and validation are the caller's business.
type Gateway struct {
	provider ports.Provider
	gate     ports.Gate
	logger   zerolog.Logger
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// NewGateway wires a provider behind the admission gate. A nil gate admits
// everything.
func NewGateway(provider ports.Provider, gate ports.Gate, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if gate == nil {
		gate = nopGate{}
	}
	return &Gateway{
		provider: provider,
		gate:     gate,
		logger:   logger.With().Str("component", "gateway").Logger(),
		timeout:  cfg.CallTimeout,
		attempts: cfg.MaxAttempts,
		backoff:  cfg.BackoffBase,
	}
}

// Generate runs one admitted provider call and returns the raw text.
// Transient failures are retried up to the attempt bound with jittered
// exponential backoff. An attempt already in flight when the caller cancels
// is allowed to finish against its own deadline; the caller discards the
// result rather than committing work from a canceled run.
func (g *Gateway) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("gate: %w", err)
	}
	defer release()

	backoff := retry.WithJitter(backoffJitter,
		retry.WithMaxRetries(uint64(g.attempts-1),
			retry.NewExponential(g.backoff)))

	var out string
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()

		text, err := g.provider.Generate(callCtx, prompt, history)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: call timed out after %s", ErrProviderUnavailable, g.timeout)
			}
			if errors.Is(err, ErrProviderUnavailable) {
				g.logger.Warn().Err(err).Int("attempt", attempt).Msg("provider call failed, will retry")
				return retry.RetryableError(err)
			}
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
