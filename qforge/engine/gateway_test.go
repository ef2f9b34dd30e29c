package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/questforge/qforge/engine/adapters"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

// countingProvider implements Provider for testing, failing a scripted
// number of calls before succeeding.
type countingProvider struct {
	mu          sync.Mutex
	calls       int
	failures    int
	err         error
	text        string
	lastHistory []ports.HistoryTurn
}

func (p *countingProvider) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastHistory = history
	if p.calls <= p.failures {
		return "", p.err
	}
	return p.text, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Ensure countingProvider implements the Provider interface.
var _ ports.Provider = (*countingProvider)(nil)

func newTestGateway(provider ports.Provider, gate ports.Gate) *Gateway {
	return NewGateway(provider, gate, GatewayConfig{
		CallTimeout: 5 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}, zerolog.New(zerolog.Nop()))
}

// TestGateway_PassesTextAndHistoryThrough tests the plain success path.
func TestGateway_PassesTextAndHistoryThrough(t *testing.T) {
	provider := &countingProvider{text: "a reply"}
	gateway := newTestGateway(provider, nil)

	history := []ports.HistoryTurn{{Role: ports.RoleUser, Content: "earlier"}}
	text, err := gateway.Generate(context.Background(), "a prompt", history)
	assert.NoError(t, err)
	assert.Equal(t, "a reply", text)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, history, provider.lastHistory)
}

// TestGateway_RetriesTransientFailures tests that unavailability is retried
// until the provider recovers.
func TestGateway_RetriesTransientFailures(t *testing.T) {
	provider := &countingProvider{
		failures: 2,
		err:      fmt.Errorf("%w: connection reset", ports.ErrUnavailable),
		text:     "recovered",
	}
	gateway := newTestGateway(provider, nil)

	text, err := gateway.Generate(context.Background(), "prompt", nil)
	assert.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, provider.callCount())
}

// TestGateway_ExhaustsTransientRetries tests the attempt bound: a provider
// that never recovers is tried exactly MaxAttempts times.
func TestGateway_ExhaustsTransientRetries(t *testing.T) {
	provider := &countingProvider{
		failures: 100,
		err:      fmt.Errorf("%w: connection refused", ports.ErrUnavailable),
	}
	gateway := newTestGateway(provider, nil)

	_, err := gateway.Generate(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, provider.callCount())
}

// TestGateway_DoesNotRetryRejection tests that refused requests are
// terminal on the first call.
func TestGateway_DoesNotRetryRejection(t *testing.T) {
	provider := &countingProvider{
		failures: 100,
		err:      fmt.Errorf("%w: safety filter", ports.ErrRejected),
	}
	gateway := newTestGateway(provider, nil)

	_, err := gateway.Generate(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.Equal(t, 1, provider.callCount())
}

// timeoutProvider blocks through its first call's deadline, then recovers.
type timeoutProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *timeoutProvider) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()

	if n == 1 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "recovered", nil
}

// TestGateway_AttemptTimeoutIsTransient tests that a timed out attempt
// counts as unavailability and earns a retry.
func TestGateway_AttemptTimeoutIsTransient(t *testing.T) {
	provider := &timeoutProvider{}
	gateway := NewGateway(provider, nil, GatewayConfig{
		CallTimeout: 20 * time.Millisecond,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
	}, zerolog.New(zerolog.Nop()))

	text, err := gateway.Generate(context.Background(), "prompt", nil)
	assert.NoError(t, err)
	assert.Equal(t, "recovered", text)
}

// concurrencyProbe counts how many Generate calls overlap.
type concurrencyProbe struct {
	current atomic.Int32
	max     atomic.Int32
}

func (p *concurrencyProbe) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	cur := p.current.Add(1)
	for {
		old := p.max.Load()
		if cur <= old || p.max.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	p.current.Add(-1)
	return "ok", nil
}

// TestGateway_GateBoundsConcurrency tests that a width-1 gate serializes
// provider calls across goroutines.
func TestGateway_GateBoundsConcurrency(t *testing.T) {
	probe := &concurrencyProbe{}
	gateway := newTestGateway(probe, adapters.NewSemaphoreGate(1))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gateway.Generate(context.Background(), "prompt", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), probe.max.Load())
}

// TestGateway_GateAdmissionHonorsContext tests that a caller waiting on a
// full gate gives up when its context expires, without a provider call.
func TestGateway_GateAdmissionHonorsContext(t *testing.T) {
	gate := adapters.NewSemaphoreGate(1)
	release, err := gate.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	provider := &countingProvider{text: "never"}
	gateway := newTestGateway(provider, gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = gateway.Generate(ctx, "prompt", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, provider.callCount())
}
