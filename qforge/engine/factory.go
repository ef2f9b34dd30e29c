package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"github.com/ZanzyTHEbar/questforge/qforge/config"
	"github.com/ZanzyTHEbar/questforge/qforge/db"
	"github.com/ZanzyTHEbar/questforge/qforge/engine/adapters"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// Provider backends the factory knows how to build.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// Factory creates and wires engine components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a new engine factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// Engine bundles the wired components a caller runs sessions with. Close
// releases the store and provider; transports are the caller's to close.
type Engine struct {
	Orchestrator *Orchestrator
	Gateway      *Gateway
	Store        session.Store
	Transport    ports.Transport

	provider ports.Provider
}

// Close releases held resources.
func (e *Engine) Close() error {
	if c, ok := e.provider.(io.Closer); ok {
		_ = c.Close()
	}
	return e.Store.Close()
}

// Build wires a full engine from config. A nil transport drops all events.
func (f *Factory) Build(ctx context.Context, transport ports.Transport) (*Engine, error) {
	if transport == nil {
		transport = nopTransport{}
	}

	store, err := f.CreateStore(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := f.CreateProvider(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gateway := NewGateway(provider, f.createGate(), GatewayConfig{
		CallTimeout: f.cfg.Provider.CallTimeout,
		MaxAttempts: f.cfg.Provider.MaxAttempts,
		BackoffBase: f.cfg.Provider.BackoffBase,
	}, f.logger)

	orch, err := NewOrchestrator(store, gateway, transport, TunablesFromConfig(f.cfg), f.logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Engine{
		Orchestrator: orch,
		Gateway:      gateway,
		Store:        store,
		Transport:    transport,
		provider:     provider,
	}, nil
}

// CreateStore creates a session store from config.
func (f *Factory) CreateStore(ctx context.Context) (session.Store, error) {
	opts := []session.Option{session.WithLogger(f.logger)}
	if f.cfg.Store.CacheEnabled {
		opts = append(opts, session.WithReadCache(f.cfg.Store.CacheCapacity, f.cfg.Store.CacheTTL))
	}

	driver := session.Driver(f.cfg.Store.Driver)
	switch driver {
	case session.DriverMemory:
		// nothing extra to wire

	case session.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     f.cfg.Store.RedisAddr,
			Password: f.cfg.Store.RedisPassword,
			DB:       f.cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", f.cfg.Store.RedisAddr, err)
		}
		opts = append(opts, session.WithRedisClient(client), session.WithRedisTTL(f.cfg.Store.RedisTTL))

	case session.DriverLibSQL:
		handle, err := db.Connect(f.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		opts = append(opts, session.WithDB(handle))

	case session.DriverSupabase:
		if f.cfg.Store.SupabaseURL == "" || f.cfg.Store.SupabaseKey == "" {
			return nil, fmt.Errorf("%w: supabase driver requires store.supabase_url and store.supabase_key", session.ErrInvalidConfig)
		}
		client, err := supabase.NewClient(f.cfg.Store.SupabaseURL, f.cfg.Store.SupabaseKey, nil)
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		opts = append(opts, session.WithSupabaseClient(client))
	}

	return session.Open(driver, opts...)
}

// resolveDBPath anchors a relative store DSN under the configured data
// directory.
func (f *Factory) resolveDBPath() string {
	path := strings.TrimPrefix(f.cfg.Store.DSN, "file:")
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(os.ExpandEnv(f.cfg.QuestForge.DataDir), path)
}

// CreateProvider creates a generative provider from config.
func (f *Factory) CreateProvider(ctx context.Context) (ports.Provider, error) {
	switch f.cfg.Provider.Backend {
	case BackendGemini:
		apiKey := f.cfg.Provider.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini backend requires provider.api_key or GEMINI_API_KEY")
		}
		return adapters.NewGeminiProvider(ctx, apiKey, f.cfg.Provider.Model)

	case BackendOpenAI:
		apiKey := f.cfg.Provider.APIKey
		if apiKey == "" {
			// May stay empty: local OpenAI-compatible servers take no key.
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return adapters.NewOpenAIProvider(f.cfg.Provider.BaseURL, apiKey, f.cfg.Provider.Model), nil

	default:
		return nil, fmt.Errorf("unknown provider backend %q", f.cfg.Provider.Backend)
	}
}

// createGate creates the provider admission gate from config. Width zero or
// below disables gating.
func (f *Factory) createGate() ports.Gate {
	if f.cfg.Provider.GateWidth <= 0 {
		return nil
	}
	return adapters.NewSemaphoreGate(f.cfg.Provider.GateWidth)
}

// TunablesFromConfig maps the pipeline config section onto runtime knobs.
func TunablesFromConfig(cfg *config.Config) Tunables {
	return Tunables{
		StageAttempts:      cfg.Pipeline.StageAttempts,
		SiblingParallelism: cfg.Pipeline.SiblingParallelism,
		History: Budget{
			MaxTokens: cfg.Pipeline.HistoryMaxTokens,
			MaxTurns:  cfg.Pipeline.HistoryMaxTurns,
		},
	}
}

// nopGate implements Gate with no-op behavior for when gating is disabled.
type nopGate struct{}

func (nopGate) Acquire(ctx context.Context) (release func(), err error) {
	return func() {}, nil
}

// nopTransport implements Transport with no-op behavior for headless runs.
type nopTransport struct{}

func (nopTransport) EmitGameMessage(msg ports.GameMessage) {}

func (nopTransport) EmitStateUpdate(update ports.StateUpdate) {}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Gate      = nopGate{}
	_ ports.Transport = nopTransport{}
)
