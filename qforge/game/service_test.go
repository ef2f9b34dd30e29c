package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/engine"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

const narrationReply = "The corridor swallows your torchlight, and something ahead shifts its weight."

// setupResponse answers a pipeline prompt with a minimal valid payload.
func setupResponse(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Design the world"):
		return `{"name":"Thornwood","description":"An old forest kingdom.","tone":"mythic","hook":"The king's road went silent.","locations":[{"name":"Bramblegate","description":"Walled town at the forest edge."},{"name":"The Deepway","description":"Overgrown road under the boughs."}],"factions":[{"name":"Wardens of the Road","agenda":"Reopen the king's road."}]}`, nil
	case strings.Contains(prompt, "Create the player character"):
		return `{"name":"Edwyn","class":"Warden","background":"Last of the road wardens.","attributes":{"strength":13,"dexterity":12,"constitution":14,"intelligence":10,"wisdom":15,"charisma":11},"skills":["woodcraft","spear"],"equipment":["boar spear"]}`, nil
	case strings.Contains(prompt, "Cast the major characters"):
		return `{"npcs":[{"name":"Queen Maeve","role":"Ruler of Bramblegate","description":"Holds the town together with promises.","motivation":"Find her missing son."}]}`, nil
	case strings.Contains(prompt, "Cast the supporting characters"):
		return `{"npcs":[{"name":"Old Fenn","role":"Gatekeeper"}]}`, nil
	case strings.Contains(prompt, "background figures"):
		return `{"npcs":[{"name":"Road sweeper","role":"laborer"}]}`, nil
	case strings.Contains(prompt, "Write the main quest"):
		return `{"quests":[{"title":"The Silent Road","description":"Learn why the king's road fell silent.","giver":"Queen Maeve","objectives":["Walk the Deepway","Find the lost patrol"],"reward":"The queen's favor"}]}`, nil
	case strings.Contains(prompt, "Write side quests"):
		return `{"quests":[{"title":"Fenn's Lantern","description":"Old Fenn lost his lantern to the woods.","objectives":["Recover the lantern"]}]}`, nil
	case strings.Contains(prompt, "starting inventory"):
		return `{"items":[{"name":"Boar spear","description":"Heavy, reliable, notched."}]}`, nil
	case strings.Contains(prompt, "discoverable items"):
		return `{"items":[{"name":"Milestone of the old road","description":"Marks the Deepway's first mile.","location":"The Deepway"}]}`, nil
	case strings.Contains(prompt, "opening narration"):
		return `{"title":"The Road Waits","text":"Rain drips from the eaves of Bramblegate as the gates shut behind you."}`, nil
	}
	return "", fmt.Errorf("unexpected prompt %q", prompt[:min(len(prompt), 60)])
}

// stubProvider implements Provider for testing: canned setup payloads plus
// a fixed narration for turn prompts.
type stubProvider struct {
	mu        sync.Mutex
	histories [][]ports.HistoryTurn
	fail      func(prompt string) error
}

func (p *stubProvider) Generate(ctx context.Context, prompt string, history []ports.HistoryTurn) (string, error) {
	p.mu.Lock()
	p.histories = append(p.histories, history)
	p.mu.Unlock()

	if p.fail != nil {
		if err := p.fail(prompt); err != nil {
			return "", err
		}
	}
	if strings.Contains(prompt, "You are the narrator") {
		return narrationReply, nil
	}
	return setupResponse(prompt)
}

func (p *stubProvider) lastHistory() []ports.HistoryTurn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.histories) == 0 {
		return nil
	}
	return p.histories[len(p.histories)-1]
}

// Ensure stubProvider implements the Provider interface.
var _ ports.Provider = (*stubProvider)(nil)

// recordingTransport implements Transport for testing.
type recordingTransport struct {
	mu       sync.Mutex
	messages []ports.GameMessage
	updates  []ports.StateUpdate
}

func (t *recordingTransport) EmitGameMessage(msg ports.GameMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

func (t *recordingTransport) EmitStateUpdate(update ports.StateUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updates = append(t.updates, update)
}

func (t *recordingTransport) gameMessages() []ports.GameMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ports.GameMessage(nil), t.messages...)
}

func (t *recordingTransport) lastUpdate() ports.StateUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.updates) == 0 {
		return ports.StateUpdate{}
	}
	return t.updates[len(t.updates)-1]
}

// Ensure recordingTransport implements the Transport interface.
var _ ports.Transport = (*recordingTransport)(nil)

func newTestService(t *testing.T, provider ports.Provider) (*Service, session.Store, *recordingTransport) {
	t.Helper()

	store, err := session.Open(session.DriverMemory)
	require.NoError(t, err)
	transport := &recordingTransport{}

	logger := zerolog.New(zerolog.Nop())
	gateway := engine.NewGateway(provider, nil, engine.GatewayConfig{
		CallTimeout: 5 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}, logger)
	orch, err := engine.NewOrchestrator(store, gateway, transport, engine.Tunables{}, logger)
	require.NoError(t, err)

	svc, err := NewService(store, orch, gateway, transport, logger)
	require.NoError(t, err)
	return svc, store, transport
}

// TestService_StartGameAndPlay walks the whole player path: setup to
// active, a narrated turn, and the log growing in matched pairs.
func TestService_StartGameAndPlay(t *testing.T) {
	provider := &stubProvider{}
	svc, _, transport := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), map[string]string{"theme": "mythic forest"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, session.StatusActive, sess.Status)

	// Setup delivered the introduction.
	require.Len(t, sess.Log, 1)
	assert.Equal(t, session.RoleCharacter, sess.Log[0].Role)
	messages := transport.gameMessages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "Bramblegate")

	// One turn: input and narration land in the log together.
	reply, err := svc.HandleTurn(context.Background(), sess.ID, "I follow the Deepway")
	require.NoError(t, err)
	assert.Equal(t, narrationReply, reply)

	sess, err = svc.Session(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, sess.Log, 3)
	assert.Equal(t, session.RoleUser, sess.Log[1].Role)
	assert.Equal(t, "I follow the Deepway", sess.Log[1].Content)
	assert.Equal(t, session.RoleCharacter, sess.Log[2].Role)
	assert.Equal(t, narrationReply, sess.Log[2].Content)

	// The narration also went out over the transport.
	messages = transport.gameMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, narrationReply, messages[1].Content)
}

// TestService_TurnCarriesHistory checks prior log turns ride along as
// provider history with mapped roles.
func TestService_TurnCarriesHistory(t *testing.T) {
	provider := &stubProvider{}
	svc, _, _ := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.HandleTurn(context.Background(), sess.ID, "I look around")
	require.NoError(t, err)

	// First turn: the introduction is the only history entry.
	history := provider.lastHistory()
	require.Len(t, history, 1)
	assert.Equal(t, ports.RoleAssistant, history[0].Role)

	_, err = svc.HandleTurn(context.Background(), sess.ID, "I press on")
	require.NoError(t, err)

	history = provider.lastHistory()
	require.Len(t, history, 3)
	assert.Equal(t, ports.RoleUser, history[1].Role)
	assert.Equal(t, "I look around", history[1].Content)
	assert.Equal(t, ports.RoleAssistant, history[2].Role)
	assert.Equal(t, narrationReply, history[2].Content)
}

// TestService_HandleTurnRequiresActive checks turns are refused during
// setup and after completion.
func TestService_HandleTurnRequiresActive(t *testing.T) {
	provider := &stubProvider{}
	svc, store, _ := newTestService(t, provider)

	// A session still initializing cannot play.
	sess := session.New(nil)
	require.NoError(t, store.Create(context.Background(), sess))
	_, err := svc.HandleTurn(context.Background(), sess.ID, "hello")
	assert.ErrorIs(t, err, ErrNotActive)

	// Neither can a completed one.
	started, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)
	_, err = svc.End(context.Background(), started.ID)
	require.NoError(t, err)
	_, err = svc.HandleTurn(context.Background(), started.ID, "hello")
	assert.ErrorIs(t, err, ErrNotActive)
}

// TestService_HandleTurnRejectsEmptyInput checks blank player input never
// reaches the provider.
func TestService_HandleTurnRejectsEmptyInput(t *testing.T) {
	provider := &stubProvider{}
	svc, _, _ := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.HandleTurn(context.Background(), sess.ID, "   ")
	assert.Error(t, err)
}

// TestService_StartGameSurfacesFailure checks a failed setup comes back
// with both the error and the stored failure state, and that retry
// recovers it.
func TestService_StartGameSurfacesFailure(t *testing.T) {
	alwaysFail := true
	var mu sync.Mutex

	provider := &stubProvider{}
	provider.fail = func(prompt string) error {
		mu.Lock()
		defer mu.Unlock()
		if alwaysFail && strings.Contains(prompt, "Design the world") {
			return fmt.Errorf("%w: quota exhausted", ports.ErrRejected)
		}
		return nil
	}

	svc, _, _ := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.Error(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, session.StatusFailed, sess.Status)
	assert.Equal(t, "World", sess.FailureStage)
	assert.NotEmpty(t, sess.FailureReason)

	// Provider recovers; retry finishes setup.
	mu.Lock()
	alwaysFail = false
	mu.Unlock()

	sess, err = svc.Retry(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, sess.Status)
	assert.Empty(t, sess.FailureStage)
}

// TestService_ResumeIsIdempotent checks resuming an active session changes
// nothing.
func TestService_ResumeIsIdempotent(t *testing.T) {
	provider := &stubProvider{}
	svc, _, _ := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)
	version := sess.Version

	resumed, err := svc.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, resumed.Status)
	assert.Equal(t, version, resumed.Version)
}

// TestService_End checks completion: closing log entry, final status, the
// update on the wire, and that ending twice fails.
func TestService_End(t *testing.T) {
	provider := &stubProvider{}
	svc, _, transport := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)

	ended, err := svc.End(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, ended.Status)

	last := ended.Log[len(ended.Log)-1]
	assert.Equal(t, session.RoleSystem, last.Role)
	assert.Equal(t, "epilogue", last.Meta["kind"])

	update := transport.lastUpdate()
	assert.Equal(t, string(session.StatusCompleted), update.Status)

	_, err = svc.End(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotActive)
}

// TestService_SessionSurvivesRestart rebuilds the service over the same
// store and checks the world is still there to narrate against.
func TestService_SessionSurvivesRestart(t *testing.T) {
	provider := &stubProvider{}
	svc, store, _ := newTestService(t, provider)

	sess, err := svc.StartGame(context.Background(), nil)
	require.NoError(t, err)

	// New service instances over the same store, as after a restart.
	logger := zerolog.New(zerolog.Nop())
	gateway := engine.NewGateway(provider, nil, engine.GatewayConfig{BackoffBase: time.Millisecond}, logger)
	orch, err := engine.NewOrchestrator(store, gateway, &recordingTransport{}, engine.Tunables{}, logger)
	require.NoError(t, err)
	fresh, err := NewService(store, orch, gateway, &recordingTransport{}, logger)
	require.NoError(t, err)

	resumed, err := fresh.Resume(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, resumed.Status)
	assert.True(t, resumed.HasArtifact(content.KindWorld))

	reply, err := fresh.HandleTurn(context.Background(), sess.ID, "I knock on the gate")
	require.NoError(t, err)
	assert.Equal(t, narrationReply, reply)
}
