package engineports

// GameMessage is a narrative message delivered to the player's client.
type GameMessage struct {
	SessionID string
	Role      string // session log role: "system", "user", "character"
	Content   string
}

// StateUpdate notifies the client that a session changed state or that a
// generation stage finished.
type StateUpdate struct {
	SessionID     string
	Status        string
	Stage         string // stage that just completed, when applicable
	FailureStage  string
	FailureReason string
}

// Transport delivers messages and state updates to connected clients.
// Implementations must not block: the pipeline fires these mid-generation
// and a slow client cannot be allowed to stall it.
type Transport interface {
	EmitGameMessage(msg GameMessage)
	EmitStateUpdate(update StateUpdate)
}
