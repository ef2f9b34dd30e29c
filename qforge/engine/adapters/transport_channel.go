package adapters

import (
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

// ChannelTransport delivers events over buffered channels to an in-process
// client such as the terminal frontend. Emits never block: when a buffer is
// full the event is dropped, since the pipeline cannot wait on a slow
// reader.
type ChannelTransport struct {
	messages chan ports.GameMessage
	updates  chan ports.StateUpdate
}

// NewChannelTransport creates a transport with the given buffer size per
// channel.
func NewChannelTransport(buffer int) *ChannelTransport {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelTransport{
		messages: make(chan ports.GameMessage, buffer),
		updates:  make(chan ports.StateUpdate, buffer),
	}
}

// EmitGameMessage queues a narrative message, dropping it when the buffer
// is full.
func (t *ChannelTransport) EmitGameMessage(msg ports.GameMessage) {
	select {
	case t.messages <- msg:
	default:
	}
}

// EmitStateUpdate queues a state change, dropping it when the buffer is
// full.
func (t *ChannelTransport) EmitStateUpdate(update ports.StateUpdate) {
	select {
	case t.updates <- update:
	default:
	}
}

// Messages is the stream of narrative messages.
func (t *ChannelTransport) Messages() <-chan ports.GameMessage { return t.messages }

// Updates is the stream of state updates.
func (t *ChannelTransport) Updates() <-chan ports.StateUpdate { return t.updates }

// Close closes both streams. Call only once every emitter has stopped.
func (t *ChannelTransport) Close() {
	close(t.messages)
	close(t.updates)
}

// Ensure ChannelTransport implements the Transport interface.
var _ ports.Transport = (*ChannelTransport)(nil)
