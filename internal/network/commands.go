package network

import (
	"context"
	"fmt"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
)

// Commands below may be called from any goroutine. They only enqueue; the
// world changes once the server answers.

// SendChat sends a chat line or slash command.
func (c *Connection) SendChat(message string) error {
	if message == "" {
		return fmt.Errorf("empty chat message")
	}
	return c.Send(&protocol.ChatSend{Message: message})
}

// Respawn asks the server to respawn a dead player.
func (c *Connection) Respawn() error {
	return c.Send(&protocol.ClientStatus{Action: protocol.ClientActionRespawn})
}

// CloseWindow tells the server the container id was closed. The mirrored
// window stays until the server closes it or opens the next one.
func (c *Connection) CloseWindow(id uint8) error {
	if id == 0 {
		return fmt.Errorf("window 0 is the player inventory and cannot be closed")
	}
	return c.Send(&protocol.CloseWindowSend{WindowID: id})
}

// BindCommands subscribes the connection to command events on bus until
// the connection is done.
func (c *Connection) BindCommands(bus *events.EventBus) {
	name := fmt.Sprintf("connection.%p", c)
	bus.Subscribe(events.EventSendChat, name, func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.SendChatPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Payload)
		}
		return c.SendChat(p.Message)
	})
	bus.Subscribe(events.EventRespawn, name, func(ctx context.Context, e events.Event) error {
		return c.Respawn()
	})
	go func() {
		<-c.done
		bus.Unsubscribe(events.EventSendChat, name)
		bus.Unsubscribe(events.EventRespawn, name)
	}()
}
