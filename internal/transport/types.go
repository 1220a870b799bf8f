// Package transport defines the chat-platform boundary.
//
// Adapters classify raw platform events into Event values before they reach
// the bridge; the bridge only ever sees these tagged variants.
package transport

import "context"

type EventKind string

const (
	// EventInvite: the bot (or someone) was invited to Room; Invitee is the invited user.
	EventInvite EventKind = "invite"
	// EventMessage: a text message was posted in a joined Room.
	EventMessage EventKind = "message"
)

type Event struct {
	Kind    EventKind
	Room    string
	ID      string // platform message/event id
	Sender  string
	Invitee string
	Text    string
}

// Message is outbound chat content. Markdown enables bold/emphasis markup.
type Message struct {
	Body     string
	Markdown bool
}

// Messenger is what the bridge needs from a chat platform.
type Messenger interface {
	// Self returns the bot's own user identity on the platform.
	Self() string
	Send(ctx context.Context, room string, msg Message) error
	Reply(ctx context.Context, room string, to Event, msg Message) error
	MarkRead(ctx context.Context, room, eventID string) error
	AcceptInvite(ctx context.Context, room string) error
}

// Adapter is a started/stopped Messenger that emits classified events.
type Adapter interface {
	Messenger
	Start(ctx context.Context, out chan<- Event) error
	Stop(ctx context.Context) error
}
