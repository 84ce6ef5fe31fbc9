package outbox

import "context"

// Event is a named domain fact raised after a state change commits.
type Event interface {
	EventName() string
}

// Keyed events name the aggregate they belong to. Relays use it as the
// partition or correlation key so events of one order stay ordered.
type Keyed interface {
	Event
	AggregateKey() string
}

// KeyOf returns the aggregate key of e, or "" when e does not carry one.
func KeyOf(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.AggregateKey()
	}
	return ""
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
