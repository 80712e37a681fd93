package tea

import "fmt"

// Handler reacts to a message. It may mutate model and returns a command
// to run, or nil. ctx is a read-only copy of the render context.
type Handler[M any] func(model M, ctx Snapshot, msg Message) Command

// Bus routes messages to the handlers subscribed to their kind.
type Bus[M any] struct {
	handlers map[MessageKind][]Handler[M]
	sealed   bool
}

// NewBus creates an empty bus.
func NewBus[M any]() *Bus[M] {
	return &Bus[M]{handlers: map[MessageKind][]Handler[M]{}}
}

// Subscribe registers h as the only handler for kind, replacing whatever
// was registered before. A nil h removes the kind's handlers.
func (b *Bus[M]) Subscribe(kind MessageKind, h Handler[M]) error {
	if b.sealed {
		return fmt.Errorf("subscribe %s: %w", kind, ErrSubscriptionsSealed)
	}
	if h == nil {
		delete(b.handlers, kind)
		return nil
	}
	b.handlers[kind] = []Handler[M]{h}
	return nil
}

// Attach adds h after the handlers already subscribed to kind.
func (b *Bus[M]) Attach(kind MessageKind, h Handler[M]) error {
	if b.sealed {
		return fmt.Errorf("attach %s: %w", kind, ErrSubscriptionsSealed)
	}
	if h == nil {
		return fmt.Errorf("attach %s: nil handler", kind)
	}
	b.handlers[kind] = append(b.handlers[kind], h)
	return nil
}

// Handles reports whether any handler is subscribed to kind.
func (b *Bus[M]) Handles(kind MessageKind) bool {
	return len(b.handlers[kind]) > 0
}

// Seal freezes the subscriptions.
func (b *Bus[M]) Seal() { b.sealed = true }

// Publish invokes every handler subscribed to msg's kind, in registration
// order, and returns the commands they produced. All handlers run even if
// an earlier one asked to terminate.
func (b *Bus[M]) Publish(model M, ctx Snapshot, msg Message) []Command {
	var cmds []Command
	for _, h := range b.handlers[msg.Kind()] {
		if cmd := h(model, ctx, msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}
