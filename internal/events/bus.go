// Package events is the per-widget publish/subscribe bus plugins use to
// react to uploads, renames and deletions.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/metrics"
	"github.com/damacus/iron-drawer/internal/objects"
)

// Kind names an event.
type Kind string

const (
	ObjectUploaded Kind = "object-uploaded"
	ObjectUpdated  Kind = "object-updated"
	ObjectDeleted  Kind = "object-deleted"
)

// Uploaded is the payload of ObjectUploaded.
type Uploaded struct {
	Objects []objects.Record
}

// Updated is the payload of ObjectUpdated.
type Updated struct {
	Old objects.Record
	New objects.Record
}

// Deleted is the payload of ObjectDeleted.
type Deleted struct {
	Object objects.Record
	// Contents are the files removed along with a deleted folder.
	Contents []objects.Record
}

// Handler reacts to one event. payload is Uploaded, Updated or Deleted
// depending on the kind subscribed to.
type Handler func(ctx context.Context, payload any) error

// Bus delivers events synchronously to the handlers subscribed to them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	log      *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
		log:      log.Component("events"),
	}
}

// Subscribe appends h to the handlers for kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Trigger calls every handler for kind in subscription order. A handler
// that fails or panics is logged and counted; the remaining handlers still
// run. The failures are returned joined.
func (b *Bus) Trigger(ctx context.Context, kind Kind, payload any) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[kind]...)
	b.mu.RUnlock()

	var failures []error
	for i, h := range handlers {
		if err := b.call(ctx, h, payload); err != nil {
			metrics.EventHandlerFailures.WithLabelValues(string(kind)).Inc()
			b.log.WarnWith("event handler failed", err, map[string]interface{}{
				"kind":    string(kind),
				"handler": i,
			})
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (b *Bus) call(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}
