package dispatcher

import (
	"context"

	"github.com/garyjia/legal-docgen/internal/domain/event"
)

// Handler reacts to one event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo is a named subscription
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
