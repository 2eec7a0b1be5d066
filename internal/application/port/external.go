package port

import (
	"context"
	"time"

	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// Attributes is the raw record of a business entity, keyed by column name
type Attributes map[string]interface{}

// EntityProvider loads business entities by type and id.
// A missing entity is reported as nil, nil.
type EntityProvider interface {
	Lookup(ctx context.Context, entityType, id string) (Attributes, error)
}

// RenderInput is a template file and the values to merge into it
type RenderInput struct {
	Template []byte
	FileName string
	Format   string
	Values   tag.Values
}

// RenderOutput is a rendered document
type RenderOutput struct {
	Content []byte
	Ext     string
	Pages   int
}

// Renderer merges values into a template file
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (*RenderOutput, error)
}

// TextExtractor pulls the plain text out of a template file
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, content []byte) (string, error)
}

// EmailMessage is an outgoing email with an optional attachment
type EmailMessage struct {
	To             string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// EmailSender delivers emails
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EventPublisher publishes domain events without waiting for handlers
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// Clock abstracts the current time
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall-clock time in a fixed location
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
