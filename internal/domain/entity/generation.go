package entity

import (
	"fmt"
	"time"
)

// Generation is one instance of a template applied to a reference entity
type Generation struct {
	ID             int64         `json:"id"`
	TemplateID     int64         `json:"template_id"`
	TemplateName   string        `json:"template_name"`
	DocumentType   DocumentType  `json:"document_type"`
	ReferenceID    string        `json:"reference_id"`
	ReferenceType  ReferenceType `json:"reference_type"`
	RequestedBy    string        `json:"requested_by,omitempty"`
	OutputKey      string        `json:"output_key,omitempty"`
	OutputFileName string        `json:"output_file_name,omitempty"`
	OutputSize     int64         `json:"output_size"`
	OutputPages    int           `json:"output_pages,omitempty"`
	Status         string        `json:"status"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	DurationMs     int64         `json:"duration_ms"`
	EmailTo        string        `json:"email_to,omitempty"`
	SendEmail      bool          `json:"send_email"`
	EmailStatus    string        `json:"email_status,omitempty"`
	EmailSentAt    *time.Time    `json:"email_sent_at,omitempty"`
	LegalNumber    string        `json:"legal_number,omitempty"`
	DocumentHash   string        `json:"document_hash,omitempty"`
	Locked         bool          `json:"locked"`
	LockedAt       *time.Time    `json:"locked_at,omitempty"`
	CorrectsID     *int64        `json:"corrects_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// GenerationOutput describes a rendered and stored document
type GenerationOutput struct {
	Key      string
	FileName string
	Size     int64
	Pages    int
}

// Complete returns a copy of g carrying the rendered output in COMPLETED state
func (g Generation) Complete(out GenerationOutput, startedAt, now time.Time) (Generation, error) {
	if g.Locked {
		return g, ErrGenerationLocked
	}
	if g.Status != GenerationStatusGenerating {
		return g, fmt.Errorf("cannot complete generation in status %s", g.Status)
	}
	if out.Key == "" {
		return g, fmt.Errorf("cannot complete generation without output")
	}

	g.OutputKey = out.Key
	g.OutputFileName = out.FileName
	g.OutputSize = out.Size
	g.OutputPages = out.Pages
	g.DurationMs = now.Sub(startedAt).Milliseconds()
	g.Status = GenerationStatusCompleted
	g.ErrorMessage = ""
	g.UpdatedAt = now
	return g, nil
}

// Lock returns a copy of g sealed with its legal number and content hash.
// The number, hash, locked flag and timestamp are only ever set together.
func (g Generation) Lock(legalNumber, documentHash string, now time.Time) (Generation, error) {
	if g.Locked {
		return g, ErrGenerationLocked
	}
	if !g.DocumentType.IsRegulated() {
		return g, fmt.Errorf("document type %s is not regulated", g.DocumentType)
	}
	if g.Status != GenerationStatusCompleted {
		return g, fmt.Errorf("cannot lock generation in status %s", g.Status)
	}
	if legalNumber == "" || documentHash == "" {
		return g, fmt.Errorf("legal number and document hash are required to lock")
	}

	lockedAt := now
	g.LegalNumber = legalNumber
	g.DocumentHash = documentHash
	g.Locked = true
	g.LockedAt = &lockedAt
	g.Status = GenerationStatusLocked
	g.UpdatedAt = now
	return g, nil
}

// Fail returns a copy of g in FAILED state with the reason recorded
func (g Generation) Fail(reason string, startedAt, now time.Time) (Generation, error) {
	if g.Locked {
		return g, ErrGenerationLocked
	}
	if g.Status != GenerationStatusPending && g.Status != GenerationStatusGenerating {
		return g, fmt.Errorf("cannot fail generation in status %s", g.Status)
	}

	g.Status = GenerationStatusFailed
	g.ErrorMessage = reason
	if !startedAt.IsZero() {
		g.DurationMs = now.Sub(startedAt).Milliseconds()
	}
	g.UpdatedAt = now
	return g, nil
}

// MarkSent returns a copy of g recording a successful email delivery.
// Locked generations keep their state; only unlocked COMPLETED ones move to SENT.
func (g Generation) MarkSent(now time.Time) (Generation, error) {
	if g.Locked {
		return g, ErrGenerationLocked
	}
	if g.Status != GenerationStatusCompleted && g.Status != GenerationStatusSent {
		return g, fmt.Errorf("cannot mark generation in status %s as sent", g.Status)
	}

	sentAt := now
	g.Status = GenerationStatusSent
	g.EmailStatus = EmailStatusSent
	g.EmailSentAt = &sentAt
	g.UpdatedAt = now
	return g, nil
}

// Archive returns a copy of g in ARCHIVED state. Nothing else changes, locked or not.
func (g Generation) Archive(now time.Time) (Generation, error) {
	if g.Status == GenerationStatusArchived {
		return g, fmt.Errorf("generation already archived")
	}
	g.Status = GenerationStatusArchived
	if !g.Locked {
		g.UpdatedAt = now
	}
	return g, nil
}

// IsTerminal reports whether the pipeline is done with this generation
func (g *Generation) IsTerminal() bool {
	switch g.Status {
	case GenerationStatusFailed, GenerationStatusLocked, GenerationStatusSent, GenerationStatusArchived:
		return true
	case GenerationStatusCompleted:
		return !g.DocumentType.IsRegulated()
	default:
		return false
	}
}

// GenerationFilter narrows generation listings
type GenerationFilter struct {
	DocumentType DocumentType
	Status       string
	Limit        int
	Offset       int
}

// Delivery is one email delivery attempt for a generation
type Delivery struct {
	ID           int64     `json:"id"`
	GenerationID int64     `json:"generation_id"`
	Recipient    string    `json:"recipient"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
