package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/event"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

const (
	defaultEmailSubject = "${legal.numero}"
	defaultEmailBody    = "Veuillez trouver ci-joint votre document."
)

// DeliveryService emails generated documents
type DeliveryService interface {
	Deliver(ctx context.Context, generationID int64) (*entity.Delivery, error)
	// HandleCompleted is subscribed to generation.completed
	HandleCompleted(ctx context.Context, evt *event.Event) error
	History(ctx context.Context, generationID int64) ([]*entity.Delivery, error)
}

type deliveryServiceImpl struct {
	generationRepo port.GenerationRepository
	templateRepo   port.TemplateRepository
	deliveryRepo   port.DeliveryRepository
	storage        port.FileStorage
	sender         port.EmailSender
	resolver       ResolverService
	scanner        *tag.Scanner
	publisher      port.EventPublisher
	clock          port.Clock
	logger         Logger
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(
	generationRepo port.GenerationRepository,
	templateRepo port.TemplateRepository,
	deliveryRepo port.DeliveryRepository,
	storage port.FileStorage,
	sender port.EmailSender,
	resolver ResolverService,
	scanner *tag.Scanner,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) DeliveryService {
	return &deliveryServiceImpl{
		generationRepo: generationRepo,
		templateRepo:   templateRepo,
		deliveryRepo:   deliveryRepo,
		storage:        storage,
		sender:         sender,
		resolver:       resolver,
		scanner:        scanner,
		publisher:      publisher,
		clock:          clock,
		logger:         logger,
	}
}

func (s *deliveryServiceImpl) HandleCompleted(ctx context.Context, evt *event.Event) error {
	if !evt.GetPayloadBool("send_email") {
		return nil
	}
	_, err := s.Deliver(ctx, evt.SubjectID)
	return err
}

// Deliver sends the output to the generation's recipient and logs the attempt.
// Locked generations are never updated; reads take their email status from the delivery log.
func (s *deliveryServiceImpl) Deliver(ctx context.Context, generationID int64) (*entity.Delivery, error) {
	gen, err := s.generationRepo.GetByID(ctx, generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	if gen == nil {
		return nil, entity.ErrGenerationNotFound
	}
	if gen.EmailTo == "" {
		return nil, fmt.Errorf("%w: generation %d has no recipient", entity.ErrInvalidRequest, generationID)
	}
	if gen.OutputKey == "" {
		return nil, fmt.Errorf("%w: generation %d has no output", entity.ErrInvalidRequest, generationID)
	}

	msg, err := s.compose(ctx, gen)
	if err != nil {
		return nil, err
	}

	sendErr := s.sender.Send(ctx, *msg)

	delivery := &entity.Delivery{
		GenerationID: gen.ID,
		Recipient:    gen.EmailTo,
		Status:       entity.EmailStatusSent,
		CreatedAt:    s.clock.Now(),
	}
	if sendErr != nil {
		delivery.Status = entity.EmailStatusFailed
		delivery.ErrorMessage = sendErr.Error()
	}
	if err := s.deliveryRepo.Create(context.WithoutCancel(ctx), delivery); err != nil {
		s.logger.Error("Failed to record delivery", "generation_id", gen.ID, "error", err)
	}

	if !gen.Locked {
		s.recordOnGeneration(ctx, gen, sendErr == nil)
	}

	if sendErr != nil {
		s.logger.Error("Email delivery failed", "generation_id", gen.ID, "recipient", gen.EmailTo, "error", sendErr)
		return delivery, fmt.Errorf("failed to send email: %w", sendErr)
	}

	s.logger.Info("Email delivered", "generation_id", gen.ID, "recipient", gen.EmailTo)
	if s.publisher != nil {
		s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeGenerationSent, gen.ID, map[string]interface{}{
			"recipient":    gen.EmailTo,
			"legal_number": gen.LegalNumber,
		}))
	}
	return delivery, nil
}

func (s *deliveryServiceImpl) recordOnGeneration(ctx context.Context, gen *entity.Generation, sent bool) {
	updated := *gen
	if sent {
		var err error
		updated, err = gen.MarkSent(s.clock.Now())
		if err != nil {
			s.logger.Error("Cannot mark generation sent", "generation_id", gen.ID, "error", err)
			return
		}
	} else {
		updated.EmailStatus = entity.EmailStatusFailed
		updated.UpdatedAt = s.clock.Now()
	}

	if err := s.generationRepo.UpdateDelivery(context.WithoutCancel(ctx), &updated); err != nil {
		s.logger.Error("Failed to update delivery status", "generation_id", gen.ID, "error", err)
	}
}

func (s *deliveryServiceImpl) compose(ctx context.Context, gen *entity.Generation) (*port.EmailMessage, error) {
	content, err := s.storage.Read(ctx, gen.OutputKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	subject, body := defaultEmailSubject, defaultEmailBody
	tpl, err := s.templateRepo.GetByID(ctx, gen.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tpl != nil {
		if tpl.EmailSubject != "" {
			subject = tpl.EmailSubject
		}
		if tpl.EmailBody != "" {
			body = tpl.EmailBody
		}
	}

	values := s.messageValues(ctx, gen, subject+"\n"+body)
	lookup := func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}

	subject = tag.Replace(subject, lookup)
	if strings.TrimSpace(subject) == "" {
		subject = gen.OutputFileName
	}

	return &port.EmailMessage{
		To:             gen.EmailTo,
		Subject:        subject,
		Body:           tag.Replace(body, lookup),
		AttachmentName: gen.OutputFileName,
		Attachment:     content,
	}, nil
}

// messageValues resolves the tags used in the email text. Resolution problems only
// leave placeholders empty; they never block the delivery.
func (s *deliveryServiceImpl) messageValues(ctx context.Context, gen *entity.Generation, text string) map[string]string {
	refs := s.scanner.Scan(text, gen.DocumentType)
	out := make(map[string]string, len(refs)+1)
	for _, ref := range refs {
		out[ref.Name] = ""
	}

	if len(refs) > 0 {
		values, err := s.resolver.Resolve(ctx, ResolveRequest{
			DocumentType:  gen.DocumentType,
			ReferenceID:   gen.ReferenceID,
			ReferenceType: gen.ReferenceType,
			Tags:          refs,
		})
		if err != nil {
			s.logger.Error("Failed to resolve email values", "generation_id", gen.ID, "error", err)
		} else {
			for name, v := range values.Strings() {
				out[name] = v
			}
		}
	}

	out["legal.numero"] = gen.LegalNumber
	return out
}

func (s *deliveryServiceImpl) History(ctx context.Context, generationID int64) ([]*entity.Delivery, error) {
	return s.deliveryRepo.ListByGeneration(ctx, generationID)
}
