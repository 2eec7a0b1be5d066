package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/legal-docgen/internal/application/port"
	"github.com/garyjia/legal-docgen/internal/domain/entity"
	"github.com/garyjia/legal-docgen/internal/domain/tag"
)

// ResolveRequest identifies the entity a template is filled from
type ResolveRequest struct {
	DocumentType  entity.DocumentType
	ReferenceID   string
	ReferenceType entity.ReferenceType
	Tags          []entity.TagRef
}

// ResolverConfig carries the values that do not come from the entity provider
type ResolverConfig struct {
	Company  map[string]string
	Legal    map[string]string
	Location *time.Location
}

// ResolverService turns a tag manifest into typed values
type ResolverService interface {
	Resolve(ctx context.Context, req ResolveRequest) (tag.Values, error)
}

type resolverServiceImpl struct {
	provider port.EntityProvider
	catalog  *tag.Catalog
	clock    port.Clock
	cfg      ResolverConfig
	logger   Logger
}

// NewResolverService creates a new ResolverService
func NewResolverService(
	provider port.EntityProvider,
	catalog *tag.Catalog,
	clock port.Clock,
	cfg ResolverConfig,
	logger Logger,
) ResolverService {
	return &resolverServiceImpl{
		provider: provider,
		catalog:  catalog,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// rootCategory maps a reference type to the tag category of its record
func rootCategory(refType entity.ReferenceType) tag.Category {
	switch refType {
	case entity.ReferenceTypeUser:
		return tag.CategoryClient
	default:
		return tag.Category(refType)
	}
}

// Resolve loads the root entity first so a missing reference fails before anything else.
// Other external categories are reached through <category>_id columns of the root record,
// one lookup per category, concurrently.
func (s *resolverServiceImpl) Resolve(ctx context.Context, req ResolveRequest) (tag.Values, error) {
	if !req.ReferenceType.IsValid() {
		return nil, fmt.Errorf("%w: unknown reference type %q", entity.ErrInvalidRequest, req.ReferenceType)
	}

	root := rootCategory(req.ReferenceType)
	rootAttrs, err := s.provider.Lookup(ctx, string(root), req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", root, req.ReferenceID, err)
	}
	if rootAttrs == nil {
		return nil, fmt.Errorf("%w: %s %s", entity.ErrReferenceNotFound, req.ReferenceType, req.ReferenceID)
	}

	records := map[tag.Category]port.Attributes{root: rootAttrs}
	linked := make(map[tag.Category]string)
	for _, ref := range req.Tags {
		cat := tag.Category(ref.Category)
		if !cat.IsExternal() || cat == root || ref.Unresolved {
			continue
		}
		if _, seen := linked[cat]; seen {
			continue
		}
		linked[cat] = attrString(rootAttrs[string(cat)+"_id"])
	}

	results := make(map[tag.Category]port.Attributes, len(linked))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for cat, id := range linked {
		if id == "" {
			continue
		}
		cat, id := cat, id
		g.Go(func() error {
			attrs, err := s.provider.Lookup(gctx, string(cat), id)
			if err != nil {
				return fmt.Errorf("failed to load %s %s: %w", cat, id, err)
			}
			mu.Lock()
			results[cat] = attrs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to resolve linked entities", "reference_id", req.ReferenceID, "error", err)
		return nil, err
	}
	for cat, attrs := range results {
		records[cat] = attrs
	}

	now := s.now()
	values := make(tag.Values, len(req.Tags))
	for _, ref := range req.Tags {
		def, ok := s.catalog.Lookup(ref.Name)
		if !ok {
			values[ref.Name] = tag.TextValue{}
			continue
		}
		values[ref.Name] = tag.NewValue(def, s.raw(def, records, now))
	}

	s.logger.Info("Resolved template data",
		"document_type", req.DocumentType,
		"reference_type", req.ReferenceType,
		"reference_id", req.ReferenceID,
		"tags", len(values),
	)
	return values, nil
}

func (s *resolverServiceImpl) raw(def tag.Definition, records map[tag.Category]port.Attributes, now time.Time) interface{} {
	switch def.Category {
	case tag.CategoryCompany:
		if v, ok := s.cfg.Company[def.Field]; ok {
			return v
		}
		return nil
	case tag.CategoryLegal:
		if v, ok := s.cfg.Legal[def.Field]; ok {
			return v
		}
		return nil
	case tag.CategorySystem:
		switch def.Field {
		case "date_jour":
			return now
		case "annee":
			return now.Year()
		case "token":
			return uuid.NewString()
		}
		return nil
	default:
		attrs := records[def.Category]
		if attrs == nil {
			return nil
		}
		return attrs[def.Field]
	}
}

func (s *resolverServiceImpl) now() time.Time {
	now := s.clock.Now()
	if s.cfg.Location != nil {
		now = now.In(s.cfg.Location)
	}
	return now
}

func attrString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
