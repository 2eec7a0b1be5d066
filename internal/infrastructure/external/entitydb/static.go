package entitydb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/legal-docgen/internal/application/port"
)

// StaticProvider serves entities from memory. It backs demos and tests.
type StaticProvider struct {
	mu       sync.RWMutex
	entities map[string]map[string]port.Attributes
}

// NewStaticProvider creates an empty StaticProvider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{entities: make(map[string]map[string]port.Attributes)}
}

// LoadStaticProvider reads a YAML file of the form
//
//	client:
//	  "7": {nom: Dupont, email: dupont@example.com}
//	intervention:
//	  "42": {client_id: 7, montant_ht: "100.00"}
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entities file: %w", err)
	}

	var doc map[string]map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse entities file: %w", err)
	}

	p := NewStaticProvider()
	for entityType, records := range doc {
		for id, attrs := range records {
			p.Add(entityType, id, attrs)
		}
	}
	return p, nil
}

// Add stores or replaces an entity
func (p *StaticProvider) Add(entityType, id string, attrs map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byID, ok := p.entities[entityType]
	if !ok {
		byID = make(map[string]port.Attributes)
		p.entities[entityType] = byID
	}

	copied := make(port.Attributes, len(attrs))
	for k, v := range attrs {
		copied[strings.ToLower(k)] = v
	}
	byID[id] = copied
}

// Lookup returns a copy of the stored entity, nil when absent
func (p *StaticProvider) Lookup(ctx context.Context, entityType, id string) (port.Attributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	attrs, ok := p.entities[entityType][id]
	if !ok {
		return nil, nil
	}
	out := make(port.Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}

// Verify interface compliance
var _ port.EntityProvider = (*StaticProvider)(nil)
