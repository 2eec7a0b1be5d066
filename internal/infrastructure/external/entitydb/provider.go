// Package entitydb reads business entities (clients, properties, interventions, service
// requests, payments) from the operational database, read-only.
package entitydb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/legal-docgen/internal/application/port"
)

// Config selects the entity database and maps entity types to tables
type Config struct {
	Driver   string
	DSN      string
	Tables   map[string]string
	IDColumn string
}

// DefaultTables maps each entity type to its conventional table name
func DefaultTables() map[string]string {
	return map[string]string{
		"client":          "clients",
		"property":        "properties",
		"intervention":    "interventions",
		"service_request": "service_requests",
		"payment":         "payments",
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Provider implements port.EntityProvider with one SELECT per lookup
type Provider struct {
	db      *sqlx.DB
	queries map[string]string
	logger  *zap.Logger
}

// Open connects to the entity database and builds a Provider
func Open(cfg Config, logger *zap.Logger) (*Provider, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.Connect(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to entity database: %w", err)
	}

	p, err := NewProvider(db, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Entity database connected", zap.String("driver", driver))
	return p, nil
}

// NewProvider builds a Provider on an open connection. Table and column names are validated
// once here, so lookups never interpolate untrusted input.
func NewProvider(db *sqlx.DB, cfg Config, logger *zap.Logger) (*Provider, error) {
	tables := cfg.Tables
	if len(tables) == 0 {
		tables = DefaultTables()
	}
	idColumn := cfg.IDColumn
	if idColumn == "" {
		idColumn = "id"
	}
	if !identPattern.MatchString(idColumn) {
		return nil, fmt.Errorf("invalid id column %q", idColumn)
	}

	queries := make(map[string]string, len(tables))
	for entityType, table := range tables {
		if !identPattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q for %s", table, entityType)
		}
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdent(table), quoteIdent(idColumn))
		queries[entityType] = db.Rebind(query)
	}

	return &Provider{
		db:      db,
		queries: queries,
		logger:  logger,
	}, nil
}

// Lookup returns the record of entityType with the given id, nil when it does not exist
func (p *Provider) Lookup(ctx context.Context, entityType, id string) (port.Attributes, error) {
	query, ok := p.queries[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	row := make(map[string]interface{})
	err := p.db.QueryRowxContext(ctx, query, id).MapScan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		p.logger.Error("Failed to look up entity",
			zap.String("entity_type", entityType),
			zap.String("id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to look up %s %s: %w", entityType, id, err)
	}

	attrs := make(port.Attributes, len(row))
	for col, v := range row {
		// drivers hand text columns back as []byte
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		attrs[strings.ToLower(col)] = v
	}
	return attrs, nil
}

// Ping checks the connection
func (p *Provider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection
func (p *Provider) Close() error {
	return p.db.Close()
}

func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = `"` + part + `"`
	}
	return strings.Join(parts, ".")
}

// Verify interface compliance
var _ port.EntityProvider = (*Provider)(nil)
