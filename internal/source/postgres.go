package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mbd888/tariffdesk/internal/tariff"
)

// PostgresSource reads a named document from the tariff_documents table
// created by migrations/001_tariff_documents.sql.
type PostgresSource struct {
	db    *sql.DB
	name  string
	owned bool
}

// NewPostgresSource reads document name through db. The caller owns db.
func NewPostgresSource(db *sql.DB, name string) *PostgresSource {
	return &PostgresSource{db: db, name: name}
}

func newOwnedPostgresSource(db *sql.DB, name string) *PostgresSource {
	return &PostgresSource{db: db, name: name, owned: true}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.name }
func (s *PostgresSource) Kind() string { return "postgres" }

// Fetch selects the document body. A missing row yields ErrNotFound.
func (s *PostgresSource) Fetch(ctx context.Context) (*Document, error) {
	var (
		format string
		body   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT format, body FROM tariff_documents WHERE name = $1`, s.name,
	).Scan(&format, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", s.name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query document %q: %w", s.name, err)
	}
	f := tariff.FormatJSON
	if format == string(tariff.FormatYAML) {
		f = tariff.FormatYAML
	}
	return &Document{Data: body, Format: f}, nil
}

// PingContext checks the connection, for readiness probes.
func (s *PostgresSource) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool when the source opened it itself.
func (s *PostgresSource) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
