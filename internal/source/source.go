// Package source fetches tariff documents from where they are published:
// a local file, an HTTP(S) URL, an S3 bucket or a Postgres table.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mbd888/tariffdesk/internal/circuitbreaker"
	"github.com/mbd888/tariffdesk/internal/retry"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

// ErrNotFound is returned when the source has no document.
var ErrNotFound = errors.New("source: document not found")

// Document is a raw tariffs document as fetched.
type Document struct {
	Data   []byte
	Format tariff.Format
}

// Source fetches the current version of a document. Sources are read-only.
type Source interface {
	// Name identifies the source in logs, e.g. "file:data/tariffs.json".
	Name() string
	// Kind is a low-cardinality label: file, http, s3 or postgres.
	Kind() string
	Fetch(ctx context.Context) (*Document, error)
}

// Options carries the shared clients Open wires into sources.
type Options struct {
	HTTPClient *http.Client
	Breaker    *circuitbreaker.Breaker
	Retry      retry.Policy
	// DB serves postgres: locations. When nil, a postgres:// location is
	// opened with its own connection pool.
	DB *sql.DB
	S3 S3Config
	// DocumentName selects the row for Postgres locations without a
	// ?document= parameter.
	DocumentName string
}

// Open returns the source for a location string:
//
//	http://… or https://…      HTTPSource
//	s3://bucket/key             S3Source
//	postgres:name               PostgresSource over opts.DB
//	postgres://dsn[?document=]  PostgresSource over a new pool
//	anything else               FileSource
func Open(location string, opts Options) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("source: empty location")
	}

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		return NewHTTPSource(location, client, opts.Breaker, opts.Retry), nil

	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := parseS3Location(location)
		if err != nil {
			return nil, err
		}
		client, err := NewS3Client(opts.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Source(client, bucket, key), nil

	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("source: parse postgres location: %w", err)
		}
		name := opts.DocumentName
		q := u.Query()
		if doc := q.Get("document"); doc != "" {
			name = doc
			q.Del("document")
			u.RawQuery = q.Encode()
		}
		db, err := sql.Open("postgres", u.String())
		if err != nil {
			return nil, fmt.Errorf("source: open postgres: %w", err)
		}
		return newOwnedPostgresSource(db, name), nil

	case strings.HasPrefix(location, "postgres:"):
		if opts.DB == nil {
			return nil, errors.New("source: postgres location requires DATABASE_URL")
		}
		name := strings.TrimPrefix(location, "postgres:")
		if name == "" {
			name = opts.DocumentName
		}
		return NewPostgresSource(opts.DB, name), nil

	default:
		return NewFileSource(location), nil
	}
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("source: parse s3 location: %w", err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("source: s3 location %q needs bucket and key", location)
	}
	return bucket, key, nil
}
