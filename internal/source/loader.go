package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/tariff"
	"github.com/mbd888/tariffdesk/internal/traces"
)

// Loader turns a source into a normalized tariff collection.
type Loader struct {
	src    Source
	logger *slog.Logger
}

// NewLoader creates a loader for src
func NewLoader(src Source, logger *slog.Logger) *Loader {
	return &Loader{src: src, logger: logger}
}

// Source returns the underlying source.
func (l *Loader) Source() Source { return l.src }

// Load fetches, decodes, parses and normalizes the document. Failures are
// logged and produce an empty collection, so callers always get something
// to render or edit.
func (l *Loader) Load(ctx context.Context) tariff.Collection {
	c, err := l.LoadDocument(ctx)
	if err != nil {
		l.logger.Warn("failed to load tariffs, using empty collection",
			"source", l.src.Name(),
			"error", err,
		)
		return tariff.Collection{}
	}
	return c
}

// LoadDocument is Load with the error reported instead of swallowed.
func (l *Loader) LoadDocument(ctx context.Context) (tariff.Collection, error) {
	ctx, span := traces.StartSpan(ctx, "source.Load", traces.SourceName(l.src.Name()))
	defer span.End()

	start := time.Now()
	kind := l.src.Kind()
	defer func() {
		metrics.SourceLoadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	doc, err := l.src.Fetch(ctx)
	if err != nil {
		traces.RecordError(span, err)
		metrics.SourceLoadsTotal.WithLabelValues(kind, "fetch_error").Inc()
		return tariff.Collection{}, err
	}
	span.SetAttributes(traces.DocumentFormat(string(doc.Format)))

	c, err := tariff.ParseDocument(doc.Data, doc.Format)
	if err != nil {
		traces.RecordError(span, err)
		metrics.SourceLoadsTotal.WithLabelValues(kind, "decode_error").Inc()
		return tariff.Collection{}, err
	}
	c.Normalize()

	span.SetAttributes(traces.TariffCount(len(c)))
	metrics.SourceLoadsTotal.WithLabelValues(kind, "ok").Inc()
	l.logger.Debug("tariffs loaded", "source", l.src.Name(), "tariffs", len(c), "plans", c.PlanCount())
	return c, nil
}
