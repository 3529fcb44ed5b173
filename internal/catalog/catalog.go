// Package catalog serves the published tariffs to the public pricing page.
// It is read-only: nothing here ever changes the underlying document.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

// Loader supplies the normalized collection. Failures are reported as an
// empty collection.
type Loader interface {
	Load(ctx context.Context) tariff.Collection
}

// Catalog keeps the last loaded collection in memory.
type Catalog struct {
	loader Loader
	logger *slog.Logger

	mu       sync.RWMutex
	tariffs  tariff.Collection
	byID     map[string]*tariff.Tariff
	loadedAt time.Time
}

// New creates an empty catalog. Call Load to populate it.
func New(loader Loader, logger *slog.Logger) *Catalog {
	return &Catalog{
		loader:  loader,
		logger:  logger,
		tariffs: tariff.Collection{},
		byID:    map[string]*tariff.Tariff{},
	}
}

// Load refreshes the catalog from its loader and returns the tariff count.
func (c *Catalog) Load(ctx context.Context) int {
	coll := c.loader.Load(ctx)
	byID := coll.ByID()

	c.mu.Lock()
	c.tariffs = coll
	c.byID = byID
	c.loadedAt = time.Now()
	c.mu.Unlock()

	metrics.CatalogTariffs.Set(float64(len(coll)))
	c.logger.Info("catalog loaded", "tariffs", len(coll), "addressable", len(byID))
	return len(coll)
}

// Get returns a copy of the tariff with the given id. Tariffs without an
// id are not addressable, and the last of several equal ids wins.
func (c *Catalog) Get(id string) (*tariff.Tariff, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns a copy of every loaded tariff in document order.
func (c *Catalog) List() tariff.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tariffs.Clone()
}

// LoadedAt reports when the catalog was last refreshed.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
