// Package editor implements the admin tariff editor: a mutable working copy
// of the tariff collection, the sessions that hold it and the HTTP API over it.
package editor

import (
	"errors"
	"strings"
	"sync"

	"github.com/mbd888/tariffdesk/internal/idgen"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

var (
	ErrTariffNotFound  = errors.New("editor: tariff not found")
	ErrPlanNotFound    = errors.New("editor: plan not found")
	ErrSessionNotFound = errors.New("editor: session not found")
)

// Names given to plans created from the editor.
const (
	SeedPlanName  = "M"
	AddedPlanName = "NEW"
)

// TariffPatch carries editor field updates. Nil fields are left untouched.
type TariffPatch struct {
	ID       *string `json:"id"`
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
}

// PlanPatch carries editor field updates for a plan. Features is the raw
// textarea content, one feature per line.
type PlanPatch struct {
	Name     *string `json:"name"`
	Price    *string `json:"price"`
	Features *string `json:"features"`
}

// Editor owns the working collection of one editing session. Entities are
// addressed by surrogate keys so that tariffs or plans with equal content
// stay distinct. All methods are safe for concurrent use; values returned
// are copies.
type Editor struct {
	mu      sync.Mutex
	tariffs tariff.Collection
}

// New takes ownership of c and assigns surrogate keys. c is expected to be
// normalized already; the editor never reorders plans itself.
func New(c tariff.Collection) *Editor {
	if c == nil {
		c = tariff.Collection{}
	}
	for _, t := range c {
		t.Key = idgen.TariffKey()
		for _, p := range t.Plans {
			p.Key = idgen.PlanKey()
		}
	}
	return &Editor{tariffs: c}
}

// View returns a deep copy of the working collection.
func (e *Editor) View() tariff.Collection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tariffs.Clone()
}

// AddTariff appends an empty tariff seeded with one default plan.
func (e *Editor) AddTariff() *tariff.Tariff {
	t := &tariff.Tariff{
		Key:   idgen.TariffKey(),
		Plans: []*tariff.Plan{newPlan(SeedPlanName)},
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tariffs = append(e.tariffs, t)
	return t.Clone()
}

// RemoveTariff deletes the tariff with the given key. It reports whether
// anything was removed; an unknown key is a no-op.
func (e *Editor) RemoveTariff(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(key)
	if i < 0 {
		return false
	}
	e.tariffs = append(e.tariffs[:i], e.tariffs[i+1:]...)
	return true
}

// UpdateTariff applies patch with each provided field trimmed.
func (e *Editor) UpdateTariff(key string, patch TariffPatch) (*tariff.Tariff, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(key)
	if i < 0 {
		return nil, ErrTariffNotFound
	}
	t := e.tariffs[i]
	if patch.ID != nil {
		t.ID = strings.TrimSpace(*patch.ID)
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Subtitle != nil {
		t.Subtitle = strings.TrimSpace(*patch.Subtitle)
	}
	return t.Clone(), nil
}

// AddPlan appends a default plan to the end of the tariff's plans. The
// canonical order is not re-applied.
func (e *Editor) AddPlan(tariffKey string) (*tariff.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(tariffKey)
	if i < 0 {
		return nil, ErrTariffNotFound
	}
	p := newPlan(AddedPlanName)
	e.tariffs[i].Plans = append(e.tariffs[i].Plans, p)
	return p.Clone(), nil
}

// RemovePlan deletes one plan from a tariff. Unknown keys are a no-op.
func (e *Editor) RemovePlan(tariffKey, planKey string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(tariffKey)
	if i < 0 {
		return false
	}
	t := e.tariffs[i]
	for j, p := range t.Plans {
		if p.Key == planKey {
			t.Plans = append(t.Plans[:j], t.Plans[j+1:]...)
			return true
		}
	}
	return false
}

// UpdatePlan applies patch. Name and price are trimmed; features text is
// split one feature per line with blank lines dropped.
func (e *Editor) UpdatePlan(tariffKey, planKey string, patch PlanPatch) (*tariff.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(tariffKey)
	if i < 0 {
		return nil, ErrTariffNotFound
	}
	for _, p := range e.tariffs[i].Plans {
		if p.Key != planKey {
			continue
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Price != nil {
			p.Price = strings.TrimSpace(*patch.Price)
		}
		if patch.Features != nil {
			p.Features = tariff.ParseFeatures(*patch.Features)
		}
		return p.Clone(), nil
	}
	return nil, ErrPlanNotFound
}

// SerializeOutput renders the working collection as the exported JSON
// array in its current order.
func (e *Editor) SerializeOutput() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tariffs.Serialize()
}

func (e *Editor) indexOf(key string) int {
	for i, t := range e.tariffs {
		if t.Key == key {
			return i
		}
	}
	return -1
}

func newPlan(name string) *tariff.Plan {
	return &tariff.Plan{Key: idgen.PlanKey(), Name: name, Features: []string{}}
}
