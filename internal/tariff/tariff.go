package tariff

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tariff is a named group of plans, e.g. "full" or "single".
type Tariff struct {
	Key      string  `json:"-"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Plans    []*Plan `json:"plans"`
}

// NewTariff builds a tariff from a loosely-typed record. Plan entries may be
// records or *Plan values; anything else in the plans list is skipped.
func NewTariff(record map[string]any) *Tariff {
	t := &Tariff{
		ID:       stringField(record, "id"),
		Title:    stringField(record, "title"),
		Subtitle: stringField(record, "subtitle"),
		Plans:    []*Plan{},
	}
	switch plans := record["plans"].(type) {
	case []any:
		for _, entry := range plans {
			switch p := entry.(type) {
			case *Plan:
				t.Plans = append(t.Plans, p)
			case map[string]any:
				t.Plans = append(t.Plans, NewPlan(p))
			}
		}
	case []*Plan:
		t.Plans = append(t.Plans, plans...)
	}
	return t
}

// Clone returns a deep copy of the tariff and its plans.
func (t *Tariff) Clone() *Tariff {
	cp := *t
	cp.Plans = make([]*Plan, len(t.Plans))
	for i, p := range t.Plans {
		cp.Plans[i] = p.Clone()
	}
	return &cp
}

// MarshalJSON keeps field order stable and never emits null plans.
func (t *Tariff) MarshalJSON() ([]byte, error) {
	plans := t.Plans
	if plans == nil {
		plans = []*Plan{}
	}
	return marshalUnescaped(struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Subtitle string  `json:"subtitle"`
		Plans    []*Plan `json:"plans"`
	}{t.ID, t.Title, t.Subtitle, plans})
}

// ParseCollection turns a decoded document into a collection. Two shapes
// are accepted:
//
//   - an array of tariff records;
//   - a legacy object keyed by tariff id, e.g. {"full": {...}, "single": {...}}.
//
// Any other value yields an empty collection. Use DecodeJSON or DecodeYAML
// to keep the key order of legacy documents; a plain map is walked in
// sorted key order.
func ParseCollection(doc any) Collection {
	switch v := doc.(type) {
	case []any:
		c := make(Collection, 0, len(v))
		for _, item := range v {
			if record, ok := item.(map[string]any); ok {
				c = append(c, NewTariff(record))
			}
		}
		return c
	case *orderedmap.OrderedMap[string, any]:
		if v == nil {
			return Collection{}
		}
		c := make(Collection, 0, v.Len())
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			c = append(c, legacyEntry(pair.Key, pair.Value))
		}
		return c
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		c := make(Collection, 0, len(keys))
		for _, k := range keys {
			c = append(c, legacyEntry(k, v[k]))
		}
		return c
	default:
		return Collection{}
	}
}

// legacyEntry merges the map key in as the id. An id carried by the record
// itself takes precedence.
func legacyEntry(key string, value any) *Tariff {
	record, ok := value.(map[string]any)
	if !ok {
		return &Tariff{ID: key, Plans: []*Plan{}}
	}
	t := NewTariff(record)
	if t.ID == "" {
		t.ID = key
	}
	return t
}
