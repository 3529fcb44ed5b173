package tariff

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PriorityNames is the plan order enforced when a document is loaded.
var PriorityNames = []string{"M", "L", "XL"}

// Collection is an ordered set of tariffs.
type Collection []*Tariff

// CanonicalOrder returns plans reordered so that, for each priority name in
// turn, the first plan carrying exactly that name comes next. Everything else,
// including later duplicates of a priority name, follows in input order.
// The input slice is not modified.
func CanonicalOrder(plans []*Plan, priority []string) []*Plan {
	ordered := make([]*Plan, 0, len(plans))
	taken := make([]bool, len(plans))
	for _, name := range priority {
		for i, p := range plans {
			if !taken[i] && p.Name == name {
				ordered = append(ordered, p)
				taken[i] = true
				break
			}
		}
	}
	for i, p := range plans {
		if !taken[i] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Normalize applies CanonicalOrder with PriorityNames to every tariff.
func (c Collection) Normalize() Collection {
	for _, t := range c {
		t.Plans = CanonicalOrder(t.Plans, PriorityNames)
	}
	return c
}

// Clone returns a deep copy.
func (c Collection) Clone() Collection {
	cp := make(Collection, len(c))
	for i, t := range c {
		cp[i] = t.Clone()
	}
	return cp
}

// ByID indexes the collection the way the public pricing page does.
// Tariffs without an id are skipped and the last tariff with a given id wins.
func (c Collection) ByID() map[string]*Tariff {
	m := make(map[string]*Tariff, len(c))
	for _, t := range c {
		if t.ID != "" {
			m[t.ID] = t
		}
	}
	return m
}

// PlanCount returns the number of plans across all tariffs.
func (c Collection) PlanCount() int {
	n := 0
	for _, t := range c {
		n += len(t.Plans)
	}
	return n
}

// Serialize renders the collection as an indented JSON array. The output is
// always the array shape regardless of the shape it was parsed from, and
// HTML characters are left unescaped.
func (c Collection) Serialize() (string, error) {
	if c == nil {
		c = Collection{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode tariffs: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
