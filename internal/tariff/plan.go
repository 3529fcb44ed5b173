// Package tariff holds the pricing data model: plans, tariffs and the
// collection parsed from a tariffs document.
package tariff

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Plan is a single pricing tier inside a tariff.
type Plan struct {
	// Key is a surrogate identity used by the editor. It is never serialized.
	Key      string   `json:"-"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

// NewPlan builds a plan from a loosely-typed record. Missing or unusable
// fields fall back to their zero values; it never fails.
func NewPlan(record map[string]any) *Plan {
	p := &Plan{
		Name:     stringField(record, "name"),
		Price:    stringField(record, "price"),
		Features: []string{},
	}
	if raw, ok := record["features"].([]any); ok {
		for _, item := range raw {
			s, ok := scalarString(item)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				p.Features = append(p.Features, s)
			}
		}
	}
	return p
}

// PlanFromForm builds a plan from editor form input. The price is trimmed
// and the features text is split into one feature per line.
func PlanFromForm(name, price, featuresText string) *Plan {
	return &Plan{
		Name:     name,
		Price:    strings.TrimSpace(price),
		Features: ParseFeatures(featuresText),
	}
}

// ParseFeatures splits multi-line text into trimmed, non-empty features.
func ParseFeatures(text string) []string {
	features := []string{}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			features = append(features, line)
		}
	}
	return features
}

// Clone returns a deep copy of the plan, key included.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Features = append([]string{}, p.Features...)
	return &cp
}

// MarshalJSON always emits features as an array, never null.
func (p *Plan) MarshalJSON() ([]byte, error) {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return marshalUnescaped(struct {
		Name     string   `json:"name"`
		Price    string   `json:"price"`
		Features []string `json:"features"`
	}{p.Name, p.Price, features})
}

// marshalUnescaped is json.Marshal without HTML escaping. Encoders wrapping
// the result only escape it further when they are configured to.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func stringField(record map[string]any, key string) string {
	s, _ := scalarString(record[key])
	return s
}

// scalarString renders JSON/YAML scalars as strings. Objects, arrays and
// nil report false.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
