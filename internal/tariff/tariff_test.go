package tariff

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDoc = `{
  "full": {
    "title": "Full check",
    "subtitle": "All cameras",
    "plans": [
      {"name": "L", "price": "2000", "features": ["b"]},
      {"name": "M", "price": "1000", "features": ["a"]}
    ]
  },
  "single": {
    "title": "Single camera",
    "subtitle": "One camera",
    "plans": [{"name": "M", "price": "500", "features": []}]
  }
}`

func names(plans []*Plan) []string {
	out := make([]string, len(plans))
	for i, p := range plans {
		out[i] = p.Name
	}
	return out
}

func plansNamed(ns ...string) []*Plan {
	plans := make([]*Plan, len(ns))
	for i, n := range ns {
		plans[i] = &Plan{Name: n, Features: []string{}}
	}
	return plans
}

func TestNewPlan_Defaults(t *testing.T) {
	p := NewPlan(map[string]any{})
	if p.Name != "" || p.Price != "" {
		t.Errorf("Expected empty name and price, got %q %q", p.Name, p.Price)
	}
	if p.Features == nil || len(p.Features) != 0 {
		t.Errorf("Expected empty non-nil features, got %#v", p.Features)
	}
}

func TestNewPlan_NonSequenceFeatures(t *testing.T) {
	p := NewPlan(map[string]any{"name": "M", "features": "not a list"})
	assert.Equal(t, "M", p.Name)
	assert.Empty(t, p.Features)
}

func TestNewPlan_StringifiesScalars(t *testing.T) {
	p := NewPlan(map[string]any{
		"name":     "M",
		"price":    float64(999),
		"features": []any{"  fast ", "", 42, map[string]any{"x": 1}, nil},
	})
	assert.Equal(t, "999", p.Price)
	assert.Equal(t, []string{"fast", "42"}, p.Features)
}

func TestPlanFromForm(t *testing.T) {
	p := PlanFromForm("M", " 999 ", "a\n\nb \n c")
	assert.Equal(t, "M", p.Name)
	assert.Equal(t, "999", p.Price)
	assert.Equal(t, []string{"a", "b", "c"}, p.Features)
}

func TestParseFeatures_CRLFAndBlank(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, ParseFeatures("one\r\n   \r\ntwo\r\n"))
	assert.Equal(t, []string{}, ParseFeatures(""))
}

func TestPlanMarshal_NilFeatures(t *testing.T) {
	data, err := json.Marshal(&Plan{Name: "M"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"M","price":"","features":[]}`, string(data))
}

func TestNewTariff_SkipsJunkPlans(t *testing.T) {
	existing := &Plan{Name: "XL"}
	tr := NewTariff(map[string]any{
		"id":    "full",
		"plans": []any{map[string]any{"name": "M"}, "junk", 3, existing},
	})
	assert.Equal(t, "full", tr.ID)
	assert.Equal(t, "", tr.Title)
	require.Len(t, tr.Plans, 2)
	assert.Same(t, existing, tr.Plans[1])
}

func TestParseCollection_ArrayShape(t *testing.T) {
	doc, err := DecodeJSON([]byte(`[{"id":"a","title":"A","plans":[]}, 5, {"id":"b"}]`))
	require.NoError(t, err)

	c := ParseCollection(doc)
	require.Len(t, c, 2)
	assert.Equal(t, "a", c[0].ID)
	assert.Equal(t, "b", c[1].ID)
}

func TestParseCollection_LegacyKeepsDocumentOrder(t *testing.T) {
	doc, err := DecodeJSON([]byte(legacyDoc))
	require.NoError(t, err)

	c := ParseCollection(doc)
	require.Len(t, c, 2)
	assert.Equal(t, "full", c[0].ID)
	assert.Equal(t, "Full check", c[0].Title)
	assert.Equal(t, "single", c[1].ID)
}

func TestParseCollection_LegacyOwnIDWins(t *testing.T) {
	c := ParseCollection(map[string]any{
		"key":   map[string]any{"id": "own"},
		"other": map[string]any{"id": ""},
		"plain": "scalar",
	})
	require.Len(t, c, 3)
	// plain maps are walked in sorted key order
	assert.Equal(t, "own", c[0].ID)
	assert.Equal(t, "other", c[1].ID)
	assert.Equal(t, "plain", c[2].ID)
	assert.Empty(t, c[2].Plans)
}

func TestParseCollection_Unrecognized(t *testing.T) {
	for _, doc := range []any{nil, "text", 12.5, true} {
		c := ParseCollection(doc)
		if len(c) != 0 {
			t.Errorf("Expected empty collection for %#v, got %d tariffs", doc, len(c))
		}
	}

	doc, err := DecodeJSON([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, ParseCollection(doc))

	doc, err = DecodeJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, ParseCollection(doc))
}

func TestDecodeJSON_Malformed(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"full": `))
	assert.Error(t, err)

	c, err := ParseDocument([]byte(`[1, 2`), FormatJSON)
	assert.Error(t, err)
	assert.Empty(t, c)
}

func TestDecodeYAML_Legacy(t *testing.T) {
	doc := `
single:
  title: Single
  plans:
    - name: XL
      price: 300
    - name: M
      price: "100"
      features: [one, two]
full:
  title: Full
`
	c, err := ParseDocument([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "single", c[0].ID)
	assert.Equal(t, "full", c[1].ID)
	assert.Equal(t, "300", c[0].Plans[0].Price)
	assert.Equal(t, []string{"one", "two"}, c[0].Plans[1].Features)
}

func TestDecodeYAML_Array(t *testing.T) {
	c, err := ParseDocument([]byte("- id: a\n- id: b\n"), FormatYAML)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "b", c[1].ID)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("data/tariffs.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("TARIFFS.YAML"))
	assert.Equal(t, FormatJSON, FormatFromPath("data/tariffs.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("https://cdn.example.com/tariffs"))
}

func TestCanonicalOrder_Scrambled(t *testing.T) {
	got := CanonicalOrder(plansNamed("extra", "XL", "M", "L"), PriorityNames)
	assert.Equal(t, []string{"M", "L", "XL", "extra"}, names(got))
}

func TestCanonicalOrder_MissingTokensAndDuplicates(t *testing.T) {
	in := plansNamed("B", "L", "A", "L")
	in[1].Price = "first"
	got := CanonicalOrder(in, PriorityNames)

	assert.Equal(t, []string{"L", "B", "A", "L"}, names(got))
	assert.Equal(t, "first", got[0].Price)
	assert.Equal(t, []string{"B", "L", "A", "L"}, names(in), "input must not be modified")
}

func TestCanonicalOrder_Idempotent(t *testing.T) {
	inputs := [][]string{
		{},
		{"XL", "XL", "M"},
		{"foo", "L", "bar", "M", "XL", "M"},
		{"m", "l", "xl"},
	}
	for _, in := range inputs {
		once := CanonicalOrder(plansNamed(in...), PriorityNames)
		twice := CanonicalOrder(once, PriorityNames)
		assert.Equal(t, names(once), names(twice), "input %v", in)
	}
}

func TestSerialize_LegacyEndToEnd(t *testing.T) {
	doc := `{"full":{"title":"T","subtitle":"S","plans":[{"name":"L","price":"2","features":["b"]},{"name":"M","price":"1","features":["a"]}]}}`
	c, err := ParseDocument([]byte(doc), FormatJSON)
	require.NoError(t, err)

	out, err := c.Normalize().Serialize()
	require.NoError(t, err)

	want := `[
  {
    "id": "full",
    "title": "T",
    "subtitle": "S",
    "plans": [
      {
        "name": "M",
        "price": "1",
        "features": [
          "a"
        ]
      },
      {
        "name": "L",
        "price": "2",
        "features": [
          "b"
        ]
      }
    ]
  }
]`
	assert.Equal(t, want, out)
}

func TestSerialize_Empty(t *testing.T) {
	out, err := Collection(nil).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestSerialize_NoHTMLEscaping(t *testing.T) {
	c := Collection{{ID: "a", Plans: []*Plan{{Name: "M", Price: "<b>1 & 2</b>"}}}}
	out, err := c.Serialize()
	require.NoError(t, err)
	assert.Contains(t, out, `"price": "<b>1 & 2</b>"`)
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestSerialize_RoundTripPreservesContent(t *testing.T) {
	c, err := ParseDocument([]byte(legacyDoc), FormatJSON)
	require.NoError(t, err)
	c.Normalize()

	out, err := c.Serialize()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "["))

	again, err := ParseDocument([]byte(out), FormatJSON)
	require.NoError(t, err)
	require.Len(t, again, len(c))
	for i := range c {
		assert.Equal(t, c[i].ID, again[i].ID)
		assert.Equal(t, c[i].Title, again[i].Title)
		assert.Equal(t, c[i].Subtitle, again[i].Subtitle)
		assert.ElementsMatch(t, names(c[i].Plans), names(again[i].Plans))
	}
}

func TestByID_LastWinsAndSkipsEmpty(t *testing.T) {
	c := Collection{
		{ID: "full", Title: "first"},
		{ID: "", Title: "anon"},
		{ID: "full", Title: "second"},
	}
	byID := c.ByID()
	assert.Len(t, byID, 1)
	assert.Equal(t, "second", byID["full"].Title)
}

func TestClone_IsDeep(t *testing.T) {
	c := Collection{{ID: "a", Plans: []*Plan{{Name: "M", Features: []string{"x"}}}}}
	cp := c.Clone()
	cp[0].Plans[0].Features[0] = "changed"
	cp[0].Title = "changed"

	assert.Equal(t, "x", c[0].Plans[0].Features[0])
	assert.Equal(t, "", c[0].Title)
	assert.Equal(t, 1, c.PlanCount())
}
