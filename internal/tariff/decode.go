package tariff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a tariffs document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the document format from a file name or URL path.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses raw document bytes into the generic tree ParseCollection
// understands. An empty document decodes to nil.
func Decode(data []byte, format Format) (any, error) {
	if format == FormatYAML {
		return DecodeYAML(data)
	}
	return DecodeJSON(data)
}

// DecodeJSON decodes a JSON document. Top-level objects are kept in
// document order.
func DecodeJSON(data []byte) (any, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		om := orderedmap.New[string, any]()
		if err := om.UnmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		return om, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

// DecodeYAML decodes a YAML document. Top-level mappings are kept in
// document order; nested mappings become map[string]any.
func DecodeYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		var v any
		if err := root.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return v, nil
	}
	om := orderedmap.New[string, any]()
	for i := 0; i+1 < len(root.Content); i += 2 {
		var v any
		if err := root.Content[i+1].Decode(&v); err != nil {
			return nil, fmt.Errorf("decode yaml key %q: %w", root.Content[i].Value, err)
		}
		om.Set(root.Content[i].Value, v)
	}
	return om, nil
}

// ParseDocument decodes and parses in one step. Decode errors are returned
// together with an empty collection.
func ParseDocument(data []byte, format Format) (Collection, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return Collection{}, err
	}
	return ParseCollection(doc), nil
}
