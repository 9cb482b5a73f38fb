package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseDocument decodes a JSON or YAML document into generic values.
// Object keys come back in document order alongside the decoded value, so
// that "the first list-valued field" means the same thing it does in the file.
func parseDocument(name string, data []byte) (any, []string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseJSON(data)
	}
}

func parseJSON(data []byte) (any, []string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}
	if _, ok := doc.(map[string]any); !ok {
		return doc, nil, nil
	}
	keys, err := jsonKeyOrder(data)
	if err != nil {
		return nil, nil, err
	}
	return doc, keys, nil
}

// jsonKeyOrder walks the top-level object and returns its keys in order.
func jsonKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parseYAML(data []byte) (any, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	node := root.Content[0]

	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, nil, err
	}
	doc, err := stringKeys(raw)
	if err != nil {
		return nil, nil, err
	}

	var keys []string
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			keys = append(keys, node.Content[i].Value)
		}
	}
	return doc, keys, nil
}

// stringKeys converts YAML maps with non-string keys into map[string]any and
// ints into float64 so both formats normalize through the same code.
func stringKeys(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = conv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			conv, err := stringKeys(val)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	default:
		return v, nil
	}
}

var errNoRecords = errors.New("document contains no question list")

// extractRecords finds the question list in a parsed document: the document
// itself, its "questions" field, or else its first list-valued field.
func extractRecords(doc any, keys []string) ([]any, error) {
	switch t := doc.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if qs, ok := t["questions"].([]any); ok {
			return qs, nil
		}
		for _, k := range keys {
			if list, ok := t[k].([]any); ok {
				return list, nil
			}
		}
	}
	return nil, errNoRecords
}
