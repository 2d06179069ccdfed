package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// asJSON returns the raw file rewritten as JSON together with the detected
// format name. Files without a .yaml/.yml extension are assumed to be JSON
// already and pass through untouched; YAML documents are decoded and
// re-marshaled so Parse can run a single strict decoder over either format.
func asJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("decode yaml: %w", err)
	}
	out, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("rewrite yaml as json: %w", err)
	}
	return out, "yaml", nil
}

// stringKeys rewrites every map key as a string. json.Marshal rejects
// map[any]any, which the yaml decoder produces for some documents.
func stringKeys(in any) any {
	switch doc := in.(type) {
	case map[any]any:
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range doc {
			doc[k] = stringKeys(v)
		}
		return doc
	case []any:
		for i, v := range doc {
			doc[i] = stringKeys(v)
		}
		return doc
	default:
		return in
	}
}
