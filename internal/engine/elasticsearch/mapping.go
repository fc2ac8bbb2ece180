package elasticsearch

import (
	"encoding/json"

	"github.com/utafrali/catalogue/internal/engine"
)

// buildIndexMapping returns the create-index body for def. Every searchable
// field is analyzed text; title also keeps a keyword subfield for exact
// matching and sorting.
func buildIndexMapping(def engine.Definition) ([]byte, error) {
	props := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		field := map[string]any{"type": "text"}
		if f == "title" {
			field["fields"] = map[string]any{
				"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
			}
		}
		props[f] = field
	}

	return json.Marshal(map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": props,
		},
	})
}
