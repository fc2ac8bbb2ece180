package domain

import (
	"fmt"
	"strconv"
)

// EntityType names a catalogue entity that is mirrored into a search index.
type EntityType string

const (
	EntityProduct  EntityType = "products"
	EntityCategory EntityType = "categories"
)

// EntityTypes lists every indexed entity type.
func EntityTypes() []EntityType {
	return []EntityType{EntityProduct, EntityCategory}
}

// ParseEntityType converts the path segment used by the API into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityProduct, EntityCategory:
		return EntityType(s), nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Singular returns the name used in error messages and event aggregates.
func (t EntityType) Singular() string {
	switch t {
	case EntityProduct:
		return "product"
	case EntityCategory:
		return "category"
	default:
		return string(t)
	}
}

// Indexable is the read-only projection of an entity written to a search index.
type Indexable interface {
	DocumentID() string
	SearchDocument() any
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
