package engine

import "github.com/utafrali/catalogue/internal/domain"

// Definition describes an index: its name and the text fields queried by
// keyword search. Every field is mapped as analyzed text.
type Definition struct {
	Name       string
	EntityType domain.EntityType
	Fields     []string
}

// ProductIndex returns the definition of the product index.
func ProductIndex(name string) Definition {
	return Definition{
		Name:       name,
		EntityType: domain.EntityProduct,
		Fields:     []string{"title", "description", "short_description"},
	}
}

// CategoryIndex returns the definition of the category index.
func CategoryIndex(name string) Definition {
	return Definition{
		Name:       name,
		EntityType: domain.EntityCategory,
		Fields:     []string{"title", "description"},
	}
}
