package domain

import "time"

// Product is a sellable catalogue item.
type Product struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description"`
	ShortDescription *string   `json:"short_description"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ProductDocument is the indexed form of a Product.
type ProductDocument struct {
	Title            string  `json:"title"`
	Description      *string `json:"description"`
	ShortDescription *string `json:"short_description"`
}

// DocumentID implements Indexable.
func (p Product) DocumentID() string { return formatID(p.ID) }

// SearchDocument implements Indexable.
func (p Product) SearchDocument() any {
	return ProductDocument{
		Title:            p.Title,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
	}
}

// ProductInput is the writable part of a Product.
type ProductInput struct {
	Title            string  `json:"title" validate:"required,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=10000"`
	ShortDescription *string `json:"short_description" validate:"omitempty,max=1000"`
	IsActive         *bool   `json:"is_active"`
}

// Apply copies the input onto p. IsActive defaults to true when omitted.
func (in ProductInput) Apply(p *Product) {
	p.Title = in.Title
	p.Description = in.Description
	p.ShortDescription = in.ShortDescription
	p.IsActive = in.IsActive == nil || *in.IsActive
}
