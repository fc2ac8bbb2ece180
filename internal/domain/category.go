package domain

import "time"

// Category groups products. Categories form a tree through ParentID.
type Category struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	IsActive    bool      `json:"is_active"`
	ParentID    *int64    `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryDocument is the indexed form of a Category.
type CategoryDocument struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// DocumentID implements Indexable.
func (c Category) DocumentID() string { return formatID(c.ID) }

// SearchDocument implements Indexable.
func (c Category) SearchDocument() any {
	return CategoryDocument{Title: c.Title, Description: c.Description}
}

// CategoryInput is the writable part of a Category.
type CategoryInput struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Image       *string `json:"image" validate:"omitempty,url"`
	IsActive    *bool   `json:"is_active"`
	ParentID    *int64  `json:"parent_id" validate:"omitempty,gt=0"`
}

// Apply copies the input onto c. IsActive defaults to true when omitted.
func (in CategoryInput) Apply(c *Category) {
	c.Title = in.Title
	c.Description = in.Description
	c.Image = in.Image
	c.IsActive = in.IsActive == nil || *in.IsActive
	c.ParentID = in.ParentID
}
