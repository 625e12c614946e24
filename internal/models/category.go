package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category represents a product category. Categories form a forest through
// ParentCategoryID; a nil parent marks a root.
type Category struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	Slug             string     `json:"slug" gorm:"not null;index"`
	Name             string     `json:"name" gorm:"not null"`
	Description      *string    `json:"description,omitempty"`
	ImageURL         *string    `json:"imageUrl,omitempty" gorm:"column:image_url"`
	IsVisible        bool       `json:"isVisible" gorm:"not null;default:true"`
	ParentCategoryID *uuid.UUID `json:"parentCategoryId" gorm:"type:uuid;index"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// CategoryNode is a category with its children attached. It is derived from a
// flat snapshot of categories on every request and never persisted.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CreateCategoryRequest represents a request to create a new category
type CreateCategoryRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	IsVisible   *bool      `json:"isVisible,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
}

// UpdateCategoryRequest represents a request to update a category.
// ClearParent moves the category to the root level.
type UpdateCategoryRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
	IsVisible   *bool      `json:"isVisible,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	ClearParent bool       `json:"clearParent,omitempty"`
}

// CategoryResponse represents a single category response
type CategoryResponse struct {
	Success bool      `json:"success"`
	Data    *Category `json:"data"`
}

// CategoryListResponse represents a list of categories response
type CategoryListResponse struct {
	Success bool       `json:"success"`
	Data    []Category `json:"data"`
}

// CategoryTreeResponse represents hierarchical category tree response
type CategoryTreeResponse struct {
	Success bool            `json:"success"`
	Data    []*CategoryNode `json:"data"`
}

func (Category) TableName() string {
	return "categories"
}
