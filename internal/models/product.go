package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product represents a product entity. Params are attributes shared by every
// variant of the product.
type Product struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	Slug        string           `json:"slug" gorm:"not null;index"`
	Name        string           `json:"name" gorm:"not null;index"`
	Description *string          `json:"description,omitempty"`
	ImageURL    string           `json:"imageUrl" gorm:"column:image_url"`
	IsVisible   bool             `json:"isVisible" gorm:"not null;default:true"`
	CategoryID  uuid.UUID        `json:"categoryId" gorm:"type:uuid;not null;index"`
	Category    *Category        `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT"`
	Params      []Attribute      `json:"params" gorm:"many2many:product_params"`
	Variants    []ProductVariant `json:"variants" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// ProductVariant represents a product variant. Prices are optional whole
// amounts; nil means the file did not provide one.
type ProductVariant struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	ProductID     uuid.UUID   `json:"productId" gorm:"type:uuid;not null;index"`
	ImageURL      string      `json:"imageUrl" gorm:"column:image_url"`
	Price         *int        `json:"price"`
	DiscountPrice *int        `json:"discountPrice"`
	Attributes    []Attribute `json:"attributes" gorm:"many2many:variant_attributes"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Collection groups hand-picked categories and products for merchandising.
type Collection struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	Title      string     `json:"title" gorm:"not null"`
	Categories []Category `json:"categories" gorm:"many2many:collection_categories"`
	Products   []Product  `json:"products" gorm:"many2many:collection_products"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description *string     `json:"description,omitempty"`
	ImageURL    string      `json:"imageUrl"`
	IsVisible   *bool       `json:"isVisible,omitempty"`
	CategoryID  uuid.UUID   `json:"categoryId" binding:"required"`
	ParamIDs    []uuid.UUID `json:"paramIds"`
}

// UpdateProductRequest represents a request to update a product. A non-nil
// ParamIDs replaces the full param set.
type UpdateProductRequest struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	ImageURL    *string     `json:"imageUrl,omitempty"`
	IsVisible   *bool       `json:"isVisible,omitempty"`
	CategoryID  *uuid.UUID  `json:"categoryId,omitempty"`
	ParamIDs    []uuid.UUID `json:"paramIds,omitempty"`
}

// CreateProductVariantRequest represents a request to add a variant to a product
type CreateProductVariantRequest struct {
	ImageURL      string      `json:"imageUrl"`
	Price         *int        `json:"price,omitempty"`
	DiscountPrice *int        `json:"discountPrice,omitempty"`
	AttributeIDs  []uuid.UUID `json:"attributeIds"`
}

// UpdateProductVariantRequest represents a request to update a variant
type UpdateProductVariantRequest struct {
	ImageURL      *string     `json:"imageUrl,omitempty"`
	Price         *int        `json:"price,omitempty"`
	DiscountPrice *int        `json:"discountPrice,omitempty"`
	AttributeIDs  []uuid.UUID `json:"attributeIds,omitempty"`
}

// CreateCollectionRequest represents a request to create a collection
type CreateCollectionRequest struct {
	Title       string      `json:"title" binding:"required"`
	CategoryIDs []uuid.UUID `json:"categoryIds"`
	ProductIDs  []uuid.UUID `json:"productIds"`
}

// ProductFilter narrows product listings. CategoryIDs is the already expanded
// category subtree.
type ProductFilter struct {
	Query       string
	CategoryIDs []uuid.UUID
	Limit       int
	Offset      int
}

// PaginationInfo represents pagination information
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// NewPaginationInfo computes page metadata for a listing.
func NewPaginationInfo(page, limit int, total int64) *PaginationInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// Response types
type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ProductVariantResponse struct {
	Success bool            `json:"success"`
	Data    *ProductVariant `json:"data"`
}

type ProductVariantListResponse struct {
	Success bool             `json:"success"`
	Data    []ProductVariant `json:"data"`
}

type CollectionResponse struct {
	Success bool        `json:"success"`
	Data    *Collection `json:"data"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

func (Collection) TableName() string {
	return "collections"
}
