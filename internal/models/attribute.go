package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttributeKey is a canonical attribute name such as "color". Value is the identity.
type AttributeKey struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Value     string    `json:"value" gorm:"not null;uniqueIndex:idx_attribute_keys_value"`
	Label     string    `json:"label" gorm:"not null"`
	ImageURL  *string   `json:"imageUrl,omitempty" gorm:"column:image_url"`
	CreatedAt time.Time `json:"createdAt"`
}

// AttributeValue is a value token shared by every key that uses it.
type AttributeValue struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Value     string    `json:"value" gorm:"not null;uniqueIndex:idx_attribute_values_value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attribute is a unique (key, value) pair referenced by products (as params)
// and by variants.
type Attribute struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	KeyID     uuid.UUID      `json:"keyId" gorm:"type:uuid;not null;uniqueIndex:idx_attributes_pair"`
	ValueID   uuid.UUID      `json:"valueId" gorm:"type:uuid;not null;uniqueIndex:idx_attributes_pair"`
	Key       AttributeKey   `json:"key" gorm:"foreignKey:KeyID;constraint:OnDelete:RESTRICT"`
	Value     AttributeValue `json:"value" gorm:"foreignKey:ValueID;constraint:OnDelete:RESTRICT"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (k *AttributeKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

func (v *AttributeValue) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (a *Attribute) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AttributeListResponse represents a list of attributes response
type AttributeListResponse struct {
	Success bool        `json:"success"`
	Data    []Attribute `json:"data"`
}

// AttributeResponse represents a single attribute response
type AttributeResponse struct {
	Success bool       `json:"success"`
	Data    *Attribute `json:"data"`
}

func (AttributeKey) TableName() string {
	return "attribute_keys"
}

func (AttributeValue) TableName() string {
	return "attribute_values"
}

func (Attribute) TableName() string {
	return "attributes"
}
