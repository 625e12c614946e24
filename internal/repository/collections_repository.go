package repository

import (
	"context"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CollectionsRepository struct {
	db *gorm.DB
}

func NewCollectionsRepository(db *gorm.DB) *CollectionsRepository {
	return &CollectionsRepository{db: db}
}

// Create inserts the collection and links its existing categories and products.
func (r *CollectionsRepository) Create(ctx context.Context, collection *models.Collection) error {
	err := r.db.WithContext(ctx).
		Omit("Categories.*", "Products.*").
		Create(collection).Error
	return translate(err, "COLLECTION_NOT_FOUND", "collection "+collection.Title)
}

func (r *CollectionsRepository) Get(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Products").
		Where("id = ?", id).
		First(&collection).Error
	if err != nil {
		return nil, translate(err, "COLLECTION_NOT_FOUND", describe("collection", id))
	}
	return &collection, nil
}
