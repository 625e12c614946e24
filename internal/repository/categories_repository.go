package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Cache TTL constants
const (
	CategoryCacheTTL     = 30 * time.Minute // Categories rarely change
	CategoryListCacheTTL = 15 * time.Minute
)

const (
	categoryListCacheKey = "catalog:categories:list"
	categoryCacheKey     = "catalog:categories:category:%s"
)

// CategoriesRepository stores the flat category table. The full list backs
// every tree and subtree request, so it is cached in Redis when available.
type CategoriesRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCategoriesRepository(db *gorm.DB, redis *redis.Client) *CategoriesRepository {
	return &CategoriesRepository{
		db:    db,
		redis: redis,
	}
}

// invalidateCategoryCaches drops the cached list and, for an existing
// category, its entry plus every cached product, since products embed their
// category.
func (r *CategoriesRepository) invalidateCategoryCaches(ctx context.Context, id *uuid.UUID) {
	if r.redis == nil {
		return
	}
	keys := []string{categoryListCacheKey}
	if id != nil {
		keys = append(keys, fmt.Sprintf(categoryCacheKey, id))
	}
	r.redis.Del(ctx, keys...)
	if id != nil {
		deleteByPattern(ctx, r.redis, productCachePattern)
	}
}

// List returns every category ordered by creation time.
func (r *CategoriesRepository) List(ctx context.Context) ([]models.Category, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, categoryListCacheKey).Result()
		if err == nil {
			var categories []models.Category
			if err := json.Unmarshal([]byte(val), &categories); err == nil {
				return categories, nil
			}
		}
	}

	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&categories).Error; err != nil {
		return nil, translate(err, "CATEGORY_NOT_FOUND", "categories")
	}

	if r.redis != nil {
		data, err := json.Marshal(categories)
		if err == nil {
			r.redis.Set(ctx, categoryListCacheKey, data, CategoryListCacheTTL)
		}
	}
	return categories, nil
}

func (r *CategoriesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	cacheKey := fmt.Sprintf(categoryCacheKey, id)
	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var category models.Category
			if err := json.Unmarshal([]byte(val), &category); err == nil {
				return &category, nil
			}
		}
	}

	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, translate(err, "CATEGORY_NOT_FOUND", describe("category", id))
	}

	if r.redis != nil {
		data, err := json.Marshal(category)
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, CategoryCacheTTL)
		}
	}
	return &category, nil
}

// GetBySlug returns the oldest category with the given slug.
func (r *CategoriesRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("slug = ?", slug).Order("created_at ASC").First(&category).Error
	if err != nil {
		return nil, translate(err, "CATEGORY_NOT_FOUND", "category "+slug)
	}
	return &category, nil
}

func (r *CategoriesRepository) Create(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return translate(err, "CATEGORY_NOT_FOUND", "category "+category.Slug)
	}
	r.invalidateCategoryCaches(ctx, nil)
	return nil
}

func (r *CategoriesRepository) Update(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return translate(err, "CATEGORY_NOT_FOUND", describe("category", category.ID))
	}
	r.invalidateCategoryCaches(ctx, &category.ID)
	return nil
}

func (r *CategoriesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{})
	if result.Error != nil {
		return translate(result.Error, "CATEGORY_NOT_FOUND", describe("category", id))
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "CATEGORY_NOT_FOUND", describe("category", id))
	}
	r.invalidateCategoryCaches(ctx, &id)
	return nil
}
