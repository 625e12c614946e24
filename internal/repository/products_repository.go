package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
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
	ProductCacheTTL     = 5 * time.Minute
	ProductListCacheTTL = 2 * time.Minute // lists change with every import
)

const (
	productCacheKey        = "catalog:products:product:%s"
	productListCachePrefix = "catalog:products:list"
)

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProductsRepository(db *gorm.DB, redis *redis.Client) *ProductsRepository {
	return &ProductsRepository{
		db:    db,
		redis: redis,
	}
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// invalidateProductCaches drops the cached product and every cached listing.
func (r *ProductsRepository) invalidateProductCaches(ctx context.Context, productID uuid.UUID) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, fmt.Sprintf(productCacheKey, productID))
	r.invalidateListCaches(ctx)
}

func (r *ProductsRepository) invalidateListCaches(ctx context.Context) {
	if r.redis == nil {
		return
	}
	deleteByPattern(ctx, r.redis, productListCachePrefix+":*")
}

// withDetails preloads everything a product response carries.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Category").
		Preload("Params.Key").
		Preload("Params.Value").
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_variants.created_at ASC")
		}).
		Preload("Variants.Attributes.Key").
		Preload("Variants.Attributes.Value")
}

// Product CRUD Operations

// CreateProduct inserts the product and links its params. The params must
// already exist.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).
		Omit("Category", "Variants", "Params.*").
		Create(product).Error
	if err != nil {
		return translate(err, "PRODUCT_NOT_FOUND", "product "+product.Name)
	}
	r.invalidateListCaches(ctx)
	return nil
}

// GetProduct retrieves a product with its params and variants, with caching.
func (r *ProductsRepository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	cacheKey := fmt.Sprintf(productCacheKey, id)
	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	if err := withDetails(r.db.WithContext(ctx)).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, translate(err, "PRODUCT_NOT_FOUND", describe("product", id))
	}

	if r.redis != nil {
		data, err := json.Marshal(product)
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}
	return &product, nil
}

// GetProductBySlug returns the oldest product with the given slug.
func (r *ProductsRepository) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := withDetails(r.db.WithContext(ctx)).
		Where("slug = ?", slug).
		Order("products.created_at ASC").
		First(&product).Error
	if err != nil {
		return nil, translate(err, "PRODUCT_NOT_FOUND", "product "+slug)
	}
	return &product, nil
}

type productListResult struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

// ListProducts returns one page of products matching filter, newest first,
// together with the total number of matches.
func (r *ProductsRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	cacheKey := generateListCacheKey(productListCachePrefix, filter)
	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var result productListResult
			if err := json.Unmarshal([]byte(val), &result); err == nil {
				return result.Products, result.Total, nil
			}
		}
	}

	matching := func(db *gorm.DB) *gorm.DB {
		if filter.Query != "" {
			db = db.Where("products.name ILIKE ?", "%"+filter.Query+"%")
		}
		if filter.CategoryIDs != nil {
			db = db.Where("products.category_id IN ?", filter.CategoryIDs)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Scopes(matching).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "PRODUCT_NOT_FOUND", "products")
	}

	query := withDetails(r.db.WithContext(ctx)).Scopes(matching).Order("products.created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, translate(err, "PRODUCT_NOT_FOUND", "products")
	}

	if r.redis != nil {
		data, err := json.Marshal(productListResult{Products: products, Total: total})
		if err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductListCacheTTL)
		}
	}
	return products, total, nil
}

// UpdateProduct saves the product columns. A non-nil params replaces the
// product's param set.
func (r *ProductsRepository) UpdateProduct(ctx context.Context, product *models.Product, params []models.Attribute) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Category", "Variants", "Params").Save(product).Error; err != nil {
			return err
		}
		if params != nil {
			return tx.Model(product).Omit("Params.*").Association("Params").Replace(params)
		}
		return nil
	})
	if err != nil {
		return translate(err, "PRODUCT_NOT_FOUND", describe("product", product.ID))
	}
	r.invalidateProductCaches(ctx, product.ID)
	return nil
}

// DeleteProduct removes the product with its variants and every link to it.
func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM variant_attributes WHERE product_variant_id IN (SELECT id FROM product_variants WHERE product_id = ?)", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM collection_products WHERE product_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Select("Params", "Variants").Delete(&models.Product{ID: id})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return translate(err, "PRODUCT_NOT_FOUND", describe("product", id))
	}
	if affected == 0 {
		return translate(gorm.ErrRecordNotFound, "PRODUCT_NOT_FOUND", describe("product", id))
	}
	r.invalidateProductCaches(ctx, id)
	return nil
}

// Variant Operations

// CreateVariant inserts the variant and links its attributes. The attributes
// must already exist.
func (r *ProductsRepository) CreateVariant(ctx context.Context, variant *models.ProductVariant) error {
	if err := r.db.WithContext(ctx).Omit("Attributes.*").Create(variant).Error; err != nil {
		return translate(err, "PRODUCT_NOT_FOUND", describe("product", variant.ProductID))
	}
	r.invalidateProductCaches(ctx, variant.ProductID)
	return nil
}

func (r *ProductsRepository) GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Attributes.Key").
		Preload("Attributes.Value").
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, translate(err, "VARIANT_NOT_FOUND", describe("variant", id))
	}
	return &variant, nil
}

func (r *ProductsRepository) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Attributes.Key").
		Preload("Attributes.Value").
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&variants).Error
	if err != nil {
		return nil, translate(err, "VARIANT_NOT_FOUND", "variants")
	}
	return variants, nil
}

// UpdateVariant saves the variant columns. A non-nil attributes replaces the
// variant's attribute set.
func (r *ProductsRepository) UpdateVariant(ctx context.Context, variant *models.ProductVariant, attributes []models.Attribute) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Attributes").Save(variant).Error; err != nil {
			return err
		}
		if attributes != nil {
			return tx.Model(variant).Omit("Attributes.*").Association("Attributes").Replace(attributes)
		}
		return nil
	})
	if err != nil {
		return translate(err, "VARIANT_NOT_FOUND", describe("variant", variant.ID))
	}
	r.invalidateProductCaches(ctx, variant.ProductID)
	return nil
}

func (r *ProductsRepository) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	variant, err := r.GetVariant(ctx, id)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Select("Attributes").Delete(variant).Error
	})
	if err != nil {
		return translate(err, "VARIANT_NOT_FOUND", describe("variant", id))
	}
	r.invalidateProductCaches(ctx, variant.ProductID)
	return nil
}
