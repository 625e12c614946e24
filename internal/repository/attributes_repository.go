package repository

import (
	"context"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttributesRepository struct {
	db *gorm.DB
}

func NewAttributesRepository(db *gorm.DB) *AttributesRepository {
	return &AttributesRepository{db: db}
}

func (r *AttributesRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AttributeKey{}).Where("value = ?", key).Count(&count).Error
	if err != nil {
		return false, translate(err, "ATTRIBUTE_KEY_NOT_FOUND", "attribute key")
	}
	return count > 0, nil
}

// ValuesByKey returns the values paired with key.
func (r *AttributesRepository) ValuesByKey(ctx context.Context, key string) ([]models.AttributeValue, error) {
	var values []models.AttributeValue
	err := r.db.WithContext(ctx).
		Joins("JOIN attributes ON attributes.value_id = attribute_values.id").
		Joins("JOIN attribute_keys ON attribute_keys.id = attributes.key_id").
		Where("attribute_keys.value = ?", key).
		Find(&values).Error
	if err != nil {
		return nil, translate(err, "ATTRIBUTE_NOT_FOUND", "attribute values")
	}
	return values, nil
}

func (r *AttributesRepository) FindPair(ctx context.Context, key, value string) (*models.Attribute, error) {
	var attr models.Attribute
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Value").
		Joins("JOIN attribute_keys ON attribute_keys.id = attributes.key_id").
		Joins("JOIN attribute_values ON attribute_values.id = attributes.value_id").
		Where("attribute_keys.value = ? AND attribute_values.value = ?", key, value).
		First(&attr).Error
	if err != nil {
		return nil, translate(err, "ATTRIBUTE_NOT_FOUND", "attribute "+key+"="+value)
	}
	return &attr, nil
}

// CreatePair inserts the key and value rows if they are missing and then the
// pair itself. A pair that already exists yields a conflict.
func (r *AttributesRepository) CreatePair(ctx context.Context, key models.AttributeKey, value models.AttributeValue) (*models.Attribute, error) {
	var attr models.Attribute
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "value"}},
			DoNothing: true,
		}).Create(&key).Error; err != nil {
			return err
		}
		var storedKey models.AttributeKey
		if err := tx.Where("value = ?", key.Value).First(&storedKey).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "value"}},
			DoNothing: true,
		}).Create(&value).Error; err != nil {
			return err
		}
		var storedValue models.AttributeValue
		if err := tx.Where("value = ?", value.Value).First(&storedValue).Error; err != nil {
			return err
		}

		attr = models.Attribute{KeyID: storedKey.ID, ValueID: storedValue.ID}
		result := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key_id"}, {Name: "value_id"}},
			DoNothing: true,
		}).Create(&attr)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("ATTRIBUTE_EXISTS", nil, "attribute %s=%s already exists", key.Value, value.Value)
		}
		attr.Key = storedKey
		attr.Value = storedValue
		return nil
	})
	if apperrors.KindOf(err) != "" {
		return nil, err
	}
	if err != nil {
		return nil, translate(err, "ATTRIBUTE_NOT_FOUND", "attribute "+key.Value+"="+value.Value)
	}
	return &attr, nil
}

func (r *AttributesRepository) List(ctx context.Context) ([]models.Attribute, error) {
	var attrs []models.Attribute
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Value").
		Order("created_at ASC").
		Find(&attrs).Error
	if err != nil {
		return nil, translate(err, "ATTRIBUTE_NOT_FOUND", "attributes")
	}
	return attrs, nil
}

// GetByIDs returns the attributes found among ids, in no particular order.
func (r *AttributesRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error) {
	if len(ids) == 0 {
		return []models.Attribute{}, nil
	}
	var attrs []models.Attribute
	err := r.db.WithContext(ctx).
		Preload("Key").
		Preload("Value").
		Where("id IN ?", ids).
		Find(&attrs).Error
	if err != nil {
		return nil, translate(err, "ATTRIBUTE_NOT_FOUND", "attributes")
	}
	return attrs, nil
}
