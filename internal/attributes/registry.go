// Package attributes keeps the catalog's controlled vocabulary of
// (key, value) attribute pairs.
package attributes

import (
	"context"
	"errors"
	"strings"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the record store behind the registry.
//
// CreatePair must be idempotent on the key and value tokens: existing
// AttributeKey and AttributeValue rows are reused, and a pair that already
// exists is reported as an apperrors conflict rather than duplicated.
type Store interface {
	KeyExists(ctx context.Context, key string) (bool, error)
	ValuesByKey(ctx context.Context, key string) ([]models.AttributeValue, error)
	FindPair(ctx context.Context, key, value string) (*models.Attribute, error)
	CreatePair(ctx context.Context, key models.AttributeKey, value models.AttributeValue) (*models.Attribute, error)
	List(ctx context.Context) ([]models.Attribute, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error)
}

type KeyInput struct {
	Value    string
	Label    string
	ImageURL *string
}

type ValueInput struct {
	Value string
}

// Registry resolves attribute pairs, creating them on first use.
type Registry struct {
	store  Store
	locks  *tokenLocks
	logger *logrus.Entry
}

func NewRegistry(store Store, logger *logrus.Entry) *Registry {
	return &Registry{
		store:  store,
		locks:  newTokenLocks(),
		logger: logger.WithField("component", "attribute_registry"),
	}
}

// GetOrCreate returns the attribute for (key.Value, value.Value), creating the
// key, value and pair rows as needed. Calling it again with the same tokens
// returns the same attribute.
func (r *Registry) GetOrCreate(ctx context.Context, key KeyInput, value ValueInput) (*models.Attribute, error) {
	if strings.TrimSpace(key.Value) == "" {
		return nil, apperrors.Validation("INVALID_ATTRIBUTE_KEY", "attribute key must not be empty")
	}

	release, err := r.locks.Acquire(ctx, key.Value+"\x00"+value.Value)
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := r.store.KeyExists(ctx, key.Value)
	if err != nil {
		return nil, err
	}
	if exists {
		values, err := r.store.ValuesByKey(ctx, key.Value)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if v.Value == value.Value {
				return r.store.FindPair(ctx, key.Value, value.Value)
			}
		}
	}

	label := key.Label
	if label == "" {
		label = key.Value
	}
	attr, err := r.store.CreatePair(ctx,
		models.AttributeKey{Value: key.Value, Label: label, ImageURL: key.ImageURL},
		models.AttributeValue{Value: value.Value},
	)
	if errors.Is(err, apperrors.ErrConflict) {
		// Another writer created the pair first.
		return r.store.FindPair(ctx, key.Value, value.Value)
	}
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"key":          key.Value,
		"value":        value.Value,
		"attribute_id": attr.ID,
	}).Debug("Created attribute")
	return attr, nil
}

// GetOrCreateMany resolves the attributes named by keys for one row of a
// product group. A key whose value is empty in the row and in every other row
// of the group does not apply to the product and is skipped. A key missing
// from the row altogether is a validation error.
func (r *Registry) GetOrCreateMany(ctx context.Context, keys []string, row models.RawRow, group []models.RawRow) ([]models.Attribute, error) {
	result := make([]models.Attribute, 0, len(keys))
	for _, key := range keys {
		value, ok := row[key]
		if !ok {
			return nil, apperrors.Validation("MISSING_COLUMN", "column %q is missing from the import row", key)
		}
		if value == "" && emptyInGroup(key, group) {
			continue
		}

		attr, err := r.GetOrCreate(ctx, KeyInput{Value: key, Label: key}, ValueInput{Value: value})
		if err != nil {
			return nil, err
		}
		result = append(result, *attr)
	}
	return result, nil
}

func emptyInGroup(key string, group []models.RawRow) bool {
	for _, row := range group {
		if row[key] != "" {
			return false
		}
	}
	return true
}

// List returns every attribute with its key and value.
func (r *Registry) List(ctx context.Context) ([]models.Attribute, error) {
	return r.store.List(ctx)
}

// GetByID returns a single attribute.
func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*models.Attribute, error) {
	attrs, err := r.store.GetByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, apperrors.NotFound("ATTRIBUTE_NOT_FOUND", "attribute %s not found", id)
	}
	return &attrs[0], nil
}

// GetByIDs loads the attributes to attach to a product or variant, in the
// order requested. Duplicate or unknown ids are validation errors.
func (r *Registry) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	var duplicates []string
	for _, id := range ids {
		if seen[id] {
			duplicates = append(duplicates, id.String())
		}
		seen[id] = true
	}
	if len(duplicates) > 0 {
		return nil, apperrors.Validation("DUPLICATE_ATTRIBUTE_IDS", "duplicate attribute ids: %s", strings.Join(duplicates, ", "))
	}
	if len(ids) == 0 {
		return []models.Attribute{}, nil
	}

	found, err := r.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Attribute, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}

	result := make([]models.Attribute, 0, len(ids))
	var missing []string
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		result = append(result, a)
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation("ATTRIBUTE_NOT_FOUND", "attributes not found: %s", strings.Join(missing, ", "))
	}
	return result, nil
}
