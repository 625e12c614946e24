package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/categories"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryCollectionStore struct {
	collections map[uuid.UUID]*models.Collection
}

func (s *memoryCollectionStore) Create(ctx context.Context, collection *models.Collection) error {
	collection.ID = uuid.New()
	s.collections[collection.ID] = collection
	return nil
}

func (s *memoryCollectionStore) Get(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	c, ok := s.collections[id]
	if !ok {
		return nil, apperrors.NotFound("COLLECTION_NOT_FOUND", "collection %s not found", id)
	}
	return c, nil
}

func TestCollectionsHandler(t *testing.T) {
	categoryStore := &memoryCategoryStore{}
	doors := models.Category{ID: uuid.New(), Name: "Doors", Slug: "doors"}
	categoryStore.categories = append(categoryStore.categories, doors)

	products := new(MockProductStore)
	oak := &models.Product{ID: uuid.New(), Name: "Oak"}
	missing := uuid.New()
	products.On("GetProduct", mock.Anything, oak.ID).Return(oak, nil)
	products.On("GetProduct", mock.Anything, missing).
		Return(nil, apperrors.NotFound("PRODUCT_NOT_FOUND", "product %s not found", missing))

	store := &memoryCollectionStore{collections: make(map[uuid.UUID]*models.Collection)}
	handler := NewCollectionsHandler(store, categories.NewService(categoryStore, testLogger()), products)

	r := setupTestRouter()
	r.POST("/collections", handler.CreateCollection)
	r.GET("/collections/:id", handler.GetCollection)

	w := doJSON(r, http.MethodPost, "/collections", models.CreateCollectionRequest{
		Title:       "Spring",
		CategoryIDs: []uuid.UUID{doors.ID},
		ProductIDs:  []uuid.UUID{oak.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodGet, "/collections/"+created.Data.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.CollectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, "Spring", fetched.Data.Title)
	require.Len(t, fetched.Data.Categories, 1)
	require.Len(t, fetched.Data.Products, 1)
	assert.Equal(t, oak.ID, fetched.Data.Products[0].ID)

	t.Run("unknown product is a bad request", func(t *testing.T) {
		w := doJSON(r, http.MethodPost, "/collections", models.CreateCollectionRequest{
			Title:      "Broken",
			ProductIDs: []uuid.UUID{missing},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PRODUCT_NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("unknown collection", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/collections/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAttributesHandler(t *testing.T) {
	lookup := new(MockAttributeLookup)
	color := models.Attribute{ID: uuid.New()}
	lookup.On("List", mock.Anything).Return([]models.Attribute{color}, nil)
	lookup.On("GetByID", mock.Anything, color.ID).Return(&color, nil)

	handler := NewAttributesHandler(lookup)
	r := setupTestRouter()
	r.GET("/attributes", handler.GetAttributes)
	r.GET("/attributes/:id", handler.GetAttribute)

	w := doJSON(r, http.MethodGet, "/attributes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.AttributeListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)

	w = doJSON(r, http.MethodGet, "/attributes/"+color.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/attributes/bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	lookup.AssertExpectations(t)
}
