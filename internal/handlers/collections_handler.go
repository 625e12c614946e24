package handlers

import (
	"context"
	"net/http"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CollectionStore interface {
	Create(ctx context.Context, collection *models.Collection) error
	Get(ctx context.Context, id uuid.UUID) (*models.Collection, error)
}

type CollectionsHandler struct {
	collections CollectionStore
	categories  CategoryService
	products    ProductStore
}

func NewCollectionsHandler(collections CollectionStore, categories CategoryService, products ProductStore) *CollectionsHandler {
	return &CollectionsHandler{
		collections: collections,
		categories:  categories,
		products:    products,
	}
}

// GetCollection returns a collection with its categories and products
// @Tags Collections
// @Produce json
// @Success 200 {object} models.CollectionResponse
// @Router /collections/{id} [get]
func (h *CollectionsHandler) GetCollection(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	collection, err := h.collections.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CollectionResponse{Success: true, Data: collection})
}

// CreateCollection creates a collection from existing categories and products
// @Tags Collections
// @Param collection body models.CreateCollectionRequest true "Collection data"
// @Security BearerAuth
// @Router /collections [post]
func (h *CollectionsHandler) CreateCollection(c *gin.Context) {
	var req models.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	ctx := c.Request.Context()

	collection := &models.Collection{Title: req.Title}
	for _, id := range req.CategoryIDs {
		category, err := h.categories.GetByID(ctx, id)
		if err != nil {
			respondError(c, asReference(err, "CATEGORY_NOT_FOUND", "category", id))
			return
		}
		collection.Categories = append(collection.Categories, *category)
	}
	for _, id := range req.ProductIDs {
		product, err := h.products.GetProduct(ctx, id)
		if err != nil {
			respondError(c, asReference(err, "PRODUCT_NOT_FOUND", "product", id))
			return
		}
		collection.Products = append(collection.Products, *product)
	}

	if err := h.collections.Create(ctx, collection); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.CollectionResponse{Success: true, Data: collection})
}

// asReference reports a missing referenced record as a bad request.
func asReference(err error, code, what string, id uuid.UUID) error {
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return apperrors.Validation(code, "%s %s not found", what, id)
	}
	return err
}
