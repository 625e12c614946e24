package handlers

import (
	"context"
	"net/http"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/events"
	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

// ProductStore is the product and variant persistence used by the handlers.
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	UpdateProduct(ctx context.Context, product *models.Product, params []models.Attribute) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateVariant(ctx context.Context, variant *models.ProductVariant) error
	GetVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	UpdateVariant(ctx context.Context, variant *models.ProductVariant, attributes []models.Attribute) error
	DeleteVariant(ctx context.Context, id uuid.UUID) error
}

// AttributeLookup resolves attribute ids sent by API clients.
type AttributeLookup interface {
	List(ctx context.Context) ([]models.Attribute, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attribute, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Attribute, error)
}

type ProductEventPublisher interface {
	PublishProductChanged(ctx context.Context, eventType string, product *models.Product) error
}

// PageLimits bounds the page size of product listings.
type PageLimits struct {
	Default int
	Max     int
}

type ProductsHandler struct {
	products   ProductStore
	categories CategoryService
	attributes AttributeLookup
	events     ProductEventPublisher
	limits     PageLimits
	logger     *logrus.Entry
}

func NewProductsHandler(
	products ProductStore,
	categories CategoryService,
	attributes AttributeLookup,
	publisher ProductEventPublisher,
	limits PageLimits,
	logger *logrus.Entry,
) *ProductsHandler {
	return &ProductsHandler{
		products:   products,
		categories: categories,
		attributes: attributes,
		events:     publisher,
		limits:     limits,
		logger:     logger.WithField("component", "products_handler"),
	}
}

func (h *ProductsHandler) publish(c *gin.Context, eventType string, product *models.Product) {
	if err := h.events.PublishProductChanged(c.Request.Context(), eventType, product); err != nil {
		h.logger.WithError(err).WithField("eventType", eventType).Warn("Failed to publish product event")
	}
}

// requireCategory turns an unknown category into a validation error of the request.
func (h *ProductsHandler) requireCategory(ctx context.Context, id uuid.UUID) error {
	_, err := h.categories.GetByID(ctx, id)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return apperrors.Validation("CATEGORY_NOT_FOUND", "category %s not found", id)
	}
	return err
}

func validatePrices(prices ...*int) error {
	for _, p := range prices {
		if p != nil && *p < 0 {
			return apperrors.Validation("INVALID_PRICE", "prices must not be negative")
		}
	}
	return nil
}

// GetProducts lists products
// @Summary List products
// @Description Paginated product listing. categorySlug includes every subcategory.
// @Tags Products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(12)
// @Param q query string false "Case-insensitive name search"
// @Param categorySlug query string false "Category slug"
// @Success 200 {object} models.ProductListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /products [get]
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", h.limits.Default)
	if limit > h.limits.Max {
		respondValidation(c, "INVALID_LIMIT", "limit must not exceed the maximum page size", "limit")
		return
	}

	filter := models.ProductFilter{
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if categorySlug := c.Query("categorySlug"); categorySlug != "" {
		subtree, err := h.categories.Subtree(c.Request.Context(), categorySlug)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.CategoryIDs = make([]uuid.UUID, 0, len(subtree))
		for _, category := range subtree {
			filter.CategoryIDs = append(filter.CategoryIDs, category.ID)
		}
	}

	products, total, err := h.products.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: models.NewPaginationInfo(page, limit, total),
	})
}

// GetProduct returns a product with its params and variants
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// GetProductBySlug returns a product by slug
// @Tags Products
// @Router /products/slug/{slug} [get]
func (h *ProductsHandler) GetProductBySlug(c *gin.Context) {
	product, err := h.products.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// CreateProduct creates a product
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product data"
// @Success 201 {object} models.ProductResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /products [post]
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	ctx := c.Request.Context()

	if err := h.requireCategory(ctx, req.CategoryID); err != nil {
		respondError(c, err)
		return
	}
	params, err := h.attributes.GetByIDs(ctx, req.ParamIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	product := &models.Product{
		Slug:        slug.Make(req.Name),
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsVisible:   true,
		CategoryID:  req.CategoryID,
		Params:      params,
	}
	if req.IsVisible != nil {
		product.IsVisible = *req.IsVisible
	}
	if err := h.products.CreateProduct(ctx, product); err != nil {
		respondError(c, err)
		return
	}

	created, err := h.products.GetProduct(ctx, product.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.ProductCreated, created)
	c.JSON(http.StatusCreated, models.ProductResponse{Success: true, Data: created})
}

// UpdateProduct updates a product
// @Tags Products
// @Security BearerAuth
// @Router /products/{id} [put]
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	ctx := c.Request.Context()

	product, err := h.products.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
		product.Slug = slug.Make(*req.Name)
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.IsVisible != nil {
		product.IsVisible = *req.IsVisible
	}
	if req.CategoryID != nil {
		if err := h.requireCategory(ctx, *req.CategoryID); err != nil {
			respondError(c, err)
			return
		}
		product.CategoryID = *req.CategoryID
		product.Category = nil
	}

	var params []models.Attribute
	if req.ParamIDs != nil {
		if params, err = h.attributes.GetByIDs(ctx, req.ParamIDs); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.products.UpdateProduct(ctx, product, params); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.products.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.ProductUpdated, updated)
	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: updated})
}

// DeleteProduct deletes a product and its variants
// @Tags Products
// @Security BearerAuth
// @Router /products/{id} [delete]
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	product, err := h.products.GetProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.products.DeleteProduct(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.ProductDeleted, product)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Product deleted successfully"})
}

// GetProductVariants lists the variants of a product
// @Tags Variants
// @Router /products/{id}/variants [get]
func (h *ProductsHandler) GetProductVariants(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.products.GetProduct(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	variants, err := h.products.ListVariants(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductVariantListResponse{Success: true, Data: variants})
}

// CreateProductVariant adds a variant to a product
// @Tags Variants
// @Param variant body models.CreateProductVariantRequest true "Variant data"
// @Security BearerAuth
// @Router /products/{id}/variants [post]
func (h *ProductsHandler) CreateProductVariant(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.CreateProductVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	ctx := c.Request.Context()

	if err := validatePrices(req.Price, req.DiscountPrice); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.products.GetProduct(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	attrs, err := h.attributes.GetByIDs(ctx, req.AttributeIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	variant := &models.ProductVariant{
		ProductID:     id,
		ImageURL:      req.ImageURL,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Attributes:    attrs,
	}
	if err := h.products.CreateVariant(ctx, variant); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.ProductVariantResponse{Success: true, Data: variant})
}

// GetVariant returns a variant
// @Tags Variants
// @Router /variants/{id} [get]
func (h *ProductsHandler) GetVariant(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	variant, err := h.products.GetVariant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductVariantResponse{Success: true, Data: variant})
}

// UpdateVariant updates a variant
// @Tags Variants
// @Security BearerAuth
// @Router /variants/{id} [put]
func (h *ProductsHandler) UpdateVariant(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}
	ctx := c.Request.Context()

	if err := validatePrices(req.Price, req.DiscountPrice); err != nil {
		respondError(c, err)
		return
	}
	variant, err := h.products.GetVariant(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.ImageURL != nil {
		variant.ImageURL = *req.ImageURL
	}
	if req.Price != nil {
		variant.Price = req.Price
	}
	if req.DiscountPrice != nil {
		variant.DiscountPrice = req.DiscountPrice
	}

	var attrs []models.Attribute
	if req.AttributeIDs != nil {
		if attrs, err = h.attributes.GetByIDs(ctx, req.AttributeIDs); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := h.products.UpdateVariant(ctx, variant, attrs); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.products.GetVariant(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProductVariantResponse{Success: true, Data: updated})
}

// DeleteVariant deletes a variant
// @Tags Variants
// @Security BearerAuth
// @Router /variants/{id} [delete]
func (h *ProductsHandler) DeleteVariant(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.products.DeleteVariant(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Variant deleted successfully"})
}
