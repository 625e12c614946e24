package handlers

import (
	"context"
	"net/http"

	"catalog-service/internal/events"
	"catalog-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CategoryService is the category tree behind the categories endpoints.
type CategoryService interface {
	GetAll(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	Tree(ctx context.Context) ([]*models.CategoryNode, error)
	Subtree(ctx context.Context, slug string) ([]models.Category, error)
	DescendantsOf(ctx context.Context, id uuid.UUID) ([]models.Category, error)
	Create(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CategoryEventPublisher interface {
	PublishCategoryChanged(ctx context.Context, eventType string, category *models.Category) error
}

type CategoriesHandler struct {
	service CategoryService
	events  CategoryEventPublisher
	logger  *logrus.Entry
}

func NewCategoriesHandler(service CategoryService, publisher CategoryEventPublisher, logger *logrus.Entry) *CategoriesHandler {
	return &CategoriesHandler{
		service: service,
		events:  publisher,
		logger:  logger.WithField("component", "categories_handler"),
	}
}

func (h *CategoriesHandler) publish(c *gin.Context, eventType string, category *models.Category) {
	if err := h.events.PublishCategoryChanged(c.Request.Context(), eventType, category); err != nil {
		h.logger.WithError(err).WithField("eventType", eventType).Warn("Failed to publish category event")
	}
}

// GetCategories lists every category
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {object} models.CategoryListResponse
// @Router /categories [get]
func (h *CategoriesHandler) GetCategories(c *gin.Context) {
	categories, err := h.service.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryListResponse{Success: true, Data: categories})
}

// GetCategoryTree returns the category forest
// @Summary Category tree
// @Tags categories
// @Produce json
// @Success 200 {object} models.CategoryTreeResponse
// @Router /categories/tree [get]
func (h *CategoriesHandler) GetCategoryTree(c *gin.Context) {
	tree, err := h.service.Tree(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryTreeResponse{Success: true, Data: tree})
}

// GetCategory returns a category by id
// @Router /categories/{id} [get]
func (h *CategoriesHandler) GetCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	category, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryResponse{Success: true, Data: category})
}

// GetCategoryBySlug returns a category by slug
// @Router /categories/slug/{slug} [get]
func (h *CategoriesHandler) GetCategoryBySlug(c *gin.Context) {
	category, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryResponse{Success: true, Data: category})
}

// GetDescendants returns the category and its whole subtree, breadth first
// @Router /categories/{id}/descendants [get]
func (h *CategoriesHandler) GetDescendants(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	categories, err := h.service.DescendantsOf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.CategoryListResponse{Success: true, Data: categories})
}

// CreateCategory creates a category
// @Summary Create category
// @Tags categories
// @Accept json
// @Produce json
// @Param category body models.CreateCategoryRequest true "Category"
// @Success 201 {object} models.CategoryResponse
// @Security BearerAuth
// @Router /categories [post]
func (h *CategoriesHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}

	category, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.CategoryCreated, category)
	c.JSON(http.StatusCreated, models.CategoryResponse{Success: true, Data: category})
}

// UpdateCategory updates a category
// @Security BearerAuth
// @Router /categories/{id} [put]
func (h *CategoriesHandler) UpdateCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "VALIDATION_ERROR", err.Error(), "")
		return
	}

	category, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.CategoryUpdated, category)
	c.JSON(http.StatusOK, models.CategoryResponse{Success: true, Data: category})
}

// DeleteCategory deletes a leaf category
// @Security BearerAuth
// @Router /categories/{id} [delete]
func (h *CategoriesHandler) DeleteCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.publish(c, events.CategoryDeleted, &models.Category{ID: id})
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Category deleted successfully"})
}
