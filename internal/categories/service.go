package categories

import (
	"context"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

// Store is the flat category table.
type Store interface {
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	store  Store
	logger *logrus.Entry
}

func NewService(store Store, logger *logrus.Entry) *Service {
	return &Service{
		store:  store,
		logger: logger.WithField("component", "categories_service"),
	}
}

func (s *Service) GetAll(ctx context.Context) ([]models.Category, error) {
	return s.store.List(ctx)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.store.GetBySlug(ctx, slug)
}

// Tree returns the whole category forest built from the current table.
func (s *Service) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildForest(all)
}

// Subtree returns the category with the given slug followed by all of its
// descendants in breadth-first order.
func (s *Service) Subtree(ctx context.Context, slug string) ([]models.Category, error) {
	category, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Descendants(*category, all), nil
}

// DescendantsOf is Subtree keyed by id.
func (s *Service) DescendantsOf(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	category, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Descendants(*category, all), nil
}

func (s *Service) Create(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	if req.ParentID != nil {
		if _, err := s.requireParent(ctx, *req.ParentID); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		Slug:             slug.Make(req.Name),
		Name:             req.Name,
		Description:      req.Description,
		ImageURL:         req.ImageURL,
		IsVisible:        true,
		ParentCategoryID: req.ParentID,
	}
	if req.IsVisible != nil {
		category.IsVisible = *req.IsVisible
	}

	if err := s.store.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"category_id": category.ID,
		"slug":        category.Slug,
	}).Info("Category created")
	return category, nil
}

// Update applies the non-nil fields of req. Re-parenting is rejected when the
// new parent lies inside the category's own subtree.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *models.UpdateCategoryRequest) (*models.Category, error) {
	category, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
		category.Slug = slug.Make(*req.Name)
	}
	if req.Description != nil {
		category.Description = req.Description
	}
	if req.ImageURL != nil {
		category.ImageURL = req.ImageURL
	}
	if req.IsVisible != nil {
		category.IsVisible = *req.IsVisible
	}

	switch {
	case req.ClearParent:
		category.ParentCategoryID = nil
	case req.ParentID != nil:
		if _, err := s.requireParent(ctx, *req.ParentID); err != nil {
			return nil, err
		}
		all, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}
		if WouldCycle(id, *req.ParentID, all) {
			return nil, apperrors.Validation("CATEGORY_CYCLE", "category %s cannot be moved under its own subtree", id)
		}
		parentID := *req.ParentID
		category.ParentCategoryID = &parentID
	}

	if err := s.store.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes a leaf category. Categories with children must be emptied first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	if len(children(id, all)) > 0 {
		return apperrors.Conflict("CATEGORY_HAS_CHILDREN", nil, "category %s still has subcategories", id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithField("category_id", id).Info("Category deleted")
	return nil
}

func (s *Service) requireParent(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	parent, err := s.store.GetByID(ctx, id)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return nil, apperrors.Validation("PARENT_CATEGORY_NOT_FOUND", "parent category %s not found", id)
	}
	return parent, err
}
