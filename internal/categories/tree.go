// Package categories builds and queries the category hierarchy. Trees are
// derived from a flat snapshot on every call and never cached.
package categories

import (
	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/google/uuid"
)

// BuildForest returns one tree per root category. Roots keep their input
// order, and so do the children of each node. The snapshot is validated
// first: duplicate ids, parents missing from the snapshot and parent cycles
// are rejected.
//
// Children are found by scanning the whole snapshot for every node, which is
// quadratic in the number of categories.
func BuildForest(categories []models.Category) ([]*models.CategoryNode, error) {
	if err := Validate(categories); err != nil {
		return nil, err
	}

	forest := make([]*models.CategoryNode, 0)
	for _, c := range categories {
		if c.ParentCategoryID == nil {
			forest = append(forest, buildNode(c, categories))
		}
	}
	return forest, nil
}

func buildNode(c models.Category, all []models.Category) *models.CategoryNode {
	node := &models.CategoryNode{Category: c, Children: make([]*models.CategoryNode, 0)}
	for _, child := range children(c.ID, all) {
		node.Children = append(node.Children, buildNode(child, all))
	}
	return node
}

// Descendants returns the category followed by everything below it in
// breadth-first order. Each category appears once, so the walk ends even if
// the snapshot contains a cycle.
func Descendants(category models.Category, all []models.Category) []models.Category {
	result := []models.Category{category}
	visited := map[uuid.UUID]bool{category.ID: true}

	queue := children(category.ID, all)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next.ID] {
			continue
		}
		visited[next.ID] = true
		result = append(result, next)
		queue = append(queue, children(next.ID, all)...)
	}
	return result
}

// DescendantIDs is Descendants reduced to ids, for set-membership filters.
func DescendantIDs(category models.Category, all []models.Category) []uuid.UUID {
	desc := Descendants(category, all)
	ids := make([]uuid.UUID, len(desc))
	for i, c := range desc {
		ids[i] = c.ID
	}
	return ids
}

func children(parentID uuid.UUID, all []models.Category) []models.Category {
	var out []models.Category
	for _, c := range all {
		if c.ParentCategoryID != nil && *c.ParentCategoryID == parentID {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that the snapshot forms a forest.
func Validate(categories []models.Category) error {
	parentOf := make(map[uuid.UUID]*uuid.UUID, len(categories))
	for _, c := range categories {
		if _, dup := parentOf[c.ID]; dup {
			return apperrors.Validation("DUPLICATE_CATEGORY", "category %s appears more than once", c.ID)
		}
		parentOf[c.ID] = c.ParentCategoryID
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[uuid.UUID]int, len(categories))

	for _, c := range categories {
		var path []uuid.UUID
		id := c.ID
		for state[id] == unvisited {
			state[id] = inProgress
			path = append(path, id)
			parent := parentOf[id]
			if parent == nil {
				break
			}
			if _, ok := parentOf[*parent]; !ok {
				return apperrors.Validation("CATEGORY_PARENT_MISSING", "category %s references missing parent %s", id, *parent)
			}
			id = *parent
		}
		if state[id] == inProgress && parentOf[id] != nil {
			return apperrors.Validation("CATEGORY_CYCLE", "category %s is part of a parent cycle", id)
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}

// WouldCycle reports whether making parentID the parent of id creates a cycle.
func WouldCycle(id, parentID uuid.UUID, all []models.Category) bool {
	if id == parentID {
		return true
	}
	for _, c := range Descendants(models.Category{ID: id}, all) {
		if c.ID == parentID {
			return true
		}
	}
	return false
}
