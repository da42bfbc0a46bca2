package catalog

import (
	"fmt"
)

// Category is a node in the category tree. Parent references are plain IDs,
// not live pointers; the tree is an arena keyed by ID.
type Category struct {
	ID       int64
	Name     string
	ParentID int64 // 0 = root
}

// CycleError indicates that a category's parent chain loops back on itself.
type CycleError struct {
	CategoryID int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("category %d introduces a cycle in the category tree", e.CategoryID)
}

// ValidateHierarchy checks that the given categories form a forest: every
// parent reference resolves and no walk up the parent chain revisits a node.
// It must be called before persisting parent changes or bulk inserts.
func ValidateHierarchy(categories []Category) error {
	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	for _, c := range categories {
		seen := map[int64]bool{c.ID: true}
		cur := c.ParentID
		for cur != 0 {
			if seen[cur] {
				return &CycleError{CategoryID: c.ID}
			}
			seen[cur] = true
			parent, ok := byID[cur]
			if !ok {
				return fmt.Errorf("category %d references unknown parent %d", c.ID, cur)
			}
			cur = parent.ParentID
		}
	}
	return nil
}
