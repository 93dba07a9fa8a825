package catengine

import "github.com/yourusername/cat-engine/internal/domain/entity"

// ContentController enforces per-category quotas
type ContentController struct{}

// NewContentController creates a content controller
func NewContentController() *ContentController {
	return &ContentController{}
}

// Evaluate reports whether one more item of the category may be administered
// and the weight adjustment for it. Categories without a constraint are
// always allowed with adjustment 1; a MaxItems of 0 rejects every item of
// the category.
func (c *ContentController) Evaluate(category string, counts map[string]int, constraints map[string]entity.ContentConstraint) (bool, float64) {
	cc, ok := constraints[category]
	if !ok {
		return true, 1
	}
	n := counts[category]
	if !cc.Allows(n) {
		return false, 0
	}
	if n < cc.MinItems {
		return true, 1 + cc.Weight
	}
	return true, 1
}

// Filter keeps the candidates whose category is still allowed and returns
// their adjustments.
func (c *ContentController) Filter(candidates []string, in SelectionInput) ([]string, map[string]float64) {
	kept := make([]string, 0, len(candidates))
	adj := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		allowed, a := c.Evaluate(categoryOf(in.Categories, id), in.CategoryCounts, in.Config.ContentConstraints)
		if !allowed {
			continue
		}
		kept = append(kept, id)
		adj[id] = a
	}
	return kept, adj
}

func categoryOf(categories map[string]string, itemID string) string {
	if c, ok := categories[itemID]; ok && c != "" {
		return c
	}
	return entity.DefaultCategory
}
