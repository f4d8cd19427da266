package entitlement

import "slices"

// ModuleDescriptor is a catalog entry for one feature module. The catalog is
// static or slow-changing; it is loaded once and cached long-lived.
type ModuleDescriptor struct {
	ID               string `json:"id" yaml:"id"`
	Slug             string `json:"slug" yaml:"slug"`
	CategoryID       string `json:"categoryId" yaml:"category_id"`
	RequiredPlanRank int    `json:"requiredPlanRank" yaml:"required_plan_rank"`
}

// Catalog holds the full set of plans and feature modules.
type Catalog struct {
	Plans   []Plan             `json:"plans" yaml:"plans"`
	Modules []ModuleDescriptor `json:"modules" yaml:"modules"`
}

// PlanByID returns the plan with the given ID.
func (c *Catalog) PlanByID(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanBySlug returns the plan with the given tier slug.
func (c *Catalog) PlanBySlug(slug string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.Slug == slug {
			return p, true
		}
	}
	return Plan{}, false
}

// Module returns the module descriptor with the given ID.
func (c *Catalog) Module(id string) (ModuleDescriptor, bool) {
	for _, m := range c.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return ModuleDescriptor{}, false
}

// ModulesInCategory returns all modules belonging to a category, in catalog order.
func (c *Catalog) ModulesInCategory(categoryID string) []ModuleDescriptor {
	var out []ModuleDescriptor
	for _, m := range c.Modules {
		if m.CategoryID == categoryID {
			out = append(out, m)
		}
	}
	return out
}

// CategoryIDs returns the distinct category IDs in first-seen catalog order.
func (c *Catalog) CategoryIDs() []string {
	var out []string
	for _, m := range c.Modules {
		if !slices.Contains(out, m.CategoryID) {
			out = append(out, m.CategoryID)
		}
	}
	return out
}

// clone returns a deep copy so catalog swaps never race with readers.
func (c *Catalog) clone() *Catalog {
	if c == nil {
		return nil
	}
	return &Catalog{
		Plans:   slices.Clone(c.Plans),
		Modules: slices.Clone(c.Modules),
	}
}
