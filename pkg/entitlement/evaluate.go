package entitlement

// AccessDecision is the derived accessibility of one module for a plan.
// Decisions are disposable: they are regenerated on every plan change and
// never persisted beyond a cache TTL.
type AccessDecision struct {
	ModuleID   string `json:"moduleId"`
	Accessible bool   `json:"accessible"`
}

// CategoryDecision is the derived accessibility of one module category.
type CategoryDecision struct {
	CategoryID string `json:"categoryId"`
	Accessible bool   `json:"accessible"`
}

// Evaluate computes the access decision for every module in the catalog.
// A module is accessible iff the plan's rank meets the module's required
// rank. The function is pure: same inputs always yield the same decisions,
// in catalog order, so it can be called speculatively without risk.
func Evaluate(plan Plan, modules []ModuleDescriptor) []AccessDecision {
	decisions := make([]AccessDecision, len(modules))
	for i, m := range modules {
		decisions[i] = AccessDecision{
			ModuleID:   m.ID,
			Accessible: plan.Allows(m.RequiredPlanRank),
		}
	}
	return decisions
}

// EvaluateCategories computes category accessibility: a category is
// accessible iff at least one of its modules is. Categories appear in
// first-seen catalog order.
func EvaluateCategories(plan Plan, modules []ModuleDescriptor) []CategoryDecision {
	var order []string
	accessible := make(map[string]bool)

	for _, m := range modules {
		if _, seen := accessible[m.CategoryID]; !seen {
			order = append(order, m.CategoryID)
			accessible[m.CategoryID] = false
		}
		if plan.Allows(m.RequiredPlanRank) {
			accessible[m.CategoryID] = true
		}
	}

	decisions := make([]CategoryDecision, len(order))
	for i, id := range order {
		decisions[i] = CategoryDecision{CategoryID: id, Accessible: accessible[id]}
	}
	return decisions
}
