package entitlement

// PlanStatus represents whether a plan can currently be subscribed to.
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"
)

// Well-known plan slugs in ascending tier order.
const (
	TierGratuit        = "gratuit"
	TierPremium        = "premium"
	TierPro            = "pro"
	TierInstitutionnel = "institutionnel"
)

// Plan describes a subscription tier. Plans are immutable once created and
// ordered by Rank: a higher rank grants a superset of module access.
type Plan struct {
	ID     string     `json:"id" yaml:"id"`
	Slug   string     `json:"slug" yaml:"slug"`
	Name   string     `json:"name" yaml:"name"`
	Rank   int        `json:"rank" yaml:"rank"`
	Status PlanStatus `json:"status" yaml:"status"`
}

// IsActive reports whether the plan is open for subscription.
func (p Plan) IsActive() bool {
	return p.Status == PlanActive
}

// Allows reports whether the plan's rank satisfies a module's required rank.
func (p Plan) Allows(requiredRank int) bool {
	return p.Rank >= requiredRank
}
