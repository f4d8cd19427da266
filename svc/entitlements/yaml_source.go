package entitlements

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scolago/entitlements/pkg/entitlement"
)

// LoadCatalogFile reads a plan/module catalog from a YAML file.
//
// Expected document shape:
//
//	plans:
//	  - id: plan-gratuit
//	    slug: gratuit
//	    name: Gratuit
//	    rank: 1
//	    status: active
//	modules:
//	  - id: premium-report
//	    slug: premium-report
//	    category_id: reporting
//	    required_plan_rank: 2
func LoadCatalogFile(path string) (*entitlement.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrCatalogUnavailable, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*entitlement.Catalog, error) {
	var catalog entitlement.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Join(ErrParseCatalog, err)
	}
	if len(catalog.Plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	planIDs := make(map[string]struct{}, len(catalog.Plans))
	for _, p := range catalog.Plans {
		if p.ID == "" || p.Rank <= 0 {
			return nil, fmt.Errorf("%w: plan %q must have an id and a positive rank", ErrParseCatalog, p.ID)
		}
		if _, dup := planIDs[p.ID]; dup {
			return nil, fmt.Errorf("%w: plan %q", ErrDuplicateCatalogEntry, p.ID)
		}
		planIDs[p.ID] = struct{}{}
	}

	moduleIDs := make(map[string]struct{}, len(catalog.Modules))
	for _, m := range catalog.Modules {
		if m.ID == "" || m.CategoryID == "" {
			return nil, fmt.Errorf("%w: module %q must have an id and a category", ErrParseCatalog, m.ID)
		}
		if _, dup := moduleIDs[m.ID]; dup {
			return nil, fmt.Errorf("%w: module %q", ErrDuplicateCatalogEntry, m.ID)
		}
		moduleIDs[m.ID] = struct{}{}
	}

	return &catalog, nil
}
