package entitlements

import "errors"

var (
	// ErrCatalogUnavailable is returned when the plan/module catalog cannot be loaded.
	ErrCatalogUnavailable = errors.New("entitlements: plan catalog unavailable")

	// ErrSubscriptionUnavailable is returned when the initial subscription fetch fails.
	ErrSubscriptionUnavailable = errors.New("entitlements: subscription unavailable")

	// ErrParseCatalog is returned when catalog YAML cannot be decoded.
	ErrParseCatalog = errors.New("entitlements: failed to parse catalog")

	// ErrEmptyCatalog is returned when a catalog holds no plans.
	ErrEmptyCatalog = errors.New("entitlements: catalog has no plans")

	// ErrDuplicateCatalogEntry is returned when a catalog repeats a plan or module ID.
	ErrDuplicateCatalogEntry = errors.New("entitlements: duplicate catalog entry")

	// ErrTenantNotFound is returned when a backend holds no subscription for the tenant.
	ErrTenantNotFound = errors.New("entitlements: tenant not found")
)
