// Package entitlements wires the entitlement engine together for one
// tenant: the in-memory store, the multi-level cache, the realtime sync
// channel and the optimistic plan-change coordinator, all fed by a
// Backend implementation that talks to the system of record.
//
// The package also ships a YAML catalog source for the slow-changing
// plan/module catalog and an in-memory Backend used in tests and local
// development.
//
// Typical usage:
//
//	catalog, err := entitlements.LoadCatalogFile("catalog.yaml")
//	backend := entitlements.NewMemoryBackend(catalog)
//
//	svc, err := entitlements.New(ctx, cfg, tenantID, backend)
//	if err != nil {
//	    return err
//	}
//	if err := svc.Start(ctx); err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	if svc.HasModuleAccess(ctx, "premium-report") {
//	    // render the module
//	}
package entitlements
