// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// The single factory, New, creates a *slog.Logger configured by Option
// functions: output format (text or json), minimum level, static default
// attributes, and ContextExtractor callbacks that pull attributes out of a
// context value every time Handle runs.
//
// Helper constructors such as Group, Error, TenantID and EventType live in
// attr.go and keep attribute naming consistent across the sync engine.
//
// # Usage
//
//	import "github.com/scolago/entitlements/pkg/logger"
//
//	func main() {
//	    log := logger.New(
//	        logger.WithProduction("entitlements"),
//	        logger.WithContextValue("tenant_id", ctxKeyTenantID),
//	    )
//	    logger.SetAsDefault(log)
//
//	    log.InfoContext(ctx, "plan change confirmed",
//	        logger.PlanID("plan-pro"),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Error Handling
//
// Error and Errors produce attributes only when the supplied error value is
// non-nil, allowing calls like:
//
//	log.Info("sync completed", logger.Error(err))
//
// without an additional nil check.
package logger
