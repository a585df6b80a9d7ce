// Package locator resolves the addresses peers depend on through the catalog.
//
// Three kinds of target exist: the message broker pointer, the device
// catalog pointer, and generic services looked up by name. Resolved
// addresses are cached for a staleness window of their own, typically
// longer than the catalog's record timeouts, because the resolved peer's
// registrar is what keeps its catalog entry fresh.
//
//	loc := locator.New(client, locator.Config{TTL: 5 * time.Minute, Retry: policy})
//	addr, ok := loc.ResolveBroker(ctx)
//	if !ok {
//	    // broker unknown for now: skip publishing this round
//	}
package locator
