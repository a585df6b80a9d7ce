// Package retry runs an operation under a bounded, fixed-delay retry budget.
//
// Peers use it for every call to the catalog: the registrar gives each of
// its states its own budget, and the locator gives each lookup one.
//
//	err := retry.Do(ctx, policy, func(ctx context.Context) error {
//		resp, err := client.Get(ctx, "service", "name", "influx_adaptor")
//		if err != nil {
//			return err // transient, try again
//		}
//		if resp.StatusCode == http.StatusNotFound {
//			return retry.Permanent(errNotRegistered)
//		}
//		return nil
//	})
//
// Attempts are driven by github.com/cenkalti/backoff/v5 with a constant
// back-off; the wait between attempts ends early when ctx is done.
package retry
