// Package catalogclient is the HTTP client peers use to talk to the catalog.
//
// Every call is bounded by a per-request timeout. Calls that reach the
// catalog return a Response carrying the status code, so callers can react
// to 201/200/400/404 themselves; calls that never get an answer return an
// error wrapping ErrTransport.
//
//	client, err := catalogclient.New(catalogclient.Config{BaseURL: "http://catalog:8080"})
//	resp, err := client.Create(ctx, catalog.Services, doc)
//	if err == nil && resp.StatusCode == http.StatusBadRequest {
//	    // already registered, try Update
//	}
package catalogclient
