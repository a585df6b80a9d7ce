package catalogclient

import "errors"

// Sentinel errors for catalog client operations.
//
//	if errors.Is(err, catalogclient.ErrTransport) {
//	    // catalog unreachable, retry later
//	}
var (
	// ErrTransport indicates the request never produced an HTTP response
	// (connection refused, timeout, reset). Callers treat it as transient.
	ErrTransport = errors.New("catalogclient: transport failure")

	// ErrUnexpectedStatus indicates the catalog answered with a status the
	// operation does not expect.
	ErrUnexpectedStatus = errors.New("catalogclient: unexpected status")

	// ErrDecode indicates the response body could not be decoded.
	ErrDecode = errors.New("catalogclient: malformed response")
)
