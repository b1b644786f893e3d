// Package registry is the dashboard's HTTP client for the NMOS registry API.
//
// Every call is JSON in and JSON out with optional Bearer authentication.
// Failures carry the registry's own message when it sends one:
//
//	data, err := client.Request(ctx, "/flows/summary", http.MethodGet, token, nil)
//	var apiErr *registry.APIError
//	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
//	    // prompt for login
//	}
//
// Calls pass through a circuit breaker so an unreachable registry fails
// fast instead of stacking timeouts. Only transport errors and 5xx
// responses count against the breaker; a 401 or 404 is a valid answer.
package registry
