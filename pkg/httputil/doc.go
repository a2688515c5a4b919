// Package httputil holds the retry loop used by the HTTP repository
// transport.
//
// Transports wrap network failures, 429 and 5xx responses in
// [RetryableError]; anything else, a 404 in particular, ends [Retry] at
// once. Waits grow exponentially from [Policy.BaseDelay] with up to 10%
// jitter, and a server's Retry-After wins when it asks for longer:
//
//	err := httputil.Retry(ctx, httputil.DefaultPolicy, func() error {
//	    return fetch(ctx, url)
//	})
package httputil
