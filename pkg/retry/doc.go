// Package retry retries transient failures with exponential backoff
// (github.com/cenkalti/backoff/v4).
//
// Only errors whose type is retryable (network, rate_limit, server_error) are
// attempted again; auth, not_found and parsing errors return immediately.
//
//	r := retry.New(retry.Policy{MaxAttempts: 3, InitialBackoff: time.Second}, log)
//	page, err := retry.Do(ctx, r, func(ctx context.Context) (*graphql.Page, error) {
//		return client.Fetch(ctx, after, 500)
//	})
package retry
