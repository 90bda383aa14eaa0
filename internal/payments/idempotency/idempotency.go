// Package idempotency stores serialized operation responses keyed by the
// client-supplied idempotency key, plus short-lived claim markers that let
// concurrent attempts on the same fresh key elect a single winner.
package idempotency

import "time"

const (
	// KeyPrefix namespaces cached responses in the shared store.
	KeyPrefix = "idempotency:"

	// ClaimSuffix distinguishes a claim marker from the cached response.
	ClaimSuffix = ":claim"

	// ResponseTTL is how long a completed response replays.
	ResponseTTL = 24 * time.Hour

	// ClaimTTL bounds how long a winner may hold a claim before losers give
	// up waiting and attempt themselves.
	ClaimTTL = 30 * time.Second
)

func responseKey(key string) string { return KeyPrefix + key }
func claimKey(key string) string    { return KeyPrefix + key + ClaimSuffix }
