// Package cases creates and updates case records: guidance-counseling (GC)
// and family-support (FS) service tracking for a profile.
package cases

import (
	"time"
)

// Source draws random integers. *rand.Rand from math/rand/v2 implements it.
type Source interface {
	IntN(n int) int
}

const (
	suffixMin   = 1000
	suffixRange = 9000
)

// NewID returns the four-digit year followed by a random suffix in
// [1000, 9999], e.g. 20251234. Ids repeat within a year, so an insert can
// collide with an existing case.
func NewID(now time.Time, rng Source) int64 {
	return int64(now.Year())*10000 + int64(suffixMin+rng.IntN(suffixRange))
}
