// Package ids mints the identifiers for persons, expenses and payment
// requests. Ids are ULIDs, so sorting by id reproduces creation order.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var gen = generator{
	entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
}

// New returns the next identifier. Ids minted by one process are strictly
// increasing, even within the same millisecond.
func New() string {
	gen.mu.Lock()
	defer gen.mu.Unlock()
	return ulid.MustNew(ulid.Now(), gen.entropy).String()
}

// IsValid reports whether s has the shape of an identifier minted by New.
// Handlers use it to reject garbage path segments before touching storage.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
