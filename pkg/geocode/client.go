// Package geocode resolves street addresses to coordinates via external
// providers. Two interchangeable strategies implement Resolver: interactive
// (Nominatim, one request per address) and batch (Census Bureau bulk CSV).
// Both normalize provider coordinate ordering to (latitude, longitude).
package geocode

import (
	"context"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// AddressQuery identifies one address to resolve. Key is the stable cache
// key the result is filed under. Freeform, when set, is sent verbatim as the
// search text (used for resort name queries); otherwise the structured
// fields are used.
type AddressQuery struct {
	Key      string
	Freeform string
	Street   string
	City     string
	State    string
	Zip      string
}

// CheckpointFunc receives newly produced records. The caller owns
// persistence: Resolve does not continue past a checkpoint until it returns,
// so an interrupted run loses at most one checkpoint interval of work. A
// checkpoint error aborts the resolve.
type CheckpointFunc func(results map[string]model.GeocodeRecord) error

// Resolver resolves a sequence of addresses. Individual lookup failures are
// recorded as failed records, never returned as errors; only context
// cancellation and checkpoint failures abort.
type Resolver interface {
	Resolve(ctx context.Context, queries []AddressQuery, checkpoint CheckpointFunc) error
}
