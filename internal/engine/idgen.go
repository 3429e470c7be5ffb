package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/roach88/offsync/internal/ir"
)

// IDGenerator produces identifiers for records added with generateID set.
// Implementations must be safe for concurrent use.
type IDGenerator func() ir.ID

// Generator names accepted by GeneratorByName.
const (
	GeneratorUUID   = "uuid"
	GeneratorUUIDv7 = "uuidv7"
	GeneratorULID   = "ulid"
)

// RandomUUID generates a random (version 4) UUID string id. It is the
// default generator.
func RandomUUID() ir.ID {
	return ir.StringID(uuid.NewString())
}

// TimeOrderedUUID generates a time-sortable UUIDv7 string id.
//
// Panics if UUID generation fails (should never happen in practice).
func TimeOrderedUUID() ir.ID {
	return ir.StringID(uuid.Must(uuid.NewV7()).String())
}

// ULID generates a lexicographically sortable ULID string id.
func ULID() ir.ID {
	return ir.StringID(ulid.Make().String())
}

// GeneratorByName resolves a configured generator name. The empty name
// selects RandomUUID.
func GeneratorByName(name string) (IDGenerator, error) {
	switch name {
	case "", GeneratorUUID:
		return RandomUUID, nil
	case GeneratorUUIDv7:
		return TimeOrderedUUID, nil
	case GeneratorULID:
		return ULID, nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", name)
	}
}

// NewFixedGenerator returns a generator yielding ids in order, for
// deterministic tests and golden traces.
//
// The generator panics once all ids are consumed. This is a fail-fast
// approach to catch test misconfiguration.
func NewFixedGenerator(ids ...ir.ID) IDGenerator {
	var (
		mu  sync.Mutex
		idx int
	)
	return func() ir.ID {
		mu.Lock()
		defer mu.Unlock()

		if idx >= len(ids) {
			panic("FixedGenerator: all ids exhausted")
		}
		id := ids[idx]
		idx++
		return id
	}
}
