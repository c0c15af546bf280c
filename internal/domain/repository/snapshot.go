// Package repository declares persistence interfaces owned by the domain.
package repository

import (
	"context"

	"github.com/avierx/tabdeck/internal/domain/entity"
)

// SnapshotRepository persists the engine's full state. Each storage key is
// written wholesale on every save; there are no partial-field updates.
type SnapshotRepository interface {
	// Load reads the raw persisted state. A missing or empty store returns
	// an empty RawSnapshot, not an error.
	Load(ctx context.Context) (entity.RawSnapshot, error)

	// Save writes the whole snapshot back, replacing every key.
	Save(ctx context.Context, snapshot *entity.StorageSnapshot) error

	// SaveVersion writes only the schema version tag. Called once after
	// migration even when the data itself was already normal.
	SaveVersion(ctx context.Context, version int) error
}
