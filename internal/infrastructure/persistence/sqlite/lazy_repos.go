package sqlite

import (
	"context"
	"time"

	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/domain/repository"
)

// lazySnapshotRepo defers database initialization until the first storage
// access. The host starts on every browser launch; most launches never send
// a message that needs state.
type lazySnapshotRepo struct {
	db *LazyDB
}

// NewLazySnapshotRepository creates a snapshot repository over a lazy
// database handle.
func NewLazySnapshotRepository(db *LazyDB) repository.SnapshotRepository {
	return &lazySnapshotRepo{db: db}
}

func (r *lazySnapshotRepo) resolve(ctx context.Context) (*snapshotRepo, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	return &snapshotRepo{db: db, now: time.Now}, nil
}

func (r *lazySnapshotRepo) Load(ctx context.Context) (entity.RawSnapshot, error) {
	repo, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Load(ctx)
}

func (r *lazySnapshotRepo) Save(ctx context.Context, snapshot *entity.StorageSnapshot) error {
	repo, err := r.resolve(ctx)
	if err != nil {
		return err
	}
	return repo.Save(ctx, snapshot)
}

func (r *lazySnapshotRepo) SaveVersion(ctx context.Context, version int) error {
	repo, err := r.resolve(ctx)
	if err != nil {
		return err
	}
	return repo.SaveVersion(ctx, version)
}
