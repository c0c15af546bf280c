package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/domain/repository"
	"github.com/avierx/tabdeck/internal/logging"
)

// snapshotRepo stores the engine state as one JSON document per storage key
// in a key-value table. Values are written wholesale inside a transaction,
// so a crash can never leave the slot list from one save next to the
// session list from another.
type snapshotRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSnapshotRepository creates a snapshot repository backed by an open
// database connection.
func NewSnapshotRepository(db *sql.DB) repository.SnapshotRepository {
	return &snapshotRepo{db: db, now: time.Now}
}

// Load reads every storage key into a raw snapshot. A missing table row is
// simply an absent key; a row that no longer parses as JSON is dropped with
// a warning rather than failing the whole load.
func (r *snapshotRepo) Load(ctx context.Context) (entity.RawSnapshot, error) {
	log := logging.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM storage`)
	if err != nil {
		return nil, fmt.Errorf("query storage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	raw := entity.RawSnapshot{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan storage row: %w", err)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("storage: dropping unparseable value")
			continue
		}
		raw[key] = decoded
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage rows: %w", err)
	}

	return raw, nil
}

// Save writes the whole snapshot in one transaction, replacing every key.
func (r *snapshotRepo) Save(ctx context.Context, snapshot *entity.StorageSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot cannot be nil")
	}

	values := map[string]any{
		entity.KeySlots:    snapshot.Slots,
		entity.KeySessions: snapshot.Sessions,
		entity.KeyFrecency: snapshot.Frecency,
		entity.KeyVersion:  snapshot.SchemaVersion,
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			if err := r.upsert(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveVersion writes only the schema version tag.
func (r *snapshotRepo) SaveVersion(ctx context.Context, version int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return r.upsert(ctx, tx, entity.KeyVersion, version)
	})
}

func (r *snapshotRepo) upsert(ctx context.Context, tx *sql.Tx, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal storage key %q: %w", key, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(encoded), r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert storage key %q: %w", key, err)
	}
	return nil
}

func (r *snapshotRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	log := logging.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin storage transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			log.Debug().Err(rollbackErr).Msg("storage rollback reported non-terminal error")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit storage transaction: %w", err)
	}
	return nil
}
