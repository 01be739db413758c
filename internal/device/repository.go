package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veluxhome/lumen-core/internal/cloud"
)

// SceneKind distinguishes the two scene cache namespaces.
type SceneKind string

// Scene kinds.
const (
	SceneKindDynamic SceneKind = "dynamic"
	SceneKindDIY     SceneKind = "diy"
)

// Repository defines the persistence interface for directory and scene
// snapshots. The snapshot lets a restart serve device metadata without
// spending cloud quota on rediscovery.
type Repository interface {
	// SaveDirectory replaces the persisted device directory.
	SaveDirectory(ctx context.Context, devices []Device) error

	// LoadDirectory retrieves the persisted device directory.
	// Returns ErrNoSnapshot when no snapshot has been saved.
	LoadDirectory(ctx context.Context) ([]Device, error)

	// SaveScenes replaces the persisted scene list for one device and kind.
	SaveScenes(ctx context.Context, deviceID string, kind SceneKind, scenes []cloud.Scene) error

	// LoadScenes retrieves the persisted scene list for one device and kind.
	// Returns ErrNoSnapshot when that device/kind was never cached.
	LoadScenes(ctx context.Context, deviceID string, kind SceneKind) ([]cloud.Scene, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the schema
// migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveDirectory replaces the persisted device directory in one transaction.
func (r *SQLiteRepository) SaveDirectory(ctx context.Context, devices []Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM devices"); err != nil {
		return fmt.Errorf("clearing devices: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range devices {
		capabilities, err := json.Marshal(devices[i].Capabilities)
		if err != nil {
			return fmt.Errorf("encoding capabilities for %s: %w", devices[i].ID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO devices (id, sku, name, type, is_group, capabilities, saved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			devices[i].ID,
			devices[i].SKU,
			devices[i].Name,
			devices[i].Type,
			devices[i].IsGroup,
			string(capabilities),
			now,
		); err != nil {
			return fmt.Errorf("inserting device %s: %w", devices[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing directory snapshot: %w", err)
	}
	return nil
}

// LoadDirectory retrieves the persisted device directory.
func (r *SQLiteRepository) LoadDirectory(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, type, is_group, capabilities
		FROM devices
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var devices []Device
	for rows.Next() {
		var (
			dev          Device
			capabilities string
		)
		if err := rows.Scan(&dev.ID, &dev.SKU, &dev.Name, &dev.Type, &dev.IsGroup, &capabilities); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		if capabilities != "" {
			if err := json.Unmarshal([]byte(capabilities), &dev.Capabilities); err != nil {
				return nil, fmt.Errorf("decoding capabilities for %s: %w", dev.ID, err)
			}
		}
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, ErrNoSnapshot
	}
	return devices, nil
}

// SaveScenes replaces the persisted scene list for one device and kind.
func (r *SQLiteRepository) SaveScenes(ctx context.Context, deviceID string, kind SceneKind, scenes []cloud.Scene) error {
	data, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("encoding scenes: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO scene_cache (device_id, kind, scenes, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, kind) DO UPDATE SET
			scenes = excluded.scenes,
			saved_at = excluded.saved_at`,
		deviceID,
		string(kind),
		string(data),
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("saving scenes for %s: %w", deviceID, err)
	}
	return nil
}

// LoadScenes retrieves the persisted scene list for one device and kind.
func (r *SQLiteRepository) LoadScenes(ctx context.Context, deviceID string, kind SceneKind) ([]cloud.Scene, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT scenes FROM scene_cache WHERE device_id = ? AND kind = ?",
		deviceID, string(kind),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("querying scenes for %s: %w", deviceID, err)
	}

	var scenes []cloud.Scene
	if err := json.Unmarshal([]byte(data), &scenes); err != nil {
		return nil, fmt.Errorf("decoding scenes for %s: %w", deviceID, err)
	}
	return scenes, nil
}
