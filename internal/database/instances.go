package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
)

const instanceColumns = `id, source_path, kind, preset, path, extension, command, mime_type,
	file_size, width, height, duration, bitrate, framerate, created_at`

// SaveInstance inserts a derived instance. Instances are immutable; saving
// an existing ID is an error.
func (d *Database) SaveInstance(ctx context.Context, inst *mediatypes.DerivedInstance) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_instance", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO derived_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inst.ID, inst.SourcePath, string(inst.Kind), inst.Preset, inst.Path, inst.Extension,
		inst.Command, inst.MimeType, inst.FileSize,
		inst.Width, inst.Height, inst.Duration, inst.Bitrate, inst.Framerate,
		inst.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert instance %s: %w", inst.ID, err)
	}
	return nil
}

// ListInstances returns the instances derived from sourcePath, oldest
// first.
func (d *Database) ListInstances(ctx context.Context, sourcePath string) (out []mediatypes.DerivedInstance, err error) {
	start := time.Now()
	defer func() { recordQuery("list_instances", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+instanceColumns+`
		FROM derived_instances
		WHERE source_path = ?
		ORDER BY created_at, id
	`, sourcePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstance(rows *sql.Rows) (mediatypes.DerivedInstance, error) {
	var (
		inst                mediatypes.DerivedInstance
		kind                string
		width, height       sql.NullInt64
		bitrate             sql.NullInt64
		duration, framerate sql.NullFloat64
		created             int64
	)
	err := rows.Scan(
		&inst.ID, &inst.SourcePath, &kind, &inst.Preset, &inst.Path, &inst.Extension,
		&inst.Command, &inst.MimeType, &inst.FileSize,
		&width, &height, &duration, &bitrate, &framerate, &created,
	)
	if err != nil {
		return inst, err
	}

	inst.Kind = mediatypes.InstanceKind(kind)
	inst.CreatedAt = time.UnixMilli(created).UTC()
	if width.Valid {
		inst.Width = mediatypes.Ptr(int(width.Int64))
	}
	if height.Valid {
		inst.Height = mediatypes.Ptr(int(height.Int64))
	}
	if duration.Valid {
		inst.Duration = mediatypes.Ptr(duration.Float64)
	}
	if bitrate.Valid {
		inst.Bitrate = mediatypes.Ptr(bitrate.Int64)
	}
	if framerate.Valid {
		inst.Framerate = mediatypes.Ptr(framerate.Float64)
	}
	return inst, nil
}

// DeleteInstance removes the record with the given ID. The backing file is
// the caller's to remove. A missing ID gives ErrNotFound.
func (d *Database) DeleteInstance(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_instance", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM derived_instances WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetStats counts stored metadata records and instances per kind. It
// satisfies metrics.StatsProvider.
func (d *Database) GetStats(ctx context.Context) (stats metrics.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_metadata").Scan(&stats.TotalMetadata); err != nil {
		return stats, err
	}

	stats.InstancesByKind = map[string]int{
		string(mediatypes.KindThumbnail):       0,
		string(mediatypes.KindTranscodedAudio): 0,
		string(mediatypes.KindTranscodedVideo): 0,
	}
	rows, err := d.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM derived_instances GROUP BY kind")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err = rows.Scan(&kind, &n); err != nil {
			return stats, err
		}
		stats.InstancesByKind[kind] = n
	}
	err = rows.Err()
	return stats, err
}
