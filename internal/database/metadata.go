package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-pipeline/internal/mediatypes"
)

// SaveMetadata stores the metadata record of sourcePath, replacing any
// previous one.
func (d *Database) SaveMetadata(ctx context.Context, sourcePath string, md *mediatypes.MediaMetadata) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_metadata", start, err) }()

	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var captureTime sql.NullInt64
	if t := md.EffectiveTime(); t != nil {
		captureTime = sql.NullInt64{Int64: t.Unix(), Valid: true}
	}
	var md5 sql.NullString
	if md.MD5 != "" {
		md5 = sql.NullString{String: md.MD5, Valid: true}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO media_metadata (source_path, type, mime_type, file_size, mod_time, capture_time, md5, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(source_path) DO UPDATE SET
			type = excluded.type,
			mime_type = excluded.mime_type,
			file_size = excluded.file_size,
			mod_time = excluded.mod_time,
			capture_time = excluded.capture_time,
			md5 = excluded.md5,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, sourcePath, string(md.Type), md.MimeType, md.FileSize, md.ModTime.Unix(), captureTime, md5, string(data))
	return err
}

// GetMetadata returns the stored metadata record of sourcePath, or
// ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, sourcePath string) (md *mediatypes.MediaMetadata, err error) {
	start := time.Now()
	defer func() { recordQuery("get_metadata", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data string
	err = d.db.QueryRowContext(ctx, "SELECT data FROM media_metadata WHERE source_path = ?", sourcePath).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metadata for %s: %w", sourcePath, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	md = &mediatypes.MediaMetadata{}
	if err := json.Unmarshal([]byte(data), md); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", sourcePath, err)
	}
	return md, nil
}
