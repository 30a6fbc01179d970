package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Batch operations

// InsertBatch writes a decoded telemetry dump and records it in the
// imports table, all in one transaction. Packages are upserted; every
// other row is appended after the rows of earlier batches from the same
// Source are dropped.
func (s *Store) InsertBatch(ctx context.Context, b *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if b.Source != "" {
		if err := dropSource(ctx, tx, b.Source); err != nil {
			return err
		}
	}

	if b.Device != nil {
		if err := setDevice(ctx, tx, b.Device); err != nil {
			return err
		}
	}

	for _, p := range b.Packages {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO packages (name, label, uid, flags, installed_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.Name, p.Label, p.UID, p.Flags, p.InstalledAt)
		if err != nil {
			return fmt.Errorf("failed to insert package %s: %w", p.Name, classify(err))
		}
	}

	for _, u := range b.Samples {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_samples
			(package, interval, first_time_stamp, last_time_stamp, last_time_used, total_time_in_foreground, import_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, u.Package, int(u.Interval), u.FirstTimeStamp, u.LastTimeStamp, u.LastTimeUsed, u.TotalTimeInForeground, b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert usage sample for %s: %w", u.Package, classify(err))
		}
	}

	for _, e := range b.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_events (package, class_name, event_type, timestamp, import_id)
			VALUES (?, ?, ?, ?, ?)
		`, e.Package, e.ClassName, e.EventType, e.TimeStamp, b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert usage event for %s: %w", e.Package, classify(err))
		}
	}

	for _, st := range b.EventStats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_stats
			(interval, event_type, first_time_stamp, last_time_stamp, total_time, count, import_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, int(st.Interval), st.EventType, st.FirstTimeStamp, st.LastTimeStamp, st.TotalTime, st.Count, b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert event stats for type %d: %w", st.EventType, classify(err))
		}
	}

	for _, bk := range b.Buckets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO network_buckets
			(uid, network_class, start_time_stamp, end_time_stamp, rx_bytes, tx_bytes, import_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, bk.UID, int(bk.NetworkClass), bk.StartTime, bk.EndTime, bk.RxBytes, bk.TxBytes, b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert network bucket for uid %d: %w", bk.UID, classify(err))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, source, checksum, imported_at, row_count)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.Source, b.Checksum, time.Now().UTC().Format(time.RFC3339), b.Rows())
	if err != nil {
		return fmt.Errorf("failed to record import %s: %w", b.Source, classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import %s: %w", b.Source, err)
	}
	return nil
}

// batchTables hold rows tagged with the import that inserted them.
var batchTables = []string{"usage_samples", "usage_events", "event_stats", "network_buckets"}

// dropSource deletes every earlier batch imported from source, so a dump
// rewritten in place replaces its previous contents instead of adding to
// them. Packages and the device profile are upserts and stay.
func dropSource(ctx context.Context, tx *sql.Tx, source string) error {
	for _, table := range batchTables {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM `+table+`
			WHERE import_id IN (SELECT id FROM imports WHERE source = ?)
		`, source)
		if err != nil {
			return fmt.Errorf("failed to drop %s rows of %s: %w", table, source, classify(err))
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE source = ?`, source); err != nil {
		return fmt.Errorf("failed to drop imports of %s: %w", source, classify(err))
	}
	return nil
}

// ImportsFrom returns the IDs of the batches imported from source.
func (s *Store) ImportsFrom(ctx context.Context, source string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM imports WHERE source = ? ORDER BY imported_at`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports of %s: %w", source, classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasImport reports whether a dump with this checksum was already applied.
func (s *Store) HasImport(ctx context.Context, checksum string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM imports WHERE checksum = ?`, checksum).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up import: %w", classify(err))
	}
	return n > 0, nil
}

// ListImports returns applied imports, newest first.
func (s *Store) ListImports(ctx context.Context) ([]*Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, checksum, imported_at, row_count
		FROM imports
		ORDER BY imported_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", classify(err))
	}
	defer rows.Close()

	var imports []*Import
	for rows.Next() {
		var imp Import
		var importedAt string
		if err := rows.Scan(&imp.ID, &imp.Source, &imp.Checksum, &importedAt, &imp.Rows); err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		imp.ImportedAt, err = time.Parse(time.RFC3339, importedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse imported_at for %s: %w", imp.ID, err)
		}
		imports = append(imports, &imp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imports: %w", err)
	}
	return imports, nil
}

// Device operations

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setDevice(ctx context.Context, ex execer, d *Device) error {
	values := map[string]string{}
	if d.APILevel > 0 {
		values["api_level"] = strconv.Itoa(d.APILevel)
	}
	if d.UsageAccess != "" {
		values["usage_access"] = d.UsageAccess
	}
	for key, value := range values {
		_, err := ex.ExecContext(ctx, `INSERT OR REPLACE INTO device (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("failed to set device %s: %w", key, classify(err))
		}
	}
	return nil
}

// SetDevice updates the stored device profile.
func (s *Store) SetDevice(ctx context.Context, d *Device) error {
	return setDevice(ctx, s.db, d)
}

// GetDevice returns the stored device profile. Missing keys are zero.
func (s *Store) GetDevice(ctx context.Context) (*Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM device`)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profile: %w", classify(err))
	}
	defer rows.Close()

	d := &Device{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		switch key {
		case "api_level":
			d.APILevel, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid api_level %q: %w", value, err)
			}
		case "usage_access":
			d.UsageAccess = value
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device profile: %w", err)
	}
	return d, nil
}

// Package operations

// GetPackage retrieves a package by name.
func (s *Store) GetPackage(ctx context.Context, name string) (*Package, error) {
	var p Package
	var label sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT name, label, uid, flags, installed_at
		FROM packages
		WHERE name = ?
	`, name).Scan(&p.Name, &label, &p.UID, &p.Flags, &p.InstalledAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package %s: %w", name, classify(err))
	}
	p.Label = label.String
	return &p, nil
}

// ListPackages returns all packages ordered by name.
func (s *Store) ListPackages(ctx context.Context) ([]*Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, label, uid, flags, installed_at
		FROM packages
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", classify(err))
	}
	defer rows.Close()

	var packages []*Package
	for rows.Next() {
		var p Package
		var label sql.NullString
		if err := rows.Scan(&p.Name, &label, &p.UID, &p.Flags, &p.InstalledAt); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		p.Label = label.String
		packages = append(packages, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}
	return packages, nil
}

// Summary returns row counts and the span of the event log.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"packages", &sum.Packages},
		{"usage_samples", &sum.Samples},
		{"usage_events", &sum.Events},
		{"event_stats", &sum.EventStats},
		{"network_buckets", &sum.Buckets},
		{"imports", &sum.Imports},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, classify(err))
		}
	}

	var first, last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM usage_events`).Scan(&first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to get event span: %w", classify(err))
	}
	sum.FirstEvent = first.Int64
	sum.LastEvent = last.Int64
	return sum, nil
}
