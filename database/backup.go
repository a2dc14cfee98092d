package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	backupTimeFormat = "20060102_150405"
	backupSuffix     = "_spotprice.db.zip"
)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup snapshots the database with VACUUM INTO and stores it zipped in a
// backups directory next to the database file.
func (d *Database) Backup(ctx context.Context) error {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	stamp := d.now().UTC().Format(backupTimeFormat)
	snapshot := filepath.Join(dir, stamp+".tmp")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("could not remove uncompressed snapshot", slog.Any("error", err))
		}
	}()

	archive := filepath.Join(dir, stamp+backupSuffix)
	if err := zipFile(snapshot, archive, filepath.Base(d.path)); err != nil {
		os.Remove(archive)
		return err
	}

	d.logger.Info("database backup complete", slog.String("filename", archive))
	return nil
}

func zipFile(src, dst, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return out.Close()
}

// PurgeBackups deletes backup archives older than retentionDays. Files that
// were not written by Backup are left alone.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := d.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	dir := d.backupDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, e := range entries {
		stamp, ok := strings.CutSuffix(e.Name(), backupSuffix)
		if !ok || e.IsDir() {
			continue
		}
		t, err := time.Parse(backupTimeFormat, stamp)
		if err != nil {
			d.logger.Debug("skipping file with unparsable timestamp", slog.String("filename", e.Name()))
			continue
		}
		if !t.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		removed++
	}

	d.logger.Info("backup purge complete", slog.Int("removed", removed))
	return nil
}
