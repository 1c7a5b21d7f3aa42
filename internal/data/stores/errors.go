package stores

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/cadence/internal/core/storeerr"
)

// IsBusyError reports whether err is SQLITE_BUSY or SQLITE_LOCKED, including
// their extended codes.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}
	return false
}

// IsCorruptionError reports whether err indicates an unreadable sqlite file.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database")
}

// IsUniqueViolation reports whether err is a unique or primary key violation
// in either dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports whether err is worth retrying: lock contention, a lost
// connection, or a serialization failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || IsBusyError(err) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection exception
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01":
			return true
		}
	}
	return false
}

// wrapErr annotates err with op, marking it transient where applicable.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return storeerr.Wrap(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RecoverFromCorruption moves a corrupt cadence.db aside, together with its
// WAL and SHM files, so the next Open starts from an empty database.
func RecoverFromCorruption(dataDir string) error {
	dbPath := filepath.Join(dataDir, "cadence.db")
	backupPath := dbPath + ".corrupt." + time.Now().Format("20060102-150405")

	// Orphaned WAL/SHM files would be replayed against the new database.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		src := dbPath + suffix
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := os.Rename(src, backupPath+suffix); err != nil {
			if suffix == "" {
				return fmt.Errorf("failed to back up corrupted database: %w", err)
			}
			if rmErr := os.Remove(src); rmErr != nil {
				return fmt.Errorf("failed to back up or remove %s: %w", filepath.Base(src), err)
			}
		}
	}

	return nil
}
