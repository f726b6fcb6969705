// Package sqlite owns the local trace archive database: a connection
// factory tuned for a single-process write-mostly workload, plus embedded
// schema migrations. The driver is modernc.org/sqlite, pure Go, so the
// binary stays CGO-free.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// connPragmas are applied per-connection via DSN parameters. WAL lets trace
// reads proceed while an archive insert is in flight; the busy timeout
// absorbs writer contention instead of surfacing SQLITE_BUSY.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"cache_size(-64000)",
	"temp_store(MEMORY)",
}

// NewDB opens (or creates) the archive database at path. The parent
// directory must already exist; pass ":memory:" for throwaway databases.
func NewDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("sqlite.NewDB: parent directory %q does not exist", dir)
		}
	}

	dsn := path + "?_pragma=" + strings.Join(connPragmas, "&_pragma=")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewDB: open %q: %w", path, err)
	}

	// SQLite serializes writers itself; multiple connections only help reads.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.NewDB: ping %q: %w", path, err)
	}

	return db, nil
}
