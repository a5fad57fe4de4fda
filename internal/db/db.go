package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// The database lives in a .nmflow/ state directory inside the workspace.
const stateDir = ".nmflow"

type Config struct {
	Workspace string
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir, "nmflow.db")
}

// Open opens the workspace database, creating the state directory when
// missing. Foreign keys are enforced, WAL keeps readers unblocked, and
// writers wait out short lock contention instead of failing.
func Open(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(Path(cfg.Workspace)), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection sidesteps SQLITE_BUSY between pool members.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
