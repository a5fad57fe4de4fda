package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog"
)

// Schema files live under sql/ as NNNN_description.sql. The applied version
// is kept in SQLite's user_version pragma, so the schema carries no
// bookkeeping table of its own.

//go:embed sql/*.sql
var schemaFS embed.FS

type step struct {
	version int
	name    string
	ddl     string
}

func steps() ([]step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	out := make([]step, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("migration %s: no numeric prefix: %w", e.Name(), err)
		}
		ddl, err := schemaFS.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, step{version: v, name: e.Name(), ddl: string(ddl)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Version reports the schema version currently applied to the database.
func Version(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

// Migrate brings the database up to the latest embedded schema. Each pending
// step runs in its own transaction and bumps user_version on success, so an
// interrupted run resumes where it stopped.
func Migrate(db *sql.DB, log zerolog.Logger) error {
	all, err := steps()
	if err != nil {
		return err
	}
	current, err := Version(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, s := range all {
		if s.version <= current {
			continue
		}
		if err := apply(db, s); err != nil {
			return fmt.Errorf("migration %s: %w", s.name, err)
		}
		log.Info().Str("migration", s.name).Int("version", s.version).Msg("schema migrated")
		current = s.version
	}
	return nil
}

func apply(db *sql.DB, s step) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(s.ddl); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", s.version)); err != nil {
		return err
	}
	return tx.Commit()
}
