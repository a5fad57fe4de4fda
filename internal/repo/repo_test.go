package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"nmflow/internal/db"
	"nmflow/internal/domain"
	"nmflow/internal/migrate"
	"nmflow/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func inTx(t *testing.T, r repo.Repo, ctx context.Context, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func seedPerson(t *testing.T, r repo.Repo, ctx context.Context, email string) domain.Person {
	t.Helper()
	var p domain.Person
	err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		var err error
		p, err = r.InsertPersonTx(ctx, tx, domain.Person{
			Email: email, FullName: "Test", Status: domain.StatusDC,
			StatusChanged: "2024-01-01T00:00:00Z", CreatedAt: "2024-01-01T00:00:00Z",
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	return p
}

func seedProcess(t *testing.T, r repo.Repo, ctx context.Context, personID int64, applyingFor domain.Status) domain.Process {
	t.Helper()
	var proc domain.Process
	err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		var err error
		proc, err = r.InsertProcessTx(ctx, tx, domain.Process{
			PersonID: personID, ApplyingFor: applyingFor, Started: "2024-01-01T00:00:00Z",
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed process: %v", err)
	}
	return proc
}

func TestOpenProcessUniqueIndex(t *testing.T) {
	r, ctx := newRepo(t)
	p := seedPerson(t, r, ctx, "uniq@example.org")
	seedProcess(t, r, ctx, p.ID, domain.StatusDM)

	// a second open process for the same pair violates the partial index
	err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		_, err := r.InsertProcessTx(ctx, tx, domain.Process{
			PersonID: p.ID, ApplyingFor: domain.StatusDM, Started: "2024-01-02T00:00:00Z",
		})
		return err
	})
	if err == nil {
		t.Fatal("expected unique constraint violation")
	}

	// a different target status is fine
	seedProcess(t, r, ctx, p.ID, domain.StatusDCGA)
}

func TestCurrentAssignmentUniqueIndex(t *testing.T) {
	r, ctx := newRepo(t)
	p := seedPerson(t, r, ctx, "asr@example.org")
	amP := seedPerson(t, r, ctx, "am@example.org")
	proc := seedProcess(t, r, ctx, p.ID, domain.StatusDDU)

	var am domain.AM
	if err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		var err error
		am, err = r.EnsureAMTx(ctx, tx, amP.ID, "2024-01-01T00:00:00Z")
		return err
	}); err != nil {
		t.Fatalf("ensure am: %v", err)
	}

	insert := func() error {
		return inTx(t, r, ctx, func(tx *sql.Tx) error {
			_, err := r.InsertAssignmentTx(ctx, tx, domain.AMAssignment{
				ProcessID: proc.ID, AMID: am.ID, AssignedBy: amP.ID, AssignedTime: "2024-01-01T00:00:00Z",
			})
			return err
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	if err := insert(); err == nil {
		t.Fatal("two current assignments for one process should be impossible")
	}

	cur, err := r.CurrentAssignment(ctx, proc.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		return r.CloseAssignmentTx(ctx, tx, cur.ID, amP.ID, "2024-01-05T00:00:00Z")
	}); err != nil {
		t.Fatalf("close: %v", err)
	}
	// after closing, a new assignment slots in
	if err := insert(); err != nil {
		t.Fatalf("reassign after close: %v", err)
	}

	last, err := r.LastAssignment(ctx, proc.ID)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if !last.Current() {
		t.Fatal("last assignment should be the new current one")
	}
}

func TestLogOrdering(t *testing.T) {
	r, ctx := newRepo(t)
	p := seedPerson(t, r, ctx, "log@example.org")
	proc := seedProcess(t, r, ctx, p.ID, domain.StatusDM)

	times := []string{
		"2024-01-03T00:00:00Z",
		"2024-01-01T00:00:00Z",
		"2024-01-02T00:00:00Z",
	}
	for _, ts := range times {
		if err := inTx(t, r, ctx, func(tx *sql.Tx) error {
			_, err := r.AppendLogTx(ctx, tx, domain.Log{
				ProcessID: &proc.ID, ChangedBy: p.ID, IsPublic: true,
				Action: domain.ActionProcCreate, Logdate: ts,
			})
			return err
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	logs, err := r.LogsByProcess(ctx, proc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d entries", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i-1].Logdate > logs[i].Logdate {
			t.Fatalf("log not ordered by logdate: %v", logs)
		}
	}

	prev, err := r.PreviousLog(ctx, logs[2])
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if prev.Logdate != logs[1].Logdate {
		t.Fatalf("previous = %s, want %s", prev.Logdate, logs[1].Logdate)
	}
	if _, err := r.PreviousLog(ctx, logs[0]); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("first entry should have no predecessor, got %v", err)
	}

	n, err := r.CountLogs(ctx, proc.ID)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestPersonByKey(t *testing.T) {
	r, ctx := newRepo(t)
	var p domain.Person
	if err := inTx(t, r, ctx, func(tx *sql.Tx) error {
		var err error
		p, err = r.InsertPersonTx(ctx, tx, domain.Person{
			UID: "akey", Email: "akey@example.org", FullName: "A Key",
			Fingerprint: "0123456789ABCDEF0123456789ABCDEF01234567",
			Status:      domain.StatusDC,
			StatusChanged: "2024-01-01T00:00:00Z", CreatedAt: "2024-01-01T00:00:00Z",
		})
		return err
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, key := range []string{"akey", "akey@example.org", "0123456789ABCDEF0123456789ABCDEF01234567"} {
		got, err := r.PersonByKey(ctx, key)
		if err != nil {
			t.Fatalf("by %q: %v", key, err)
		}
		if got.ID != p.ID {
			t.Fatalf("by %q: got id %d", key, got.ID)
		}
	}
	if _, err := r.PersonByKey(ctx, "nobody"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
