package repo

import (
	"context"
	"database/sql"
	"errors"

	"nmflow/internal/domain"
)

// Repo is the persistence layer. Methods with a Tx suffix run inside a caller
// supplied transaction; the rest read through the pooled connection.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const personCols = `id,uid,email,full_name,fingerprint,status,status_changed,pending,created_at`

func scanPerson(scan func(dest ...any) error) (domain.Person, error) {
	var p domain.Person
	var uid, fpr, pending sql.NullString
	err := scan(&p.ID, &uid, &p.Email, &p.FullName, &fpr, &p.Status, &p.StatusChanged, &pending, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if uid.Valid {
		p.UID = uid.String
	}
	if fpr.Valid {
		p.Fingerprint = fpr.String
	}
	if pending.Valid {
		p.Pending = pending.String
	}
	return p, nil
}

func (r Repo) InsertPersonTx(ctx context.Context, tx *sql.Tx, p domain.Person) (domain.Person, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO persons(uid,email,full_name,fingerprint,status,status_changed,pending,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		nullable(p.UID), p.Email, p.FullName, nullable(p.Fingerprint), p.Status, p.StatusChanged, nullable(p.Pending), p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

func (r Repo) GetPerson(ctx context.Context, id int64) (domain.Person, error) {
	return r.getPerson(ctx, r.DB, id)
}

func (r Repo) GetPersonTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Person, error) {
	return r.getPerson(ctx, tx, id)
}

func (r Repo) getPerson(ctx context.Context, q queryer, id int64) (domain.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personCols+` FROM persons WHERE id=?`, id)
	return scanPerson(row.Scan)
}

// PersonByKey resolves a natural key: email, account uid or key fingerprint.
func (r Repo) PersonByKey(ctx context.Context, key string) (domain.Person, error) {
	return r.personByKey(ctx, r.DB, key)
}

func (r Repo) PersonByKeyTx(ctx context.Context, tx *sql.Tx, key string) (domain.Person, error) {
	return r.personByKey(ctx, tx, key)
}

func (r Repo) personByKey(ctx context.Context, q queryer, key string) (domain.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personCols+` FROM persons WHERE email=? OR uid=? OR fingerprint=? LIMIT 1`, key, key, key)
	return scanPerson(row.Scan)
}

func (r Repo) ListPersons(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+personCols+` FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePersonStatusTx(ctx context.Context, tx *sql.Tx, personID int64, status domain.Status, changed string) error {
	res, err := tx.ExecContext(ctx, `UPDATE persons SET status=?, status_changed=? WHERE id=?`, status, changed, personID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdatePersonFingerprintTx(ctx context.Context, tx *sql.Tx, personID int64, fingerprint string) error {
	res, err := tx.ExecContext(ctx, `UPDATE persons SET fingerprint=? WHERE id=?`, nullable(fingerprint), personID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const amCols = `id,person_id,slots,is_am,is_fd,is_dam,created_at`

func scanAM(scan func(dest ...any) error) (domain.AM, error) {
	var a domain.AM
	err := scan(&a.ID, &a.PersonID, &a.Slots, &a.IsAM, &a.IsFD, &a.IsDAM, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) GetAM(ctx context.Context, id int64) (domain.AM, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+amCols+` FROM ams WHERE id=?`, id)
	return scanAM(row.Scan)
}

func (r Repo) GetAMTx(ctx context.Context, tx *sql.Tx, id int64) (domain.AM, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+amCols+` FROM ams WHERE id=?`, id)
	return scanAM(row.Scan)
}

// AMByPerson returns the AM profile of a person, ErrNotFound if they have none.
func (r Repo) AMByPerson(ctx context.Context, personID int64) (domain.AM, error) {
	return r.amByPerson(ctx, r.DB, personID)
}

func (r Repo) AMByPersonTx(ctx context.Context, tx *sql.Tx, personID int64) (domain.AM, error) {
	return r.amByPerson(ctx, tx, personID)
}

func (r Repo) amByPerson(ctx context.Context, q queryer, personID int64) (domain.AM, error) {
	row := q.QueryRowContext(ctx, `SELECT `+amCols+` FROM ams WHERE person_id=?`, personID)
	return scanAM(row.Scan)
}

// EnsureAMTx returns the person's AM profile, creating one (active, one slot)
// when missing, and re-activating an inactive one.
func (r Repo) EnsureAMTx(ctx context.Context, tx *sql.Tx, personID int64, now string) (domain.AM, error) {
	a, err := r.amByPerson(ctx, tx, personID)
	if errors.Is(err, ErrNotFound) {
		res, err := tx.ExecContext(ctx, `INSERT INTO ams(person_id,slots,is_am,created_at) VALUES (?,1,1,?)`, personID, now)
		if err != nil {
			return domain.AM{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.AM{}, err
		}
		return domain.AM{ID: id, PersonID: personID, Slots: 1, IsAM: true, CreatedAt: now}, nil
	}
	if err != nil {
		return domain.AM{}, err
	}
	if !a.IsAM {
		if _, err := tx.ExecContext(ctx, `UPDATE ams SET is_am=1 WHERE id=?`, a.ID); err != nil {
			return domain.AM{}, err
		}
		a.IsAM = true
	}
	return a, nil
}

func (r Repo) SetAMFlagsTx(ctx context.Context, tx *sql.Tx, amID int64, isAM, isFD, isDAM bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE ams SET is_am=?, is_fd=?, is_dam=? WHERE id=?`, isAM, isFD, isDAM, amID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
