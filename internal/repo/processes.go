package repo

import (
	"context"
	"database/sql"

	"nmflow/internal/domain"
)

const processCols = `id,person_id,applying_for,started,frozen_by,frozen_time,approved_by,approved_time,closed_by,closed_time,rt_ticket`

func scanProcess(scan func(dest ...any) error) (domain.Process, error) {
	var p domain.Process
	var frozenBy, approvedBy, closedBy sql.NullInt64
	var frozenTime, approvedTime, closedTime sql.NullString
	err := scan(&p.ID, &p.PersonID, &p.ApplyingFor, &p.Started,
		&frozenBy, &frozenTime, &approvedBy, &approvedTime, &closedBy, &closedTime, &p.RTTicket)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if frozenBy.Valid {
		p.FrozenBy = &frozenBy.Int64
	}
	if frozenTime.Valid {
		p.FrozenTime = &frozenTime.String
	}
	if approvedBy.Valid {
		p.ApprovedBy = &approvedBy.Int64
	}
	if approvedTime.Valid {
		p.ApprovedTime = &approvedTime.String
	}
	if closedBy.Valid {
		p.ClosedBy = &closedBy.Int64
	}
	if closedTime.Valid {
		p.ClosedTime = &closedTime.String
	}
	return p, nil
}

func (r Repo) InsertProcessTx(ctx context.Context, tx *sql.Tx, p domain.Process) (domain.Process, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO processes(person_id,applying_for,started,rt_ticket) VALUES (?,?,?,?)`,
		p.PersonID, p.ApplyingFor, p.Started, p.RTTicket)
	if err != nil {
		return p, err
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

func (r Repo) GetProcess(ctx context.Context, id int64) (domain.Process, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+processCols+` FROM processes WHERE id=?`, id)
	return scanProcess(row.Scan)
}

func (r Repo) GetProcessTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Process, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+processCols+` FROM processes WHERE id=?`, id)
	return scanProcess(row.Scan)
}

// HasOpenProcessTx reports whether an open process exists for the pair. Runs in
// the creating transaction so the store's isolation backs the uniqueness check.
func (r Repo) HasOpenProcessTx(ctx context.Context, tx *sql.Tx, personID int64, applyingFor domain.Status) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM processes WHERE person_id=? AND applying_for=? AND closed_time IS NULL LIMIT 1`,
		personID, applyingFor)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// UpdateProcessPhaseTx writes the phase columns and rt ticket.
func (r Repo) UpdateProcessPhaseTx(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	res, err := tx.ExecContext(ctx, `UPDATE processes SET frozen_by=?, frozen_time=?, approved_by=?, approved_time=?, closed_by=?, closed_time=?, rt_ticket=? WHERE id=?`,
		nullableInt64Ptr(p.FrozenBy), nullableStringPtr(p.FrozenTime),
		nullableInt64Ptr(p.ApprovedBy), nullableStringPtr(p.ApprovedTime),
		nullableInt64Ptr(p.ClosedBy), nullableStringPtr(p.ClosedTime),
		p.RTTicket, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ProcessFilters struct {
	PersonID    int64
	ApplyingFor domain.Status
	OpenOnly    bool
	Limit       int
}

func (r Repo) ListProcesses(ctx context.Context, f ProcessFilters) ([]domain.Process, error) {
	query := `SELECT ` + processCols + ` FROM processes WHERE 1=1`
	var args []any
	if f.PersonID != 0 {
		query += ` AND person_id=?`
		args = append(args, f.PersonID)
	}
	if f.ApplyingFor != "" {
		query += ` AND applying_for=?`
		args = append(args, f.ApplyingFor)
	}
	if f.OpenOnly {
		query += ` AND closed_time IS NULL`
	}
	query += ` ORDER BY started DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
