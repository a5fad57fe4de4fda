package repo

import (
	"context"
	"database/sql"

	"nmflow/internal/domain"
)

const assignmentCols = `id,process_id,am_id,paused,assigned_by,assigned_time,unassigned_by,unassigned_time`

func scanAssignment(scan func(dest ...any) error) (domain.AMAssignment, error) {
	var a domain.AMAssignment
	var unassignedBy sql.NullInt64
	var unassignedTime sql.NullString
	err := scan(&a.ID, &a.ProcessID, &a.AMID, &a.Paused, &a.AssignedBy, &a.AssignedTime, &unassignedBy, &unassignedTime)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if unassignedBy.Valid {
		a.UnassignedBy = &unassignedBy.Int64
	}
	if unassignedTime.Valid {
		a.UnassignedTime = &unassignedTime.String
	}
	return a, nil
}

func (r Repo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, a domain.AMAssignment) (domain.AMAssignment, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO am_assignments(process_id,am_id,paused,assigned_by,assigned_time) VALUES (?,?,?,?,?)`,
		a.ProcessID, a.AMID, a.Paused, a.AssignedBy, a.AssignedTime)
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

func (r Repo) GetAssignment(ctx context.Context, id int64) (domain.AMAssignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, id int64) (domain.AMAssignment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

// CurrentAssignment returns the assignment with a null unassigned time.
func (r Repo) CurrentAssignment(ctx context.Context, processID int64) (domain.AMAssignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE process_id=? AND unassigned_time IS NULL`, processID)
	return scanAssignment(row.Scan)
}

func (r Repo) CurrentAssignmentTx(ctx context.Context, tx *sql.Tx, processID int64) (domain.AMAssignment, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE process_id=? AND unassigned_time IS NULL`, processID)
	return scanAssignment(row.Scan)
}

// LastAssignment returns the current assignment or, failing that, the most
// recently unassigned one.
func (r Repo) LastAssignment(ctx context.Context, processID int64) (domain.AMAssignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE process_id=?
ORDER BY (unassigned_time IS NULL) DESC, unassigned_time DESC, id DESC LIMIT 1`, processID)
	return scanAssignment(row.Scan)
}

func (r Repo) CloseAssignmentTx(ctx context.Context, tx *sql.Tx, id, unassignedBy int64, unassignedTime string) error {
	res, err := tx.ExecContext(ctx, `UPDATE am_assignments SET unassigned_by=?, unassigned_time=? WHERE id=? AND unassigned_time IS NULL`,
		unassignedBy, unassignedTime, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AssignmentsByProcess(ctx context.Context, processID int64) ([]domain.AMAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+assignmentCols+` FROM am_assignments WHERE process_id=? ORDER BY assigned_time ASC, id ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AMAssignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
