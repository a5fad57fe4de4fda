package repo

import (
	"context"
	"database/sql"

	"nmflow/internal/domain"
)

const logCols = `id,process_id,requirement_id,changed_by,is_public,action,text,logdate`

func scanLog(scan func(dest ...any) error) (domain.Log, error) {
	var l domain.Log
	var processID, requirementID sql.NullInt64
	var text sql.NullString
	err := scan(&l.ID, &processID, &requirementID, &l.ChangedBy, &l.IsPublic, &l.Action, &text, &l.Logdate)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	if processID.Valid {
		l.ProcessID = &processID.Int64
	}
	if requirementID.Valid {
		l.RequirementID = &requirementID.Int64
	}
	if text.Valid {
		l.Text = text.String
	}
	return l, nil
}

// AppendLogTx inserts one audit entry. The log is append-only; no update or
// delete is exposed.
func (r Repo) AppendLogTx(ctx context.Context, tx *sql.Tx, l domain.Log) (domain.Log, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO log(process_id,requirement_id,changed_by,is_public,action,text,logdate) VALUES (?,?,?,?,?,?,?)`,
		nullableInt64Ptr(l.ProcessID), nullableInt64Ptr(l.RequirementID), l.ChangedBy, l.IsPublic, l.Action, nullable(l.Text), l.Logdate)
	if err != nil {
		return l, err
	}
	l.ID, err = res.LastInsertId()
	return l, err
}

// LogsByProcess returns the process audit trail ordered by logdate, insertion
// order breaking ties.
func (r Repo) LogsByProcess(ctx context.Context, processID int64) ([]domain.Log, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+logCols+` FROM log WHERE process_id=? ORDER BY logdate ASC, id ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Log
	for rows.Next() {
		l, err := scanLog(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// PreviousLog returns the most recent entry for the same process strictly
// before the given one, ErrNotFound when it is the first.
func (r Repo) PreviousLog(ctx context.Context, l domain.Log) (domain.Log, error) {
	if l.ProcessID == nil {
		return domain.Log{}, ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+logCols+` FROM log
WHERE process_id=? AND (logdate < ? OR (logdate = ? AND id < ?))
ORDER BY logdate DESC, id DESC LIMIT 1`, *l.ProcessID, l.Logdate, l.Logdate, l.ID)
	return scanLog(row.Scan)
}

// CountLogs is a test and maintenance helper.
func (r Repo) CountLogs(ctx context.Context, processID int64) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM log WHERE process_id=?`, processID)
	var n int
	err := row.Scan(&n)
	return n, err
}
