package repo

import (
	"context"
	"database/sql"

	"nmflow/internal/domain"
)

const requirementCols = `id,process_id,type,approved_by,approved_time`

func scanRequirement(scan func(dest ...any) error) (domain.Requirement, error) {
	var rq domain.Requirement
	var approvedBy sql.NullInt64
	var approvedTime sql.NullString
	err := scan(&rq.ID, &rq.ProcessID, &rq.Type, &approvedBy, &approvedTime)
	if err == sql.ErrNoRows {
		return rq, ErrNotFound
	}
	if err != nil {
		return rq, err
	}
	if approvedBy.Valid {
		rq.ApprovedBy = &approvedBy.Int64
	}
	if approvedTime.Valid {
		rq.ApprovedTime = &approvedTime.String
	}
	return rq, nil
}

func (r Repo) InsertRequirementTx(ctx context.Context, tx *sql.Tx, rq domain.Requirement) (domain.Requirement, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO requirements(process_id,type) VALUES (?,?)`, rq.ProcessID, rq.Type)
	if err != nil {
		return rq, err
	}
	rq.ID, err = res.LastInsertId()
	return rq, err
}

func (r Repo) GetRequirement(ctx context.Context, id int64) (domain.Requirement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requirementCols+` FROM requirements WHERE id=?`, id)
	return scanRequirement(row.Scan)
}

func (r Repo) GetRequirementTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Requirement, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requirementCols+` FROM requirements WHERE id=?`, id)
	return scanRequirement(row.Scan)
}

// RequirementByType returns the one requirement of the given type for a
// process, ErrNotFound when the process does not carry it.
func (r Repo) RequirementByType(ctx context.Context, processID int64, t domain.RequirementType) (domain.Requirement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requirementCols+` FROM requirements WHERE process_id=? AND type=?`, processID, t)
	return scanRequirement(row.Scan)
}

func (r Repo) RequirementsByProcess(ctx context.Context, processID int64) ([]domain.Requirement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+requirementCols+` FROM requirements WHERE process_id=? ORDER BY id ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Requirement
	for rows.Next() {
		rq, err := scanRequirement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rq)
	}
	return res, rows.Err()
}

func (r Repo) UpdateRequirementApprovalTx(ctx context.Context, tx *sql.Tx, rq domain.Requirement) error {
	res, err := tx.ExecContext(ctx, `UPDATE requirements SET approved_by=?, approved_time=? WHERE id=?`,
		nullableInt64Ptr(rq.ApprovedBy), nullableStringPtr(rq.ApprovedTime), rq.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const statementCols = `id,requirement_id,fingerprint,statement,uploaded_by,uploaded_time`

func scanStatement(scan func(dest ...any) error) (domain.Statement, error) {
	var s domain.Statement
	err := scan(&s.ID, &s.RequirementID, &s.Fingerprint, &s.Statement, &s.UploadedBy, &s.UploadedTime)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertStatementTx(ctx context.Context, tx *sql.Tx, s domain.Statement) (domain.Statement, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO statements(requirement_id,fingerprint,statement,uploaded_by,uploaded_time) VALUES (?,?,?,?,?)`,
		s.RequirementID, s.Fingerprint, s.Statement, s.UploadedBy, s.UploadedTime)
	if err != nil {
		return s, err
	}
	s.ID, err = res.LastInsertId()
	return s, err
}

func (r Repo) GetStatement(ctx context.Context, id int64) (domain.Statement, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+statementCols+` FROM statements WHERE id=?`, id)
	return scanStatement(row.Scan)
}

func (r Repo) GetStatementTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Statement, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+statementCols+` FROM statements WHERE id=?`, id)
	return scanStatement(row.Scan)
}

func (r Repo) StatementsByRequirement(ctx context.Context, requirementID int64) ([]domain.Statement, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+statementCols+` FROM statements WHERE requirement_id=? ORDER BY uploaded_time ASC, id ASC`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Statement
	for rows.Next() {
		s, err := scanStatement(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DeleteStatementTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM statements WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
