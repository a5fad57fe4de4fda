package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nmflow/internal/domain"
	"nmflow/internal/keycheck"
	"nmflow/internal/repo"
)

// InvalidTransitionError marks a (status, applying_for) pair outside the
// requirement table, or a phase change whose preconditions are unmet.
type InvalidTransitionError struct {
	Status      domain.Status
	ApplyingFor domain.Status
	Reason      string
}

func (e InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition %s -> %s: %s", e.Status, e.ApplyingFor, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.Status, e.ApplyingFor)
}

// ErrDuplicateActiveProcess is returned when an open process already exists
// for the same (person, applying_for) pair.
var ErrDuplicateActiveProcess = errors.New("an open process for this person and target status already exists")

// ErrPendingPerson is returned when a process is requested for a person whose
// account is not yet confirmed.
var ErrPendingPerson = errors.New("person has a pending account confirmation")

// ComputeRequirements returns the ordered requirement set for advancing from
// status to applyingFor. The table is total over the valid pairs; anything
// else fails with InvalidTransitionError.
func ComputeRequirements(status, applyingFor domain.Status) ([]domain.RequirementType, error) {
	fail := func() ([]domain.RequirementType, error) {
		return nil, InvalidTransitionError{Status: status, ApplyingFor: applyingFor}
	}
	if !status.Valid() || !applyingFor.Valid() {
		return fail()
	}
	switch applyingFor {
	case domain.StatusDCGA:
		if status != domain.StatusDC {
			return fail()
		}
		return []domain.RequirementType{domain.ReqIntent, domain.ReqSCDMUP, domain.ReqAdvocate}, nil
	case domain.StatusDM:
		if status != domain.StatusDC && status != domain.StatusDCGA {
			return fail()
		}
		return []domain.RequirementType{domain.ReqIntent, domain.ReqSCDMUP, domain.ReqAdvocate, domain.ReqKeycheck}, nil
	case domain.StatusDMGA:
		if status != domain.StatusDM {
			return fail()
		}
		return []domain.RequirementType{domain.ReqIntent, domain.ReqSCDMUP}, nil
	case domain.StatusDDU, domain.StatusDDNU:
		if status == applyingFor.Sibling() {
			return []domain.RequirementType{domain.ReqIntent, domain.ReqSCDMUP}, nil
		}
		switch status {
		case domain.StatusDC, domain.StatusDCGA, domain.StatusDM, domain.StatusDMGA, domain.StatusDDEmeritus:
			return []domain.RequirementType{domain.ReqIntent, domain.ReqSCDMUP, domain.ReqAdvocate, domain.ReqKeycheck, domain.ReqAMOK}, nil
		}
		return fail()
	case domain.StatusDDEmeritus:
		if !status.IsDD() {
			return fail()
		}
		return []domain.RequirementType{domain.ReqIntent}, nil
	case domain.StatusDDRemoved:
		if !status.IsDD() && status != domain.StatusDDEmeritus {
			return fail()
		}
		return []domain.RequirementType{domain.ReqIntent}, nil
	}
	return fail()
}

// Engine holds the workflow state machine: requirement computation, process
// creation invariants and per-type requirement status.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Keycheck keycheck.Checker
	// Verify, when set, gates statement uploads on signature validity.
	Verify keycheck.Verifier
	Now    func() time.Time
	Log    zerolog.Logger
}

func New(db *sql.DB, checker keycheck.Checker, log zerolog.Logger) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Keycheck: checker,
		Now:      time.Now,
		Log:      log,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CreateProcessOptions are parameters for opening a process.
type CreateProcessOptions struct {
	Person      domain.Person
	ApplyingFor domain.Status
	// SkipRequirements creates the process with zero requirements; used by
	// administrative shortcuts.
	SkipRequirements bool
}

// CreateProcessTx enforces the creation invariants and persists the process
// and its computed requirements inside the given transaction.
func (e Engine) CreateProcessTx(ctx context.Context, tx *sql.Tx, opts CreateProcessOptions) (domain.Process, []domain.Requirement, error) {
	if opts.Person.Pending != "" {
		return domain.Process{}, nil, ErrPendingPerson
	}
	var reqTypes []domain.RequirementType
	if opts.SkipRequirements {
		if !opts.ApplyingFor.Valid() {
			return domain.Process{}, nil, InvalidTransitionError{Status: opts.Person.Status, ApplyingFor: opts.ApplyingFor}
		}
	} else {
		var err error
		reqTypes, err = ComputeRequirements(opts.Person.Status, opts.ApplyingFor)
		if err != nil {
			return domain.Process{}, nil, err
		}
	}
	exists, err := e.Repo.HasOpenProcessTx(ctx, tx, opts.Person.ID, opts.ApplyingFor)
	if err != nil {
		return domain.Process{}, nil, err
	}
	if exists {
		return domain.Process{}, nil, ErrDuplicateActiveProcess
	}
	proc := domain.Process{
		PersonID:    opts.Person.ID,
		ApplyingFor: opts.ApplyingFor,
		Started:     e.now().UTC().Format(time.RFC3339),
	}
	proc, err = e.Repo.InsertProcessTx(ctx, tx, proc)
	if err != nil {
		return domain.Process{}, nil, fmt.Errorf("insert process: %w", err)
	}
	var reqs []domain.Requirement
	for _, t := range reqTypes {
		rq, err := e.Repo.InsertRequirementTx(ctx, tx, domain.Requirement{ProcessID: proc.ID, Type: t})
		if err != nil {
			return domain.Process{}, nil, fmt.Errorf("insert requirement %s: %w", t, err)
		}
		reqs = append(reqs, rq)
	}
	e.Log.Debug().Int64("process", proc.ID).Str("applying_for", string(proc.ApplyingFor)).Msg("process created")
	return proc, reqs, nil
}

// NoteLevel classifies a requirement status note.
type NoteLevel string

const (
	NoteInfo  NoteLevel = "info"
	NoteWarn  NoteLevel = "warn"
	NoteError NoteLevel = "error"
)

type Note struct {
	Level NoteLevel
	Text  string
}

// RequirementStatus is the computed satisfaction of one requirement. Warnings
// never make a satisfied requirement unsatisfied on their own.
type RequirementStatus struct {
	Satisfied bool
	Notes     []Note
}

func (s *RequirementStatus) note(level NoteLevel, format string, args ...any) {
	s.Notes = append(s.Notes, Note{Level: level, Text: fmt.Sprintf(format, args...)})
}

// ComputeRequirementStatus evaluates one requirement against its statements
// and, for keycheck, the external verification collaborator. Read-only.
func (e Engine) ComputeRequirementStatus(ctx context.Context, view repo.ProcessView, rq domain.Requirement) (RequirementStatus, error) {
	switch rq.Type {
	case domain.ReqIntent, domain.ReqSCDMUP:
		return e.statementStatus(ctx, view, rq)
	case domain.ReqAdvocate:
		return e.advocateStatus(ctx, view, rq)
	case domain.ReqAMOK:
		return e.amOKStatus(ctx, view, rq)
	case domain.ReqKeycheck:
		return e.keycheckStatus(ctx, view)
	}
	return RequirementStatus{}, fmt.Errorf("unknown requirement type %q", rq.Type)
}

func (e Engine) statementStatus(ctx context.Context, view repo.ProcessView, rq domain.Requirement) (RequirementStatus, error) {
	var st RequirementStatus
	stmts, err := e.Repo.StatementsByRequirement(ctx, rq.ID)
	if err != nil {
		return st, err
	}
	if len(stmts) == 0 {
		st.note(NoteError, "no %s statement uploaded", rq.Type)
		return st, nil
	}
	st.Satisfied = true
	for _, s := range stmts {
		if s.UploadedBy != view.Person.ID {
			st.note(NoteWarn, "statement uploaded by someone other than the applicant")
		}
		if view.Person.Fingerprint != "" && s.Fingerprint != view.Person.Fingerprint {
			st.note(NoteWarn, "statement signed with a key that is not the applicant's active key")
		}
	}
	return st, nil
}

func (e Engine) advocateStatus(ctx context.Context, view repo.ProcessView, rq domain.Requirement) (RequirementStatus, error) {
	var st RequirementStatus
	stmts, err := e.Repo.StatementsByRequirement(ctx, rq.ID)
	if err != nil {
		return st, err
	}
	selfOK := domain.CanSelfAdvocate(view.Person.Status, view.Process.ApplyingFor)
	advocates := 0
	for _, s := range stmts {
		if s.UploadedBy != view.Person.ID || selfOK {
			advocates++
		} else {
			st.note(NoteWarn, "self-advocacy is not allowed for this transition")
		}
	}
	if advocates == 0 {
		st.note(NoteError, "no advocate statement")
		return st, nil
	}
	st.Satisfied = true
	if advocates == 1 && view.Process.ApplyingFor.IsDD() {
		st.note(NoteWarn, "only one advocate; at least two are recommended for a developer application")
	}
	return st, nil
}

func (e Engine) amOKStatus(ctx context.Context, view repo.ProcessView, rq domain.Requirement) (RequirementStatus, error) {
	var st RequirementStatus
	stmts, err := e.Repo.StatementsByRequirement(ctx, rq.ID)
	if err != nil {
		return st, err
	}
	if len(stmts) == 0 {
		st.note(NoteError, "no application manager report")
		return st, nil
	}
	st.Satisfied = true
	for _, s := range stmts {
		if view.LastAMPerson == nil || s.UploadedBy != view.LastAMPerson.ID {
			st.note(NoteWarn, "report uploaded by someone other than the process's application manager")
		}
	}
	return st, nil
}

// minimum count of good signatures a user id needs on the key
const minUIDSignatures = 2

func (e Engine) keycheckStatus(ctx context.Context, view repo.ProcessView) (RequirementStatus, error) {
	var st RequirementStatus
	if view.Person.Fingerprint == "" {
		st.note(NoteError, "no key fingerprint on file")
		return st, nil
	}
	if e.Keycheck == nil {
		st.note(NoteError, "key verification is not configured")
		return st, nil
	}
	res, err := e.Keycheck.Keycheck(ctx, view.Person.Fingerprint)
	if err != nil {
		// a failing lookup degrades the status, never the caller
		e.Log.Warn().Err(err).Str("fingerprint", view.Person.Fingerprint).Msg("keycheck lookup failed")
		st.note(NoteError, "key lookup failed: %v", err)
		return st, nil
	}
	if len(res.Errors) > 0 {
		for _, flag := range res.Errors {
			st.note(NoteWarn, "key flagged: %s", flag)
		}
		return st, nil
	}
	for _, uid := range res.UIDs {
		if len(uid.Errors) > 0 {
			st.note(NoteWarn, "uid %s flagged: %v", uid.Name, uid.Errors)
			continue
		}
		if uid.SigsOK >= minUIDSignatures {
			st.Satisfied = true
			st.note(NoteInfo, "uid %s has %d good signatures", uid.Name, uid.SigsOK)
		}
	}
	if !st.Satisfied {
		st.note(NoteError, "no user id with at least %d valid signatures and no errors", minUIDSignatures)
	}
	return st, nil
}
