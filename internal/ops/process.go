package ops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nmflow/internal/domain"
	"nmflow/internal/engine"
	"nmflow/internal/notify"
	"nmflow/internal/repo"
	"nmflow/internal/rt"
)

func init() {
	Register("process_create", func() Operation { return &ProcessCreate{} })
	Register("process_freeze", func() Operation { return &ProcessFreeze{} })
	Register("process_unfreeze", func() Operation { return &ProcessUnfreeze{} })
	Register("process_approve", func() Operation { return &ProcessApprove{} })
	Register("process_unapprove", func() Operation { return &ProcessUnapprove{} })
	Register("process_close", func() Operation { return &ProcessClose{} })
	Register("process_cancel", func() Operation { return &ProcessCancel{} })
	Register("process_assign_am", func() Operation { return &ProcessAssignAM{} })
	Register("process_unassign_am", func() Operation { return &ProcessUnassignAM{} })
	Register("process_approve_rt", func() Operation { return &ProcessApproveRT{} })
	Register("request_emeritus", func() Operation { return &RequestEmeritus{} })
}

func transitionErr(p domain.Process, person domain.Person, reason string) error {
	return engine.InvalidTransitionError{
		Status:      person.Status,
		ApplyingFor: p.ApplyingFor,
		Reason:      reason,
	}
}

// reloadProcess fetches the process again inside the transaction so phase
// preconditions are checked against committed state, not the snapshot taken
// at decode time.
func reloadProcess(ctx context.Context, env *Env, id int64) (domain.Process, domain.Person, error) {
	p, err := env.Repo.GetProcessTx(ctx, env.Tx, id)
	if err != nil {
		return domain.Process{}, domain.Person{}, err
	}
	person, err := env.Repo.GetPersonTx(ctx, env.Tx, p.PersonID)
	if err != nil {
		return domain.Process{}, domain.Person{}, err
	}
	return p, person, nil
}

// ProcessCreate opens a new process for a person. Requirements are computed
// from the (status, applying_for) pair unless SkipRequirements is set.
type ProcessCreate struct {
	operation
	Person           domain.Person
	ApplyingFor      domain.Status
	SkipRequirements bool

	Created domain.Process
}

var processCreateFields = append([]Field{
	{Name: "person", Kind: KindPerson, Required: true},
	{Name: "applying_for", Kind: KindStatus, Required: true},
	{Name: "skip_requirements", Kind: KindBool},
}, auditFields...)

func (op *ProcessCreate) Kind() string    { return "process_create" }
func (op *ProcessCreate) Fields() []Field { return processCreateFields }

func (op *ProcessCreate) Args() Args {
	a := Args{
		"person":            op.Person.Key(),
		"applying_for":      string(op.ApplyingFor),
		"skip_requirements": op.SkipRequirements,
	}
	op.encodeAudit(a)
	return a
}

func (op *ProcessCreate) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Person, _, err = res.Person(ctx, a, "person", true); err != nil {
		return err
	}
	if op.ApplyingFor, err = res.Status(a, "applying_for", true, ""); err != nil {
		return err
	}
	if op.SkipRequirements, err = res.Bool(a, "skip_requirements", false); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("opened process for %s applying for %s", op.Person.Key(), op.ApplyingFor))
	return nil
}

func (op *ProcessCreate) Apply(ctx context.Context, env *Env) error {
	person, err := env.Repo.GetPersonTx(ctx, env.Tx, op.Person.ID)
	if err != nil {
		return fmt.Errorf("reload person: %w", err)
	}
	op.Person = person
	proc, _, err := env.Engine.CreateProcessTx(ctx, env.Tx, engine.CreateProcessOptions{
		Person:           op.Person,
		ApplyingFor:      op.ApplyingFor,
		SkipRequirements: op.SkipRequirements,
	})
	if err != nil {
		return err
	}
	op.Created = proc
	return op.appendLog(ctx, env, &proc.ID, nil, domain.ActionProcCreate, true)
}

// ProcessFreeze enters the frozen phase: the evidence is complete and under
// final review, so applicant edits stop.
type ProcessFreeze struct {
	operation
	Process domain.Process
}

var processRefFields = append([]Field{
	{Name: "process", Kind: KindProcess, Required: true},
}, auditFields...)

func (op *ProcessFreeze) Kind() string    { return "process_freeze" }
func (op *ProcessFreeze) Fields() []Field { return processRefFields }

func (op *ProcessFreeze) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessFreeze) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("froze process %d", op.Process.ID))
	return nil
}

func (op *ProcessFreeze) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if p.Closed() {
		return transitionErr(p, person, "process is closed")
	}
	if p.Frozen() {
		return transitionErr(p, person, "process is already frozen")
	}
	when := op.when()
	p.FrozenBy = &op.audit.Author.ID
	p.FrozenTime = &when
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("freeze process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcFreeze, true)
}

func (op *ProcessFreeze) Notify(ctx context.Context, n notify.Notifier) error {
	return n.Send(ctx, notify.Event{
		Type:    notify.EventProcessFrozen,
		Process: op.Process.ID,
	})
}

// ProcessUnfreeze reopens a frozen process for edits. Refused once the
// process has been approved.
type ProcessUnfreeze struct {
	operation
	Process domain.Process
}

func (op *ProcessUnfreeze) Kind() string    { return "process_unfreeze" }
func (op *ProcessUnfreeze) Fields() []Field { return processRefFields }

func (op *ProcessUnfreeze) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessUnfreeze) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("unfroze process %d", op.Process.ID))
	return nil
}

func (op *ProcessUnfreeze) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if !p.Frozen() {
		return transitionErr(p, person, "process is not frozen")
	}
	if p.Approved() {
		return transitionErr(p, person, "process is already approved; unapprove first")
	}
	p.FrozenBy = nil
	p.FrozenTime = nil
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("unfreeze process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcUnfreeze, true)
}

// ProcessApprove enters the approved phase. Only frozen processes may be
// approved; closing still requires a separate operation.
type ProcessApprove struct {
	operation
	Process domain.Process
}

func (op *ProcessApprove) Kind() string    { return "process_approve" }
func (op *ProcessApprove) Fields() []Field { return processRefFields }

func (op *ProcessApprove) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessApprove) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("approved process %d", op.Process.ID))
	return nil
}

func (op *ProcessApprove) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if !p.Frozen() {
		return transitionErr(p, person, "only a frozen process can be approved")
	}
	if p.Approved() {
		return transitionErr(p, person, "process is already approved")
	}
	when := op.when()
	p.ApprovedBy = &op.audit.Author.ID
	p.ApprovedTime = &when
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("approve process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcApprove, true)
}

// ProcessUnapprove reverts an approval. Refused once the process is closed.
type ProcessUnapprove struct {
	operation
	Process domain.Process
}

func (op *ProcessUnapprove) Kind() string    { return "process_unapprove" }
func (op *ProcessUnapprove) Fields() []Field { return processRefFields }

func (op *ProcessUnapprove) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessUnapprove) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("unapproved process %d", op.Process.ID))
	return nil
}

func (op *ProcessUnapprove) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if !p.Approved() {
		return transitionErr(p, person, "process is not approved")
	}
	if p.Closed() {
		return transitionErr(p, person, "process is closed")
	}
	p.ApprovedBy = nil
	p.ApprovedTime = nil
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("unapprove process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcUnapprove, true)
}

// ProcessClose completes an approved process: the person's status becomes the
// process's target and the process is closed for good.
type ProcessClose struct {
	operation
	Process domain.Process

	person domain.Person
}

func (op *ProcessClose) Kind() string    { return "process_close" }
func (op *ProcessClose) Fields() []Field { return processRefFields }

func (op *ProcessClose) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessClose) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("closed process %d", op.Process.ID))
	return nil
}

func (op *ProcessClose) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if p.Closed() {
		return transitionErr(p, person, "process is already closed")
	}
	if !p.Approved() {
		return transitionErr(p, person, "only an approved process can be closed")
	}
	when := op.when()
	p.ClosedBy = &op.audit.Author.ID
	p.ClosedTime = &when
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("close process: %w", err)
	}
	if err := env.Repo.UpdatePersonStatusTx(ctx, env.Tx, person.ID, p.ApplyingFor, when); err != nil {
		return fmt.Errorf("update person status: %w", err)
	}
	person.Status = p.ApplyingFor
	op.Process = p
	op.person = person
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcClose, true)
}

func (op *ProcessClose) Notify(ctx context.Context, n notify.Notifier) error {
	if err := n.Send(ctx, notify.Event{
		Type:    notify.EventProcessClosed,
		Person:  op.person.Key(),
		Process: op.Process.ID,
		Payload: map[string]any{"status": string(op.person.Status)},
	}); err != nil {
		return err
	}
	if op.person.Status.IsDD() {
		return n.Send(ctx, notify.Event{
			Type:    notify.EventNewDeveloper,
			Person:  op.person.Key(),
			Process: op.Process.ID,
		})
	}
	return nil
}

// ProcessCancel closes a process without changing the person's status.
// IsPublic controls whether the closing log entry is applicant-visible.
type ProcessCancel struct {
	operation
	Process  domain.Process
	IsPublic bool
}

var processCancelFields = append([]Field{
	{Name: "process", Kind: KindProcess, Required: true},
	{Name: "is_public", Kind: KindBool},
}, auditFields...)

func (op *ProcessCancel) Kind() string    { return "process_cancel" }
func (op *ProcessCancel) Fields() []Field { return processCancelFields }

func (op *ProcessCancel) Args() Args {
	a := Args{
		"process":   op.Process.ID,
		"is_public": op.IsPublic,
	}
	op.encodeAudit(a)
	return a
}

func (op *ProcessCancel) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	if op.IsPublic, err = res.Bool(a, "is_public", true); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("canceled process %d", op.Process.ID))
	return nil
}

func (op *ProcessCancel) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if p.Closed() {
		return transitionErr(p, person, "process is already closed")
	}
	when := op.when()
	p.ClosedBy = &op.audit.Author.ID
	p.ClosedTime = &when
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("cancel process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionProcClose, op.IsPublic)
}

// ProcessAssignAM assigns an application manager to a process, closing any
// current assignment first. The assignee gets an AM profile if they have
// none.
type ProcessAssignAM struct {
	operation
	Process domain.Process
	AM      domain.Person

	Assignment domain.AMAssignment
}

var processAssignAMFields = append([]Field{
	{Name: "process", Kind: KindProcess, Required: true},
	{Name: "am", Kind: KindPerson, Required: true},
}, auditFields...)

func (op *ProcessAssignAM) Kind() string    { return "process_assign_am" }
func (op *ProcessAssignAM) Fields() []Field { return processAssignAMFields }

func (op *ProcessAssignAM) Args() Args {
	a := Args{
		"process": op.Process.ID,
		"am":      op.AM.Key(),
	}
	op.encodeAudit(a)
	return a
}

func (op *ProcessAssignAM) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	if op.AM, _, err = res.Person(ctx, a, "am", true); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("assigned %s to process %d", op.AM.Key(), op.Process.ID))
	return nil
}

func (op *ProcessAssignAM) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if p.Closed() {
		return transitionErr(p, person, "process is closed")
	}
	when := op.when()
	cur, err := env.Repo.CurrentAssignmentTx(ctx, env.Tx, p.ID)
	switch {
	case err == nil:
		if err := env.Repo.CloseAssignmentTx(ctx, env.Tx, cur.ID, op.audit.Author.ID, when); err != nil {
			return fmt.Errorf("close current assignment: %w", err)
		}
		if err := op.appendLog(ctx, env, &p.ID, nil, domain.ActionAMUnassign, true); err != nil {
			return err
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return err
	}
	am, err := env.Repo.EnsureAMTx(ctx, env.Tx, op.AM.ID, when)
	if err != nil {
		return fmt.Errorf("ensure am profile: %w", err)
	}
	as, err := env.Repo.InsertAssignmentTx(ctx, env.Tx, domain.AMAssignment{
		ProcessID:    p.ID,
		AMID:         am.ID,
		AssignedBy:   op.audit.Author.ID,
		AssignedTime: when,
	})
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	op.Assignment = as
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionAMAssign, true)
}

func (op *ProcessAssignAM) Notify(ctx context.Context, n notify.Notifier) error {
	return n.Send(ctx, notify.Event{
		Type:    notify.EventAMAssigned,
		Person:  op.AM.Key(),
		Process: op.Process.ID,
	})
}

// ProcessUnassignAM ends the current assignment without a replacement.
type ProcessUnassignAM struct {
	operation
	Process domain.Process
}

func (op *ProcessUnassignAM) Kind() string    { return "process_unassign_am" }
func (op *ProcessUnassignAM) Fields() []Field { return processRefFields }

func (op *ProcessUnassignAM) Args() Args {
	a := Args{"process": op.Process.ID}
	op.encodeAudit(a)
	return a
}

func (op *ProcessUnassignAM) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("unassigned manager from process %d", op.Process.ID))
	return nil
}

func (op *ProcessUnassignAM) Apply(ctx context.Context, env *Env) error {
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if p.Closed() {
		return transitionErr(p, person, "process is closed")
	}
	cur, err := env.Repo.CurrentAssignmentTx(ctx, env.Tx, op.Process.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return invalid("process", "process %d has no current assignment", op.Process.ID)
		}
		return err
	}
	if err := env.Repo.CloseAssignmentTx(ctx, env.Tx, cur.ID, op.audit.Author.ID, op.when()); err != nil {
		return fmt.Errorf("close assignment: %w", err)
	}
	return op.appendLog(ctx, env, &op.Process.ID, nil, domain.ActionAMUnassign, true)
}

func (op *ProcessUnassignAM) Notify(ctx context.Context, n notify.Notifier) error {
	return n.Send(ctx, notify.Event{
		Type:    notify.EventAMUnassigned,
		Process: op.Process.ID,
	})
}

// ProcessApproveRT approves a frozen process and opens the tracking ticket in
// one operation. The ticket is created first: if the tracker refuses, the
// transaction rolls back and nothing is persisted.
type ProcessApproveRT struct {
	operation
	Process domain.Process
	Subject string
	Text    string
}

var processApproveRTFields = append([]Field{
	{Name: "process", Kind: KindProcess, Required: true},
	{Name: "subject", Kind: KindString, Required: true},
	{Name: "text", Kind: KindString, Required: true},
}, auditFields...)

func (op *ProcessApproveRT) Kind() string    { return "process_approve_rt" }
func (op *ProcessApproveRT) Fields() []Field { return processApproveRTFields }

func (op *ProcessApproveRT) Args() Args {
	a := Args{
		"process": op.Process.ID,
		"subject": op.Subject,
		"text":    op.Text,
	}
	op.encodeAudit(a)
	return a
}

func (op *ProcessApproveRT) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Process, err = res.Process(ctx, a, "process"); err != nil {
		return err
	}
	if op.Subject, err = res.String(a, "subject", true); err != nil {
		return err
	}
	if op.Text, err = res.String(a, "text", true); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("approved process %d via rt", op.Process.ID))
	return nil
}

func (op *ProcessApproveRT) Apply(ctx context.Context, env *Env) error {
	if env.RT == nil {
		return errors.New("rt is not configured")
	}
	p, person, err := reloadProcess(ctx, env, op.Process.ID)
	if err != nil {
		return err
	}
	if !p.Frozen() {
		return transitionErr(p, person, "only a frozen process can be approved")
	}
	if p.Approved() {
		return transitionErr(p, person, "process is already approved")
	}
	ticket, err := env.RT.CreateTicket(ctx, rt.Ticket{
		Requestor: person.Email,
		Subject:   op.Subject,
		Text:      op.Text,
	})
	if err != nil {
		return fmt.Errorf("create rt ticket: %w", err)
	}
	when := op.when()
	p.ApprovedBy = &op.audit.Author.ID
	p.ApprovedTime = &when
	p.RTTicket = ticket
	if err := env.Repo.UpdateProcessPhaseTx(ctx, env.Tx, p); err != nil {
		return fmt.Errorf("approve process: %w", err)
	}
	op.Process = p
	return op.appendLog(ctx, env, &p.ID, nil, domain.ActionRTApprove, true)
}

// RequestEmeritus opens a dd_e process for a developer, optionally seeding
// the intent requirement with their retirement statement.
type RequestEmeritus struct {
	operation
	Person    domain.Person
	Statement string

	Created domain.Process
}

var requestEmeritusFields = append([]Field{
	{Name: "person", Kind: KindPerson, Required: true},
	{Name: "statement", Kind: KindString},
}, auditFields...)

func (op *RequestEmeritus) Kind() string    { return "request_emeritus" }
func (op *RequestEmeritus) Fields() []Field { return requestEmeritusFields }

func (op *RequestEmeritus) Args() Args {
	a := Args{
		"person":    op.Person.Key(),
		"statement": op.Statement,
	}
	op.encodeAudit(a)
	return a
}

func (op *RequestEmeritus) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Person, _, err = res.Person(ctx, a, "person", true); err != nil {
		return err
	}
	if op.Statement, err = res.String(a, "statement", false); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("%s requested emeritus status", op.Person.Key()))
	return nil
}

func (op *RequestEmeritus) Apply(ctx context.Context, env *Env) error {
	person, err := env.Repo.GetPersonTx(ctx, env.Tx, op.Person.ID)
	if err != nil {
		return fmt.Errorf("reload person: %w", err)
	}
	op.Person = person
	if op.Statement != "" {
		if err := verifyStatement(ctx, env, op.Person.Fingerprint, op.Statement); err != nil {
			return err
		}
	}
	proc, reqs, err := env.Engine.CreateProcessTx(ctx, env.Tx, engine.CreateProcessOptions{
		Person:      op.Person,
		ApplyingFor: domain.StatusDDEmeritus,
	})
	if err != nil {
		return err
	}
	op.Created = proc
	if err := op.appendLog(ctx, env, &proc.ID, nil, domain.ActionProcCreate, true); err != nil {
		return err
	}
	if op.Statement == "" {
		return nil
	}
	for _, rq := range reqs {
		if rq.Type != domain.ReqIntent {
			continue
		}
		if _, err := env.Repo.InsertStatementTx(ctx, env.Tx, domain.Statement{
			RequirementID: rq.ID,
			Fingerprint:   op.Person.Fingerprint,
			Statement:     op.Statement,
			UploadedBy:    op.Person.ID,
			UploadedTime:  op.audit.Time.UTC().Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("insert retirement statement: %w", err)
		}
		return op.appendLog(ctx, env, &proc.ID, &rq.ID, domain.ActionStatementAdd, true)
	}
	return nil
}
