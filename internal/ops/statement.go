package ops

import (
	"context"
	"fmt"
	"time"

	"nmflow/internal/domain"
)

func init() {
	Register("statement_create", func() Operation { return &StatementCreate{} })
	Register("statement_remove", func() Operation { return &StatementRemove{} })
	Register("requirement_approve", func() Operation { return &RequirementApprove{} })
	Register("requirement_unapprove", func() Operation { return &RequirementUnapprove{} })
}

// StatementCreate attaches a signed statement to a requirement. The uploader
// is the audit author.
type StatementCreate struct {
	operation
	Requirement domain.Requirement
	Fingerprint string
	Statement   string

	Created domain.Statement
}

var statementCreateFields = append([]Field{
	{Name: "requirement", Kind: KindRequirement, Required: true},
	{Name: "fingerprint", Kind: KindString},
	{Name: "statement", Kind: KindString, Required: true},
}, auditFields...)

func (op *StatementCreate) Kind() string    { return "statement_create" }
func (op *StatementCreate) Fields() []Field { return statementCreateFields }

func (op *StatementCreate) Args() Args {
	a := Args{
		"requirement": op.Requirement.ID,
		"fingerprint": op.Fingerprint,
		"statement":   op.Statement,
	}
	op.encodeAudit(a)
	return a
}

func (op *StatementCreate) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Requirement, err = res.Requirement(ctx, a, "requirement"); err != nil {
		return err
	}
	if op.Fingerprint, err = res.String(a, "fingerprint", false); err != nil {
		return err
	}
	if op.Statement, err = res.String(a, "statement", true); err != nil {
		return err
	}
	if op.Fingerprint == "" {
		op.Fingerprint = op.audit.Author.Fingerprint
	}
	op.audit.FillNotes(fmt.Sprintf("added %s statement", op.Requirement.Type))
	return nil
}

// verifyStatement runs signed text through the engine's verifier. Every path
// that writes a statement row goes through here.
func verifyStatement(ctx context.Context, env *Env, fingerprint, text string) error {
	if env.Engine.Verify == nil || fingerprint == "" {
		return nil
	}
	if _, err := env.Engine.Verify.VerifySignature(ctx, fingerprint, text); err != nil {
		return invalid("statement", "signature verification failed: %v", err)
	}
	return nil
}

func (op *StatementCreate) Apply(ctx context.Context, env *Env) error {
	if err := verifyStatement(ctx, env, op.Fingerprint, op.Statement); err != nil {
		return err
	}
	s, err := env.Repo.InsertStatementTx(ctx, env.Tx, domain.Statement{
		RequirementID: op.Requirement.ID,
		Fingerprint:   op.Fingerprint,
		Statement:     op.Statement,
		UploadedBy:    op.audit.Author.ID,
		UploadedTime:  op.audit.Time.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	op.Created = s
	return op.appendLog(ctx, env, &op.Requirement.ProcessID, &op.Requirement.ID, domain.ActionStatementAdd, true)
}

// StatementRemove deletes a statement. The audit trail entry remains.
type StatementRemove struct {
	operation
	Statement domain.Statement

	requirement domain.Requirement
}

var statementRemoveFields = append([]Field{
	{Name: "statement", Kind: KindStatement, Required: true},
}, auditFields...)

func (op *StatementRemove) Kind() string    { return "statement_remove" }
func (op *StatementRemove) Fields() []Field { return statementRemoveFields }

func (op *StatementRemove) Args() Args {
	a := Args{"statement": op.Statement.ID}
	op.encodeAudit(a)
	return a
}

func (op *StatementRemove) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Statement, err = res.Statement(ctx, a, "statement"); err != nil {
		return err
	}
	if op.requirement, err = res.Repo.GetRequirement(ctx, op.Statement.RequirementID); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("removed %s statement", op.requirement.Type))
	return nil
}

func (op *StatementRemove) Apply(ctx context.Context, env *Env) error {
	if err := env.Repo.DeleteStatementTx(ctx, env.Tx, op.Statement.ID); err != nil {
		return fmt.Errorf("delete statement: %w", err)
	}
	return op.appendLog(ctx, env, &op.requirement.ProcessID, &op.requirement.ID, domain.ActionStatementRemove, true)
}

// RequirementApprove marks one requirement as reviewed and satisfied.
type RequirementApprove struct {
	operation
	Requirement domain.Requirement
}

var requirementRefFields = append([]Field{
	{Name: "requirement", Kind: KindRequirement, Required: true},
}, auditFields...)

func (op *RequirementApprove) Kind() string    { return "requirement_approve" }
func (op *RequirementApprove) Fields() []Field { return requirementRefFields }

func (op *RequirementApprove) Args() Args {
	a := Args{"requirement": op.Requirement.ID}
	op.encodeAudit(a)
	return a
}

func (op *RequirementApprove) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Requirement, err = res.Requirement(ctx, a, "requirement"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("approved %s requirement", op.Requirement.Type))
	return nil
}

func (op *RequirementApprove) Apply(ctx context.Context, env *Env) error {
	rq, err := env.Repo.GetRequirementTx(ctx, env.Tx, op.Requirement.ID)
	if err != nil {
		return err
	}
	if rq.Approved() {
		return invalid("requirement", "requirement %d is already approved", rq.ID)
	}
	when := op.when()
	rq.ApprovedBy = &op.audit.Author.ID
	rq.ApprovedTime = &when
	if err := env.Repo.UpdateRequirementApprovalTx(ctx, env.Tx, rq); err != nil {
		return fmt.Errorf("approve requirement: %w", err)
	}
	op.Requirement = rq
	return op.appendLog(ctx, env, &rq.ProcessID, &rq.ID, domain.ActionReqApprove, true)
}

// RequirementUnapprove reverts a requirement approval.
type RequirementUnapprove struct {
	operation
	Requirement domain.Requirement
}

func (op *RequirementUnapprove) Kind() string    { return "requirement_unapprove" }
func (op *RequirementUnapprove) Fields() []Field { return requirementRefFields }

func (op *RequirementUnapprove) Args() Args {
	a := Args{"requirement": op.Requirement.ID}
	op.encodeAudit(a)
	return a
}

func (op *RequirementUnapprove) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Requirement, err = res.Requirement(ctx, a, "requirement"); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("unapproved %s requirement", op.Requirement.Type))
	return nil
}

func (op *RequirementUnapprove) Apply(ctx context.Context, env *Env) error {
	rq, err := env.Repo.GetRequirementTx(ctx, env.Tx, op.Requirement.ID)
	if err != nil {
		return err
	}
	if !rq.Approved() {
		return invalid("requirement", "requirement %d is not approved", rq.ID)
	}
	rq.ApprovedBy = nil
	rq.ApprovedTime = nil
	if err := env.Repo.UpdateRequirementApprovalTx(ctx, env.Tx, rq); err != nil {
		return fmt.Errorf("unapprove requirement: %w", err)
	}
	op.Requirement = rq
	return op.appendLog(ctx, env, &rq.ProcessID, &rq.ID, domain.ActionReqUnapprove, true)
}
