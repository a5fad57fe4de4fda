package ops

import (
	"context"
	"fmt"
	"time"

	"nmflow/internal/domain"
)

func init() {
	Register("person_create", func() Operation { return &PersonCreate{} })
	Register("change_status", func() Operation { return &ChangeStatus{} })
	Register("change_fingerprint", func() Operation { return &ChangeFingerprint{} })
}

// PersonCreate registers a new person. New accounts default to the dc status
// and carry no open process.
type PersonCreate struct {
	operation
	UID         string
	Email       string
	FullName    string
	Fingerprint string
	Status      domain.Status

	// Created is the persisted record, populated by Apply.
	Created domain.Person
}

var personCreateFields = append([]Field{
	{Name: "uid", Kind: KindString},
	{Name: "email", Kind: KindString, Required: true},
	{Name: "full_name", Kind: KindString, Required: true},
	{Name: "fingerprint", Kind: KindString},
	{Name: "status", Kind: KindStatus},
}, auditFields...)

func (op *PersonCreate) Kind() string    { return "person_create" }
func (op *PersonCreate) Fields() []Field { return personCreateFields }

func (op *PersonCreate) Args() Args {
	a := Args{
		"uid":         op.UID,
		"email":       op.Email,
		"full_name":   op.FullName,
		"fingerprint": op.Fingerprint,
		"status":      string(op.Status),
	}
	op.encodeAudit(a)
	return a
}

func (op *PersonCreate) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.UID, err = res.String(a, "uid", false); err != nil {
		return err
	}
	if op.Email, err = res.String(a, "email", true); err != nil {
		return err
	}
	if op.FullName, err = res.String(a, "full_name", true); err != nil {
		return err
	}
	if op.Fingerprint, err = res.String(a, "fingerprint", false); err != nil {
		return err
	}
	if op.Status, err = res.Status(a, "status", false, domain.StatusDC); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("created person %s", op.Email))
	return nil
}

func (op *PersonCreate) Apply(ctx context.Context, env *Env) error {
	now := op.audit.Time.UTC().Format(time.RFC3339)
	p, err := env.Repo.InsertPersonTx(ctx, env.Tx, domain.Person{
		UID:           op.UID,
		Email:         op.Email,
		FullName:      op.FullName,
		Fingerprint:   op.Fingerprint,
		Status:        op.Status,
		StatusChanged: now,
		CreatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	op.Created = p
	return op.appendLog(ctx, env, nil, nil, domain.ActionPersonCreate, true)
}

// ChangeStatus sets a person's membership status directly, outside any
// process. Used by administrative corrections and imports.
type ChangeStatus struct {
	operation
	Person domain.Person
	Status domain.Status
}

var changeStatusFields = append([]Field{
	{Name: "person", Kind: KindPerson, Required: true},
	{Name: "status", Kind: KindStatus, Required: true},
}, auditFields...)

func (op *ChangeStatus) Kind() string    { return "change_status" }
func (op *ChangeStatus) Fields() []Field { return changeStatusFields }

func (op *ChangeStatus) Args() Args {
	a := Args{
		"person": op.Person.Key(),
		"status": string(op.Status),
	}
	op.encodeAudit(a)
	return a
}

func (op *ChangeStatus) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Person, _, err = res.Person(ctx, a, "person", true); err != nil {
		return err
	}
	if op.Status, err = res.Status(a, "status", true, ""); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("changed status of %s from %s to %s", op.Person.Key(), op.Person.Status, op.Status))
	return nil
}

func (op *ChangeStatus) Apply(ctx context.Context, env *Env) error {
	changed := op.audit.Time.UTC().Format(time.RFC3339)
	if err := env.Repo.UpdatePersonStatusTx(ctx, env.Tx, op.Person.ID, op.Status, changed); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return op.appendLog(ctx, env, nil, nil, domain.ActionStatusChange, true)
}

// ChangeFingerprint replaces a person's active key fingerprint.
type ChangeFingerprint struct {
	operation
	Person      domain.Person
	Fingerprint string
}

var changeFingerprintFields = append([]Field{
	{Name: "person", Kind: KindPerson, Required: true},
	{Name: "fingerprint", Kind: KindString, Required: true},
}, auditFields...)

func (op *ChangeFingerprint) Kind() string    { return "change_fingerprint" }
func (op *ChangeFingerprint) Fields() []Field { return changeFingerprintFields }

func (op *ChangeFingerprint) Args() Args {
	a := Args{
		"person":      op.Person.Key(),
		"fingerprint": op.Fingerprint,
	}
	op.encodeAudit(a)
	return a
}

func (op *ChangeFingerprint) Decode(ctx context.Context, res *Resolver, a Args) error {
	if err := op.decodeAudit(ctx, res, a); err != nil {
		return err
	}
	var err error
	if op.Person, _, err = res.Person(ctx, a, "person", true); err != nil {
		return err
	}
	if op.Fingerprint, err = res.String(a, "fingerprint", true); err != nil {
		return err
	}
	op.audit.FillNotes(fmt.Sprintf("changed fingerprint of %s", op.Person.Key()))
	return nil
}

func (op *ChangeFingerprint) Apply(ctx context.Context, env *Env) error {
	if err := env.Repo.UpdatePersonFingerprintTx(ctx, env.Tx, op.Person.ID, op.Fingerprint); err != nil {
		return fmt.Errorf("update fingerprint: %w", err)
	}
	return op.appendLog(ctx, env, nil, nil, domain.ActionFprChange, true)
}
