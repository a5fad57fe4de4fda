package repo

import (
	"context"
	"errors"

	"nmflow/internal/domain"
)

// ProcessView is the read-only snapshot the permission engine and the
// requirement status computation work from.
type ProcessView struct {
	Process         domain.Process
	Person          domain.Person
	Requirements    []domain.Requirement
	CurrentAM       *domain.AM
	CurrentAMPerson *domain.Person
	// LastAMPerson is the current AM or, when none, the most recently
	// unassigned one.
	LastAMPerson *domain.Person
}

// HasRequirement reports whether the process carries a requirement of the type.
func (v ProcessView) HasRequirement(t domain.RequirementType) bool {
	for _, rq := range v.Requirements {
		if rq.Type == t {
			return true
		}
	}
	return false
}

// Requirement returns the process requirement of the given type, if any.
func (v ProcessView) Requirement(t domain.RequirementType) (domain.Requirement, bool) {
	for _, rq := range v.Requirements {
		if rq.Type == t {
			return rq, true
		}
	}
	return domain.Requirement{}, false
}

// GetProcessView assembles the process snapshot.
func (r Repo) GetProcessView(ctx context.Context, processID int64) (ProcessView, error) {
	var v ProcessView
	proc, err := r.GetProcess(ctx, processID)
	if err != nil {
		return v, err
	}
	v.Process = proc
	v.Person, err = r.GetPerson(ctx, proc.PersonID)
	if err != nil {
		return v, err
	}
	v.Requirements, err = r.RequirementsByProcess(ctx, processID)
	if err != nil {
		return v, err
	}
	cur, err := r.CurrentAssignment(ctx, processID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return v, err
	}
	if err == nil {
		am, err := r.GetAM(ctx, cur.AMID)
		if err != nil {
			return v, err
		}
		p, err := r.GetPerson(ctx, am.PersonID)
		if err != nil {
			return v, err
		}
		v.CurrentAM = &am
		v.CurrentAMPerson = &p
		v.LastAMPerson = &p
		return v, nil
	}
	last, err := r.LastAssignment(ctx, processID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return v, nil
		}
		return v, err
	}
	am, err := r.GetAM(ctx, last.AMID)
	if err != nil {
		return v, err
	}
	p, err := r.GetPerson(ctx, am.PersonID)
	if err != nil {
		return v, err
	}
	v.LastAMPerson = &p
	return v, nil
}
