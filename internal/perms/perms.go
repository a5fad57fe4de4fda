// Package perms computes what a visitor may do to a person, a process and
// its requirements. Permissions are capability tokens accumulated through
// additive layers: a later layer can add capabilities, never revoke them.
package perms

import (
	"sort"
	"strings"

	"nmflow/internal/domain"
	"nmflow/internal/repo"
)

// Capability tokens.
const (
	EditBio        = "edit_bio"
	FDComments     = "fd_comments"
	ViewMbox       = "view_mbox"
	ProcFreeze     = "proc_freeze"
	ProcUnfreeze   = "proc_unfreeze"
	ProcApprove    = "proc_approve"
	ProcUnapprove  = "proc_unapprove"
	ProcClose      = "proc_close"
	AMAssign       = "am_assign"
	AMUnassign     = "am_unassign"
	EditStatements = "edit_statements"
	ReqApprove     = "req_approve"
	ReqUnapprove   = "req_unapprove"
	UpdateKeycheck = "update_keycheck"
)

// TokenSet is an unordered set of capability tokens.
type TokenSet map[string]struct{}

func (s TokenSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

func (s TokenSet) add(tokens ...string) {
	for _, t := range tokens {
		s[t] = struct{}{}
	}
}

// Union merges other into a copy of s.
func (s TokenSet) Union(other TokenSet) TokenSet {
	res := make(TokenSet, len(s)+len(other))
	for t := range s {
		res[t] = struct{}{}
	}
	for t := range other {
		res[t] = struct{}{}
	}
	return res
}

// Sorted returns the tokens in lexical order, for display and stable tests.
func (s TokenSet) Sorted() []string {
	res := make([]string, 0, len(s))
	for t := range s {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

func (s TokenSet) String() string { return strings.Join(s.Sorted(), " ") }

// Visitor is the acting person together with their AM profile, when one
// exists.
type Visitor struct {
	Person domain.Person
	AM     *domain.AM
}

// Anonymous is the visitor with no identity; it holds no capabilities.
var Anonymous = Visitor{}

func (v Visitor) known() bool { return v.Person.ID != 0 }

// Admin reports whether the visitor is on Front Desk or is a Debian Account
// Manager. Both teams hold the full administrative token set.
func (v Visitor) Admin() bool { return v.AM != nil && v.AM.Admin() }

// PersonTokens is the first layer: capabilities on a person independent of
// any process.
func PersonTokens(v Visitor, subject domain.Person) TokenSet {
	s := make(TokenSet)
	if !v.known() {
		return s
	}
	if v.Person.ID == subject.ID {
		s.add(EditBio)
	}
	if v.Admin() {
		s.add(EditBio, FDComments, ViewMbox)
	}
	return s
}

// ProcessTokens layers process-phase capabilities on top of PersonTokens.
// The frozen phase moves statement editing and requirement approval from the
// applicant's side to the reviewers; a closed process yields no mutating
// capability at all.
func ProcessTokens(v Visitor, view repo.ProcessView) TokenSet {
	s := PersonTokens(v, view.Person)
	if !v.known() || view.Process.Closed() {
		return s
	}
	isSubject := v.Person.ID == view.Person.ID
	isCurrentAM := view.CurrentAMPerson != nil && view.CurrentAMPerson.ID == v.Person.ID
	frozen := view.Process.Frozen()
	approved := view.Process.Approved()

	if isCurrentAM {
		s.add(FDComments, ViewMbox)
	}
	if !frozen {
		if isSubject {
			s.add(EditStatements)
		}
		if isCurrentAM {
			s.add(EditStatements, ReqApprove, ReqUnapprove)
		}
	}
	if v.Admin() {
		s.add(AMAssign, AMUnassign, EditStatements, ReqApprove, ReqUnapprove)
		if !frozen {
			s.add(ProcFreeze)
		}
		if frozen && !approved {
			s.add(ProcUnfreeze, ProcApprove)
		}
		if approved {
			s.add(ProcUnapprove, ProcClose)
		}
	} else if isCurrentAM && !frozen && view.HasRequirement(domain.ReqAMOK) {
		// the AM hands the process over to review by freezing it
		s.add(ProcFreeze)
	}
	return s
}

// RequirementTokens is the innermost layer: per-requirement refinements of
// the process capabilities.
func RequirementTokens(v Visitor, view repo.ProcessView, rq domain.Requirement) TokenSet {
	s := ProcessTokens(v, view)
	if !v.known() || view.Process.Closed() || view.Process.Frozen() {
		return s
	}
	isCurrentAM := view.CurrentAMPerson != nil && view.CurrentAMPerson.ID == v.Person.ID
	switch rq.Type {
	case domain.ReqAdvocate:
		if v.Person.ID != view.Person.ID && domain.CanAdvocate(v.Person.Status, view.Process.ApplyingFor) {
			s.add(EditStatements)
		}
		if domain.CanSelfAdvocate(view.Person.Status, view.Process.ApplyingFor) && v.Person.ID == view.Person.ID {
			s.add(EditStatements)
		}
	case domain.ReqAMOK:
		if isCurrentAM {
			s.add(EditStatements, ReqApprove, ReqUnapprove)
		}
	case domain.ReqKeycheck:
		if v.Admin() || isCurrentAM {
			s.add(UpdateKeycheck)
		}
	}
	return s
}
