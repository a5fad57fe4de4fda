package perms_test

import (
	"testing"

	"nmflow/internal/domain"
	"nmflow/internal/perms"
	"nmflow/internal/repo"
)

func person(id int64, status domain.Status) domain.Person {
	return domain.Person{ID: id, Email: "p@example.org", Status: status}
}

func admin(id int64) perms.Visitor {
	return perms.Visitor{
		Person: person(id, domain.StatusDDU),
		AM:     &domain.AM{ID: id, PersonID: id, IsAM: true, IsFD: true},
	}
}

func view(applicant domain.Person, applyingFor domain.Status, reqs ...domain.RequirementType) repo.ProcessView {
	v := repo.ProcessView{
		Process: domain.Process{ID: 1, PersonID: applicant.ID, ApplyingFor: applyingFor},
		Person:  applicant,
	}
	for i, t := range reqs {
		v.Requirements = append(v.Requirements, domain.Requirement{ID: int64(i + 1), ProcessID: 1, Type: t})
	}
	return v
}

func freeze(v repo.ProcessView) repo.ProcessView {
	by, at := int64(99), "2024-01-01T00:00:00Z"
	v.Process.FrozenBy, v.Process.FrozenTime = &by, &at
	return v
}

func approve(v repo.ProcessView) repo.ProcessView {
	v = freeze(v)
	by, at := int64(99), "2024-01-02T00:00:00Z"
	v.Process.ApprovedBy, v.Process.ApprovedTime = &by, &at
	return v
}

func closeView(v repo.ProcessView) repo.ProcessView {
	v = approve(v)
	by, at := int64(99), "2024-01-03T00:00:00Z"
	v.Process.ClosedBy, v.Process.ClosedTime = &by, &at
	return v
}

func withAM(v repo.ProcessView, amPerson domain.Person) repo.ProcessView {
	am := domain.AM{ID: amPerson.ID, PersonID: amPerson.ID, IsAM: true}
	v.CurrentAM = &am
	p := amPerson
	v.CurrentAMPerson = &p
	v.LastAMPerson = &p
	return v
}

func TestAnonymousHasNothing(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	v := view(applicant, domain.StatusDM, domain.ReqIntent)
	if s := perms.PersonTokens(perms.Anonymous, applicant); len(s) != 0 {
		t.Fatalf("anonymous person tokens: %v", s.Sorted())
	}
	if s := perms.ProcessTokens(perms.Anonymous, v); len(s) != 0 {
		t.Fatalf("anonymous process tokens: %v", s.Sorted())
	}
}

func TestStrangerHasNothing(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	stranger := perms.Visitor{Person: person(2, domain.StatusDC)}
	v := view(applicant, domain.StatusDM, domain.ReqIntent, domain.ReqAdvocate)
	if s := perms.ProcessTokens(stranger, v); len(s) != 0 {
		t.Fatalf("stranger process tokens: %v", s.Sorted())
	}
}

func TestApplicantEditsOwnStatementsUntilFrozen(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	self := perms.Visitor{Person: applicant}
	v := view(applicant, domain.StatusDM, domain.ReqIntent)

	s := perms.ProcessTokens(self, v)
	if !s.Has(perms.EditBio) || !s.Has(perms.EditStatements) {
		t.Fatalf("open process: applicant tokens = %v", s.Sorted())
	}
	if s.Has(perms.ProcFreeze) || s.Has(perms.ReqApprove) {
		t.Fatalf("applicant holds reviewer tokens: %v", s.Sorted())
	}

	s = perms.ProcessTokens(self, freeze(v))
	if s.Has(perms.EditStatements) {
		t.Fatal("frozen process: applicant may still edit statements")
	}
	if !s.Has(perms.EditBio) {
		t.Fatal("freezing should not revoke bio editing")
	}
}

func TestAdminPhaseTokens(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	fd := admin(2)
	v := view(applicant, domain.StatusDM, domain.ReqIntent)

	s := perms.ProcessTokens(fd, v)
	if !s.Has(perms.ProcFreeze) || !s.Has(perms.AMAssign) || !s.Has(perms.EditStatements) {
		t.Fatalf("open process: admin tokens = %v", s.Sorted())
	}
	if s.Has(perms.ProcApprove) || s.Has(perms.ProcClose) {
		t.Fatalf("open process: admin may not approve or close: %v", s.Sorted())
	}

	s = perms.ProcessTokens(fd, freeze(v))
	if !s.Has(perms.ProcUnfreeze) || !s.Has(perms.ProcApprove) {
		t.Fatalf("frozen process: admin tokens = %v", s.Sorted())
	}
	if s.Has(perms.ProcFreeze) {
		t.Fatal("frozen process still offers proc_freeze")
	}

	s = perms.ProcessTokens(fd, approve(v))
	if !s.Has(perms.ProcUnapprove) || !s.Has(perms.ProcClose) {
		t.Fatalf("approved process: admin tokens = %v", s.Sorted())
	}

	s = perms.ProcessTokens(fd, closeView(v))
	for _, tok := range []string{
		perms.ProcFreeze, perms.ProcUnfreeze, perms.ProcApprove,
		perms.ProcUnapprove, perms.ProcClose, perms.EditStatements,
		perms.ReqApprove, perms.AMAssign,
	} {
		if s.Has(tok) {
			t.Fatalf("closed process still offers %s", tok)
		}
	}
	// read-side person tokens survive closing
	if !s.Has(perms.FDComments) {
		t.Fatal("closed process dropped fd_comments")
	}
}

func TestCurrentAMTokens(t *testing.T) {
	applicant := person(1, domain.StatusDM)
	amPerson := person(3, domain.StatusDDU)
	am := perms.Visitor{Person: amPerson, AM: &domain.AM{ID: 3, PersonID: 3, IsAM: true}}
	v := withAM(view(applicant, domain.StatusDDU, domain.ReqIntent, domain.ReqAMOK), amPerson)

	s := perms.ProcessTokens(am, v)
	if !s.Has(perms.EditStatements) || !s.Has(perms.ReqApprove) {
		t.Fatalf("am tokens = %v", s.Sorted())
	}
	if !s.Has(perms.ProcFreeze) {
		t.Fatal("am of a process with an am_ok requirement should be able to freeze it")
	}
	if s.Has(perms.ProcApprove) || s.Has(perms.AMAssign) {
		t.Fatalf("am holds admin-only tokens: %v", s.Sorted())
	}

	// no am_ok requirement, no freeze handover
	v2 := withAM(view(applicant, domain.StatusDMGA, domain.ReqIntent), amPerson)
	if perms.ProcessTokens(am, v2).Has(perms.ProcFreeze) {
		t.Fatal("am may freeze a process without an am_ok requirement")
	}
}

func TestAdvocateRequirementTokens(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	v := view(applicant, domain.StatusDCGA, domain.ReqIntent, domain.ReqAdvocate)
	adv, _ := v.Requirement(domain.ReqAdvocate)
	intent, _ := v.Requirement(domain.ReqIntent)

	dm := perms.Visitor{Person: person(5, domain.StatusDM)}
	if !perms.RequirementTokens(dm, v, adv).Has(perms.EditStatements) {
		t.Fatal("a dm should be able to advocate a dc_ga application")
	}
	if perms.RequirementTokens(dm, v, intent).Has(perms.EditStatements) {
		t.Fatal("advocacy capability leaked to the intent requirement")
	}

	dc := perms.Visitor{Person: person(6, domain.StatusDC)}
	if perms.RequirementTokens(dc, v, adv).Has(perms.EditStatements) {
		t.Fatal("a dc cannot advocate")
	}

	// dd targets take developers only
	vdd := view(person(1, domain.StatusDM), domain.StatusDDU, domain.ReqAdvocate)
	advDD, _ := vdd.Requirement(domain.ReqAdvocate)
	if perms.RequirementTokens(dm, vdd, advDD).Has(perms.EditStatements) {
		t.Fatal("a dm cannot advocate a dd application")
	}
	dd := perms.Visitor{Person: person(7, domain.StatusDDNU)}
	if !perms.RequirementTokens(dd, vdd, advDD).Has(perms.EditStatements) {
		t.Fatal("a dd should be able to advocate a dd application")
	}

	// self-advocacy: a dm applying for dd_u writes their own advocacy
	self := perms.Visitor{Person: vdd.Person}
	if !perms.RequirementTokens(self, vdd, advDD).Has(perms.EditStatements) {
		t.Fatal("a dm applying for dd_u may self-advocate")
	}
}

func TestRequirementTokensFrozen(t *testing.T) {
	applicant := person(1, domain.StatusDC)
	v := freeze(view(applicant, domain.StatusDCGA, domain.ReqAdvocate))
	adv, _ := v.Requirement(domain.ReqAdvocate)
	dm := perms.Visitor{Person: person(5, domain.StatusDM)}
	if perms.RequirementTokens(dm, v, adv).Has(perms.EditStatements) {
		t.Fatal("advocacy stays open on a frozen process")
	}
}

func TestTokenSetOps(t *testing.T) {
	a := perms.TokenSet{perms.EditBio: {}, perms.ViewMbox: {}}
	b := perms.TokenSet{perms.ViewMbox: {}, perms.FDComments: {}}
	u := a.Union(b)
	if len(u) != 3 || !u.Has(perms.EditBio) || !u.Has(perms.FDComments) {
		t.Fatalf("union = %v", u.Sorted())
	}
	if got := u.String(); got != "edit_bio fd_comments view_mbox" {
		t.Fatalf("string = %q", got)
	}
}
