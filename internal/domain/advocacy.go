package domain

// CanAdvocate reports whether a visitor with the given status may advocate an
// applicant towards the target status.
func CanAdvocate(advocate Status, target Status) bool {
	switch target {
	case StatusDCGA:
		// guest accounts can be advocated by maintainers and developers
		return advocate == StatusDM || advocate == StatusDMGA || advocate.IsDD()
	case StatusDM, StatusDMGA, StatusDDU, StatusDDNU:
		return advocate.IsDD()
	}
	return false
}

// CanSelfAdvocate reports whether the applicant may advocate themselves for
// the transition. The only allowed pair is a Debian Maintainer applying to
// become an uploading Developer.
func CanSelfAdvocate(from Status, target Status) bool {
	return from == StatusDM && target == StatusDDU
}
