package bids

// Exclusions is the resolved set of subject and session labels a run must
// skip. It is built exactly once and then consulted both when assembling
// task graphs and when reconciling outputs, so the two phases can never
// disagree about what was in scope.
type Exclusions struct {
	subjects map[string]bool
	sessions map[string]bool
}

// ExclusionSpec carries the raw include/exclude lists from the operator.
// An include list, when non-empty, implicitly excludes every label not on it.
type ExclusionSpec struct {
	ParticipantInclude []string
	ParticipantExclude []string
	SessionInclude     []string
	SessionExclude     []string
}

// BuildExclusions resolves spec against the full label universe of the
// dataset. Labels are accepted with or without their "sub-"/"ses-" prefixes.
func BuildExclusions(layout *Layout, spec ExclusionSpec) Exclusions {
	ex := Exclusions{
		subjects: make(map[string]bool),
		sessions: make(map[string]bool),
	}

	for _, label := range spec.ParticipantExclude {
		ex.subjects[TrimSubjectPrefix(label)] = true
	}
	if len(spec.ParticipantInclude) > 0 {
		included := make(map[string]bool, len(spec.ParticipantInclude))
		for _, label := range spec.ParticipantInclude {
			included[TrimSubjectPrefix(label)] = true
		}
		for _, subject := range layout.Subjects() {
			if !included[subject] {
				ex.subjects[subject] = true
			}
		}
	}

	for _, label := range spec.SessionExclude {
		ex.sessions[TrimSessionPrefix(label)] = true
	}
	if len(spec.SessionInclude) > 0 {
		included := make(map[string]bool, len(spec.SessionInclude))
		for _, label := range spec.SessionInclude {
			included[TrimSessionPrefix(label)] = true
		}
		for _, subject := range layout.Subjects() {
			for _, session := range layout.Sessions(subject) {
				if !included[session] {
					ex.sessions[session] = true
				}
			}
		}
	}

	return ex
}

// Subject reports whether the given participant label is excluded.
func (e Exclusions) Subject(label string) bool {
	return e.subjects[TrimSubjectPrefix(label)]
}

// Session reports whether the given session label is excluded. The empty
// label (a dataset without sessions) is never excluded.
func (e Exclusions) Session(label string) bool {
	if label == "" {
		return false
	}
	return e.sessions[TrimSessionPrefix(label)]
}

// File reports whether the file is excluded through either its subject or
// its session entity.
func (e Exclusions) File(f File) bool {
	return e.Subject(f.Entities.Subject) || e.Session(f.Entities.Session)
}
