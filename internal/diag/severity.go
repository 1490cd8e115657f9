package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevNote is for informational diagnostics.
	SevNote Severity = iota
	// SevWarning is for diagnostics that do not fail a build.
	SevWarning
	// SevDanger is for diagnostics that signal likely breakage but still
	// produce a usable graph.
	SevDanger
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevNote:
		return "NOTE"
	case SevWarning:
		return "WARNING"
	case SevDanger:
		return "DANGER"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}
