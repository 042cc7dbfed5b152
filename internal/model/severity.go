package model

// Severity represents the impact tier of an accessibility issue.
// The four tiers mirror the ordering used by common WCAG rule engines:
// critical > serious > moderate > minor.
//
// Design decision: We use iota-based constants rather than strings for
// efficient comparison and sorting; ParseSeverity and String convert at
// the edges (rule engine input, report output, database).
type Severity int

const (
	// SeverityMinor indicates a cosmetic or low-impact barrier.
	SeverityMinor Severity = iota

	// SeverityModerate indicates a barrier that degrades the experience
	// for assistive-technology users but has workarounds.
	SeverityModerate

	// SeveritySerious indicates a barrier that blocks some users from
	// completing a task.
	SeveritySerious

	// SeverityCritical indicates a barrier that makes content unusable
	// for assistive-technology users.
	SeverityCritical
)

// String returns the lower-case name used on the wire and in reports.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeveritySerious:
		return "serious"
	case SeverityModerate:
		return "moderate"
	case SeverityMinor:
		return "minor"
	default:
		return "unknown"
	}
}

// Weight returns the score deduction applied per unique issue of this
// severity when computing the 0-100 accessibility score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeveritySerious:
		return 5
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 1
	}
}

// ParseSeverity converts a rule-engine impact string to a Severity.
// Unknown values map to SeverityMinor so a misbehaving evaluator can
// never inflate the score deduction.
func ParseSeverity(impact string) Severity {
	switch impact {
	case "critical":
		return SeverityCritical
	case "serious":
		return SeveritySerious
	case "moderate":
		return SeverityModerate
	default:
		return SeverityMinor
	}
}
