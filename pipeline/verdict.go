package pipeline

import "strings"

// Review markers. Matching is exact and case-sensitive.
const (
	MarkerRevise = "DECISION: REVISE"
	MarkerAccept = "DECISION: ACCEPT"
)

// Verdict is the parsed outcome of a review.
type Verdict string

const (
	VerdictRevise    Verdict = "revise"
	VerdictAccept    Verdict = "accept"
	VerdictAmbiguous Verdict = "ambiguous"
)

// NeedsRevision reports whether v sends the draft back. An ambiguous
// verdict does.
func (v Verdict) NeedsRevision() bool {
	return v != VerdictAccept
}

// ParseVerdict scans review text for the decision markers. Exactly one
// marker yields its verdict; none or both yield VerdictAmbiguous.
func ParseVerdict(text string) Verdict {
	revise := strings.Contains(text, MarkerRevise)
	accept := strings.Contains(text, MarkerAccept)
	switch {
	case revise && !accept:
		return VerdictRevise
	case accept && !revise:
		return VerdictAccept
	default:
		return VerdictAmbiguous
	}
}
