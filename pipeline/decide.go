package pipeline

import "github.com/dshills/draftloop/graph"

// DefaultRevisionCeiling is the number of revision passes allowed when the
// configuration does not set one.
const DefaultRevisionCeiling = 3

// Routing reasons recorded on the review branch.
const (
	ReasonRevisionRequested = "revision_requested"
	ReasonRevisionDefaulted = "revision_defaulted"
	ReasonCeilingReached    = "ceiling_reached"
	ReasonAccepted          = "accepted"
)

// Decide returns the router evaluated after Review. It loops back to Draft
// while a revision is wanted and fewer than ceiling revisions have run;
// otherwise it moves on to Enrich.
func Decide(ceiling int) graph.Router[State] {
	return func(s State) graph.Decision {
		switch {
		case s.NeedsRevision && s.RevisionCount < ceiling:
			reason := ReasonRevisionRequested
			if s.Verdict == VerdictAmbiguous {
				reason = ReasonRevisionDefaulted
			}
			return graph.Decision{To: StageDraft, Reason: reason}
		case s.NeedsRevision:
			return graph.Decision{To: StageEnrich, Reason: ReasonCeilingReached}
		default:
			return graph.Decision{To: StageEnrich, Reason: ReasonAccepted}
		}
	}
}
