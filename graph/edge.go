package graph

// END is the pseudo-stage that terminates a run. It may appear as the target
// of any edge but can never be registered as a node.
const END = "END"

// Decision is what a Router returns: the chosen candidate plus a short,
// machine-friendly reason that ends up in the transition log.
type Decision struct {
	To     string
	Reason string
}

// Router picks the next stage after a conditional routing point.
//
// Routers should be pure functions of the state: the same state must always
// produce the same Decision.
//
// Type parameter S is the state type to evaluate.
type Router[S any] func(state S) Decision

// Loop declares a backward edge out of a conditional routing point. Max bounds
// how many times the edge may be taken in a single run; exceeding it is fatal.
// A Max of zero declares an edge that may never be taken.
type Loop struct {
	To  string
	Max int
}

// branch is the conditional routing rule for one stage.
type branch[S any] struct {
	from       string
	route      Router[S]
	candidates []string
	loops      map[string]int
}

func (b *branch[S]) allows(to string) bool {
	for _, c := range b.candidates {
		if c == to {
			return true
		}
	}
	return false
}
