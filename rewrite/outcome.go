package rewrite

// Outcome records what happened to one image reference.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeRewritten
	OutcomePublic
	OutcomeResolutionMiss
	OutcomeLookupMiss
	OutcomeOptimizationFailure
)

var outcomeNames = map[Outcome]string{
	OutcomeSkipped:             "skipped",
	OutcomeRewritten:           "rewritten",
	OutcomePublic:              "public",
	OutcomeResolutionMiss:      "resolution-miss",
	OutcomeLookupMiss:          "lookup-miss",
	OutcomeOptimizationFailure: "optimization-failure",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Changed reports whether the reference was written back.
func (o Outcome) Changed() bool {
	return o == OutcomeRewritten || o == OutcomePublic
}

// Result is the outcome for one reference, in document order.
type Result struct {
	Raw     string
	URL     string // empty unless Outcome.Changed()
	Outcome Outcome
}

// Report collects the results of one Rewrite call.
type Report struct {
	Results []Result
}

// Count returns how many references ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
