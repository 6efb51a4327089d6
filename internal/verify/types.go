package verify

// Expectation declares how a probe's outcome should be judged.
type Expectation string

const (
	// ExpectBlocked means the sandbox policy should stop the command: any
	// nonzero exit or a recognizable denial message in the output counts.
	ExpectBlocked Expectation = "blocked"
	// ExpectSuccess means the command must complete cleanly (exit 0).
	ExpectSuccess Expectation = "success"
	// ExpectUnchecked records the outcome without judging it.
	ExpectUnchecked Expectation = "unchecked"
)

type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictFail  Verdict = "fail"
	VerdictError Verdict = "error"
)

// Probe is one command sent to the sandbox together with the expected
// policy behavior.
type Probe struct {
	Name        string      `json:"name"`
	Command     string      `json:"command"`
	Expect      Expectation `json:"expect"`
	Description string      `json:"description"`
}

// Category groups probes that exercise one policy area. Catalog order is
// execution order.
type Category struct {
	Key         string  `json:"key"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Probes      []Probe `json:"probes"`
}

type ProbeResult struct {
	Category    string      `json:"category"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Command     string      `json:"command"`
	Expect      Expectation `json:"expect"`
	Verdict     Verdict     `json:"verdict"`
	Reason      string      `json:"reason,omitempty"`
	ExitStatus  int         `json:"exit_status"`
	Output      string      `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
}

// RunSummary tallies verdicts across a run. Each probe lands in exactly one
// bucket, so Total always equals the number of probes executed.
type RunSummary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

func (s *RunSummary) Add(v Verdict) {
	switch v {
	case VerdictPass:
		s.Passed++
	case VerdictFail:
		s.Failed++
	default:
		s.Errored++
	}
}

func (s RunSummary) Total() int {
	return s.Passed + s.Failed + s.Errored
}

type Report struct {
	GeneratedAt string        `json:"generated_at"`
	Endpoint    string        `json:"endpoint"`
	BlueprintID string        `json:"blueprint_id,omitempty"`
	DevboxID    string        `json:"devbox_id,omitempty"`
	Results     []ProbeResult `json:"results"`
	RunSummary
}
