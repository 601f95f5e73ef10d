package reporting

import "time"

// Report describes one stored scenario run.
type Report struct {
	GeneratedAt time.Time

	Run     RunSummary
	Steps   []StepRow   // execution order
	Samples []SampleRow // sampled_at order
}

// RunSummary is the header of a run report and one row of a run index.
type RunSummary struct {
	RunID       string
	Token       string
	Account     string
	StartedAt   int64 // Unix ms
	FinishedAt  int64 // Unix ms
	InitialMcap string
	LastStep    string // furthest passed step, DONE on success
	FailedStep  string // empty on success
	Passed      bool
}

// StepRow is one step of the state machine.
type StepRow struct {
	Step       string
	Status     string // PASS | FAIL | SKIPPED
	ErrorKind  string
	Error      string
	DurationMs int64
}

// SampleRow is one market cap reconciliation.
type SampleRow struct {
	Step            string
	Phase           string
	SampledAt       int64 // Unix ms
	OnChainMcap     string
	ReferenceMcap   string
	DeviationPct    float64
	WithinTolerance bool
	TokenBalance    string // decimal, 18 places
	NativeBalance   string // decimal, 18 places
	FeedPrice       string
	Reserve0        string
	Reserve1        string
	PairAmount      string
}
