package crawler

// Outcome is the terminal state of a crawl
type Outcome int

const (
	// Completed means the remote collection was exhausted
	Completed Outcome = iota
	// Interrupted means a signal or cancellation stopped the crawl
	Interrupted
	// Failed means a fetch, write or checkpoint error stopped the crawl
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes a finished crawl. Cursor is the value last saved to the
// checkpoint; Total counts rows written during this run only.
type Result struct {
	RunID   string
	Outcome Outcome
	Total   int
	Cursor  *string
	Err     error
}
