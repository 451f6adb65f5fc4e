package ui

import "fmt"

// BatchReporter prints crawl progress, one line per page
type BatchReporter struct {
	noun string
}

// NewBatchReporter creates a reporter; noun names the records ("bans")
func NewBatchReporter(noun string) *BatchReporter {
	return &BatchReporter{noun: noun}
}

// Batch reports a written page
func (r *BatchReporter) Batch(fetched, total int) {
	Println(fmt.Sprintf("Fetched %d %s in this batch. Total: %d", fetched, r.noun, total))
}

// Checkpoint reports a periodic checkpoint
func (r *BatchReporter) Checkpoint(total int) {
	Println(fmt.Sprintf("Checkpoint saved at %d %s.", total, r.noun))
}

// Exhausted reports an empty page
func (r *BatchReporter) Exhausted() {
	Println(fmt.Sprintf("No more %s to fetch. Exiting.", r.noun))
}

// Interrupted reports a received interrupt
func (r *BatchReporter) Interrupted() {
	PrintWarning("\nInterrupt received. Saving progress and exiting...")
}
