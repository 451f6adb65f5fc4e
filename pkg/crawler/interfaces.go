package crawler

import (
	"context"

	"cblcrawl/pkg/graphql"
)

// Fetcher retrieves one page of the connection after a cursor
type Fetcher interface {
	Fetch(ctx context.Context, after *string, first int) (*graphql.Page, error)
}

// RowWriter appends rows to the dataset. Rows become durable on Flush;
// Discard drops rows buffered since the last Flush.
type RowWriter interface {
	WriteRow(row []string) error
	Flush() error
	Discard()
	Close() error
}

// Reporter receives human-facing progress events
type Reporter interface {
	Batch(fetched, total int)
	Checkpoint(total int)
	Exhausted()
	Interrupted()
}

type nopReporter struct{}

func (nopReporter) Batch(int, int) {}
func (nopReporter) Checkpoint(int) {}
func (nopReporter) Exhausted()     {}
func (nopReporter) Interrupted()   {}
