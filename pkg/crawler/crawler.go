package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"cblcrawl/pkg/cbl"
	"cblcrawl/pkg/checkpoint"
	cblerrors "cblcrawl/pkg/errors"
	"cblcrawl/pkg/graphql"
	"cblcrawl/pkg/logger"
	"cblcrawl/pkg/ratelimit"
	"cblcrawl/pkg/retry"
	"cblcrawl/pkg/storage"

	"github.com/google/uuid"
)

const (
	DefaultPageSize        = 500
	DefaultCheckpointEvery = 10000
)

// Options wires a Crawler. Entity, Fetcher and Store are required; either
// OutputPath or OpenWriter must be set.
type Options struct {
	Entity  *cbl.Entity
	Fetcher Fetcher
	Store   checkpoint.Store

	OutputPath string
	OpenWriter func() (RowWriter, error)

	PageSize        int
	CheckpointEvery int

	// Pacer runs between pages; Limiter runs before every fetch attempt
	Pacer   ratelimit.Limiter
	Limiter ratelimit.Limiter
	Retrier *retry.Retrier

	Reporter Reporter
	Logger   logger.Logger

	// Signals that interrupt the crawl; defaults to SIGINT and SIGTERM
	Signals []os.Signal
}

// Crawler walks a paginated collection into an append-only dataset
type Crawler struct {
	opts   Options
	logger logger.Logger
}

// New validates opts and fills defaults
func New(opts Options) (*Crawler, error) {
	if opts.Entity == nil {
		return nil, errors.New("crawler: entity is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if opts.Store == nil {
		return nil, errors.New("crawler: checkpoint store is required")
	}
	if opts.OpenWriter == nil {
		if opts.OutputPath == "" {
			return nil, errors.New("crawler: output path is required")
		}
		path, columns := opts.OutputPath, opts.Entity.Columns
		opts.OpenWriter = func() (RowWriter, error) {
			return storage.Open(path, columns)
		}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.Unlimited{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if len(opts.Signals) == 0 {
		opts.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	return &Crawler{opts: opts, logger: opts.Logger.WithField("entity", opts.Entity.Name)}, nil
}

// run holds the state of one Run call
type run struct {
	*Crawler
	id          string
	log         logger.Logger
	cell        *checkpoint.CursorCell
	writer      RowWriter
	total       int
	sinceSave   int
	interrupted atomic.Bool
}

// Run crawls until the collection is exhausted, ctx is cancelled, an
// interrupt signal arrives or an error occurs. The cursor is saved on every
// terminal path before the writer is closed.
func (c *Crawler) Run(ctx context.Context) Result {
	r := &run{Crawler: c, id: uuid.NewString()}
	r.log = c.logger.WithField("run_id", r.id)

	cursor, err := c.opts.Store.Load(ctx)
	if err != nil {
		return Result{RunID: r.id, Outcome: Failed, Err: fmt.Errorf("failed to load checkpoint: %w", err)}
	}
	r.cell = checkpoint.NewCursorCell(cursor)

	r.writer, err = c.opts.OpenWriter()
	if err != nil {
		return Result{RunID: r.id, Outcome: Failed, Cursor: cursor, Err: fmt.Errorf("failed to open output: %w", err)}
	}

	r.log.InfoWithFields("Crawl started", map[string]interface{}{
		"cursor":           cursor,
		"page_size":        c.opts.PageSize,
		"checkpoint_every": c.opts.CheckpointEvery,
		"checkpoint":       c.opts.Store.Location(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatcher := r.watch(cancel)

	outcome, runErr := r.loop(ctx)
	stopWatcher()

	return r.finish(outcome, runErr)
}

// watch saves the current cursor and cancels the crawl when a signal arrives
func (r *run) watch(cancel context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, r.opts.Signals...)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigCh:
			r.interrupted.Store(true)
			r.opts.Reporter.Interrupted()
			r.log.WarnWithFields("Interrupt received, saving progress", map[string]interface{}{"signal": sig.String()})
			if err := r.opts.Store.Save(context.Background(), r.cell.Get()); err != nil {
				r.log.WithError(err).Error("Failed to save checkpoint on interrupt")
			}
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
		wg.Wait()
	}
}

func (r *run) loop(ctx context.Context) (Outcome, error) {
	for {
		page, err := retry.Do(ctx, r.opts.Retrier, r.fetch)
		if err != nil {
			return r.stopped(ctx, fmt.Errorf("failed to fetch %s: %w", r.opts.Entity.Noun, err))
		}

		if len(page.Edges) == 0 {
			r.opts.Reporter.Exhausted()
			r.log.Info("Empty page, collection exhausted")
			return r.completed()
		}

		if err := r.writePage(page); err != nil {
			return Failed, err
		}

		n := len(page.Edges)
		r.total += n
		r.sinceSave += n
		if page.EndCursor != nil {
			r.cell.Set(page.EndCursor)
		}
		r.opts.Reporter.Batch(n, r.total)
		r.log.DebugWithFields("Page written", map[string]interface{}{
			"rows":   n,
			"total":  r.total,
			"cursor": page.EndCursor,
		})

		if r.sinceSave >= r.opts.CheckpointEvery {
			if err := r.opts.Store.Save(context.Background(), r.cell.Get()); err != nil {
				return Failed, fmt.Errorf("failed to save checkpoint: %w", err)
			}
			r.sinceSave = 0
			r.opts.Reporter.Checkpoint(r.total)
			logger.LogCheckpoint(r.log, r.opts.Entity.Name, r.cell.Get(), r.total)
		}

		if !page.HasNextPage {
			return r.completed()
		}
		if page.EndCursor == nil {
			return Failed, cblerrors.New(cblerrors.ErrorTypeParsing, 0, "page reports more results but no end cursor")
		}

		if err := r.opts.Pacer.Wait(ctx); err != nil {
			return r.stopped(ctx, err)
		}
	}
}

// fetch is one attempt at the page after the current cursor. Every attempt,
// retries included, waits on the limiter; a rate_limit response slows it
// down when it supports that.
func (r *run) fetch(ctx context.Context) (*graphql.Page, error) {
	if err := r.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	page, err := r.opts.Fetcher.Fetch(ctx, r.cell.Get(), r.opts.PageSize)
	if err != nil && cblerrors.TypeOf(err) == cblerrors.ErrorTypeRateLimit {
		if adaptive, ok := r.opts.Limiter.(ratelimit.Adaptive); ok {
			rps := adaptive.Throttle()
			r.log.WarnWithFields("Rate limited, lowering request rate", map[string]interface{}{
				"requests_per_second": rps,
			})
		}
	}
	return page, err
}

// writePage projects every node before buffering so that a bad node leaves
// nothing half-written, then flushes the page as one unit.
func (r *run) writePage(page *graphql.Page) error {
	rows := make([][]string, 0, len(page.Edges))
	for i, node := range page.Edges {
		row, err := r.opts.Entity.Project(node)
		if err != nil {
			return cblerrors.Wrap(cblerrors.ErrorTypeParsing, 0, err, fmt.Sprintf("failed to project %s node %d", r.opts.Entity.Noun, i))
		}
		rows = append(rows, row)
	}

	for _, row := range rows {
		if err := r.writer.WriteRow(row); err != nil {
			r.writer.Discard()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush page: %w", err)
	}
	return nil
}

// completed reports Completed unless a signal landed during the last page
func (r *run) completed() (Outcome, error) {
	if r.interrupted.Load() {
		return Interrupted, nil
	}
	return Completed, nil
}

// stopped classifies an error seen while the context may have been cancelled
func (r *run) stopped(ctx context.Context, err error) (Outcome, error) {
	if r.interrupted.Load() || ctx.Err() != nil {
		return Interrupted, nil
	}
	return Failed, err
}

func (r *run) finish(outcome Outcome, runErr error) Result {
	cursor := r.cell.Get()
	res := Result{RunID: r.id, Outcome: outcome, Total: r.total, Cursor: cursor, Err: runErr}

	if err := r.opts.Store.Save(context.Background(), cursor); err != nil {
		res.Outcome = Failed
		res.Err = errors.Join(res.Err, fmt.Errorf("failed to save final checkpoint: %w", err))
	}
	if err := r.writer.Close(); err != nil {
		res.Outcome = Failed
		res.Err = errors.Join(res.Err, fmt.Errorf("failed to close output: %w", err))
	}

	fields := map[string]interface{}{
		"outcome": res.Outcome.String(),
		"total":   res.Total,
		"cursor":  res.Cursor,
	}
	if rc, ok := r.writer.(interface{ RowsWritten() int }); ok {
		fields["rows_written"] = rc.RowsWritten()
	}
	if res.Err != nil {
		r.log.WithError(res.Err).ErrorWithFields("Crawl stopped", fields)
	} else {
		r.log.InfoWithFields("Crawl finished", fields)
	}
	return res
}
