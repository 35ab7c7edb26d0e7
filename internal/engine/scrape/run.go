package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/dvergara/leadtap/internal/engine/dedup"
	"github.com/dvergara/leadtap/internal/engine/storage"
	"github.com/dvergara/leadtap/internal/model"
	"github.com/dvergara/leadtap/internal/sheet"
)

// Stats tracks live run progress. Counters are atomic so the TUI and
// the stderr reporter can read them while the pipeline runs.
type Stats struct {
	TasksTotal  int
	TasksDone   atomic.Int64
	TasksFailed atomic.Int64
	Scraped     atomic.Int64
	Duplicates  atomic.Int64
	Skipped     atomic.Int64
	Flushes     atomic.Int64
}

// EmailDiscoverer is the enrichment surface; best-effort by contract.
type EmailDiscoverer interface {
	Discover(ctx context.Context, websiteURL string, paths ...string) string
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Panel   *PanelDriver
	Extract *Extractor
	Email   EmailDiscoverer
	Dedup   *dedup.Deduplicator
	Store   *storage.Store // checkpoint + task statuses
	Sink    sheet.Sink
}

// Options tunes one run.
type Options struct {
	RunID     string
	Tab       string
	BatchSize int
	// SuppressStderr disables the carriage-return progress line, for
	// when the TUI owns the terminal.
	SuppressStderr bool
	// Stats allows passing an external Stats for live tracking.
	Stats *Stats
}

// Run drives the task queue strictly sequentially: the detail view is
// a shared mutable UI resource, so there is never more than one UI
// session. Cancellation is honored between listings only, and always
// ends with a final flush-then-checkpoint so nothing extracted is lost.
//
// Run returns an error only for fatal conditions (sink exhausted its
// retries, context cancelled). Task-level UI failures mark the task
// failed and the queue continues.
func Run(ctx context.Context, tasks []model.SearchTask, deps Deps, logger *log.Logger, opts Options) (*Stats, error) {
	stats := opts.Stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.TasksTotal = len(tasks)
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}

	cp, err := deps.Store.Load(ctx)
	if err != nil {
		return stats, err
	}
	if cp.TaskIndex > 0 || cp.ListingOffset > 0 {
		logger.Printf("RESUME task=%d offset=%d prev_run=%s", cp.TaskIndex, cp.ListingOffset, cp.RunID)
	}

	done := make(chan struct{})
	defer close(done)
	go reportProgress(stats, logger, opts.SuppressStderr, done)

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if cp.Statuses[i] == model.StatusDone {
			continue
		}

		resumeOffset := 0
		if i == cp.TaskIndex {
			resumeOffset = cp.ListingOffset
		}

		if err := runTask(ctx, i, task, resumeOffset, deps, logger, opts, stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// runTask processes one SearchTask end to end. Returns nil for both
// done and failed outcomes; only fatal errors propagate.
func runTask(ctx context.Context, idx int, task model.SearchTask, resumeOffset int, deps Deps, logger *log.Logger, opts Options, stats *Stats) error {
	if err := deps.Store.SetTaskStatus(ctx, idx, model.StatusInProgress); err != nil {
		return err
	}
	logger.Printf("TASK_START idx=%d query=%q resume_offset=%d", idx, task.Query(), resumeOffset)

	var (
		batch     []model.BusinessRecord
		processed = 0 // listings consumed in this panel session
		scraped   = 0
		dups      = 0
		skipped   = 0
	)

	// flush writes the batch (if any) and only then moves the durable
	// pointer. Flush-then-checkpoint: reversing this order could lose
	// rows on crash with no detectable gap on resume.
	flush := func(fctx context.Context, nextTask, nextOffset int) error {
		if len(batch) > 0 {
			n, err := deps.Sink.Append(fctx, opts.Tab, batch)
			if err != nil {
				return fmt.Errorf("flushing batch: %w", err)
			}
			stats.Flushes.Add(1)
			logger.Printf("FLUSH task=%d rows=%d written=%d", idx, len(batch), n)
			batch = batch[:0]
		}
		return deps.Store.Advance(fctx, opts.RunID, nextTask, nextOffset)
	}

	// failTask marks the task failed after salvaging the current batch.
	failTask := func(cause error) error {
		logger.Printf("TASK_FAIL idx=%d query=%q err=%v", idx, task.Query(), cause)
		if err := flush(context.WithoutCancel(ctx), idx+1, 0); err != nil {
			return err
		}
		if err := deps.Store.SetTaskStatus(context.WithoutCancel(ctx), idx, model.StatusFailed); err != nil {
			return err
		}
		stats.TasksFailed.Add(1)
		return nil
	}

	// stop performs the graceful-cancellation contract: flush what we
	// have, checkpoint at the listing boundary, leave the task
	// in_progress for the next run.
	stop := func() error {
		fctx := context.WithoutCancel(ctx)
		if err := flush(fctx, idx, processed); err != nil {
			return err
		}
		logger.Printf("CANCELLED task=%d offset=%d", idx, processed)
		return ctx.Err()
	}

	panel, err := deps.Panel.Open(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return stop()
		}
		if taskFailure(err) {
			return failTask(err)
		}
		return err
	}

	for {
		if ctx.Err() != nil {
			return stop()
		}

		h, ord, err := panel.Next(ctx)
		if errors.Is(err, ErrEndOfResults) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return stop()
			}
			if taskFailure(err) {
				return failTask(err)
			}
			return err
		}

		// Listings before the resume offset were persisted by a
		// previous run; paginate past them without re-extracting.
		if ord < resumeOffset {
			processed = ord + 1
			continue
		}

		rec, err := deps.Extract.Extract(ctx, task, h)
		if err != nil {
			if ctx.Err() != nil {
				// The in-flight record is discarded, never persisted.
				return stop()
			}
			var inc *IncompleteError
			if errors.As(err, &inc) {
				skipped++
				stats.Skipped.Add(1)
				logger.Printf("SKIP task=%d ord=%d err=%v", idx, ord, err)
				processed = ord + 1
				continue
			}
			if taskFailure(err) {
				return failTask(err)
			}
			return err
		}

		if deps.Dedup.IsDuplicate(rec) {
			dups++
			stats.Duplicates.Add(1)
			processed = ord + 1
			continue
		}

		if rec.Website != "" {
			rec.Email = deps.Email.Discover(ctx, rec.Website)
		}

		batch = append(batch, rec)
		scraped++
		stats.Scraped.Add(1)
		processed = ord + 1

		if len(batch) >= opts.BatchSize {
			if err := flush(ctx, idx, processed); err != nil {
				return err
			}
		}
	}

	// Task exhausted: final flush points the checkpoint at the next task.
	if err := flush(ctx, idx+1, 0); err != nil {
		return err
	}
	if err := deps.Store.SetTaskStatus(ctx, idx, model.StatusDone); err != nil {
		return err
	}
	stats.TasksDone.Add(1)
	logger.Printf("TASK_DONE idx=%d query=%q scraped=%d duplicates=%d skipped=%d", idx, task.Query(), scraped, dups, skipped)
	return nil
}

// reportProgress mirrors live counters to stderr and the log until the
// run finishes.
func reportProgress(stats *Stats, logger *log.Logger, suppressStderr bool, done <-chan struct{}) {
	start := time.Now()
	tick := time.NewTicker(2 * time.Second)
	logTick := time.NewTicker(10 * time.Second)
	defer tick.Stop()
	defer logTick.Stop()

	for {
		select {
		case <-tick.C:
			if suppressStderr {
				continue
			}
			fmt.Fprintf(os.Stderr, "\r[%d/%d tasks] %d scraped | %d duplicates | %d skipped | %s",
				stats.TasksDone.Load()+stats.TasksFailed.Load(), stats.TasksTotal,
				stats.Scraped.Load(), stats.Duplicates.Load(), stats.Skipped.Load(),
				time.Since(start).Truncate(time.Second))
		case <-logTick.C:
			logger.Printf("PROGRESS tasks=%d/%d scraped=%d duplicates=%d skipped=%d failed=%d elapsed=%s",
				stats.TasksDone.Load()+stats.TasksFailed.Load(), stats.TasksTotal,
				stats.Scraped.Load(), stats.Duplicates.Load(), stats.Skipped.Load(),
				stats.TasksFailed.Load(), time.Since(start).Truncate(time.Second))
		case <-done:
			return
		}
	}
}
