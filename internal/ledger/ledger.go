// Package ledger records each dexgen run and every network attempt it makes.
// Ledger write failures are logged and never change the outcome of a run.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dpleshakov/dexgen/internal/fetch"
	"github.com/dpleshakov/dexgen/internal/store"
)

// Compile-time assertion: *Ledger implements fetch.Recorder.
var _ fetch.Recorder = (*Ledger)(nil)

// Ledger is bound to a single run.
type Ledger struct {
	store store.Querier
	runID string
	log   *slog.Logger
	now   func() time.Time
}

// Start creates a run row with a fresh UUID and returns a Ledger bound to it.
func Start(ctx context.Context, q store.Querier, logger *slog.Logger) *Ledger {
	l := &Ledger{
		store: q,
		runID: uuid.NewString(),
		log:   logger.With("component", "ledger"),
		now:   time.Now,
	}
	if err := q.CreateRun(ctx, store.CreateRunParams{ID: l.runID, StartedAt: l.now()}); err != nil {
		l.log.WarnContext(ctx, "creating run", slog.String("run_id", l.runID), slog.String("error", err.Error()))
	}
	return l
}

// RunID returns the UUID of the run.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record stores one fetch attempt.
func (l *Ledger) Record(ctx context.Context, a fetch.Attempt) {
	var errText string
	if a.Err != nil {
		errText = a.Err.Error()
	}
	// Recording must survive a cancelled run context.
	ctx = context.WithoutCancel(ctx)
	if err := l.store.InsertFetch(ctx, store.InsertFetchParams{
		RunID:       l.runID,
		URL:         a.URL,
		Path:        a.Path,
		Status:      int64(a.Status),
		Bytes:       a.Bytes,
		OK:          a.OK,
		Error:       errText,
		AttemptedAt: a.At,
	}); err != nil {
		l.log.WarnContext(ctx, "recording fetch", slog.String("url", a.URL), slog.String("error", err.Error()))
	}
}

// Summary is the ledger's view of a finished run.
type Summary struct {
	Run    store.Run // zero when the run row could not be read back
	Counts store.CountFetchesByRunRow
}

// Finish marks the run succeeded (runErr == nil) or failed and returns the
// stored run row with the attempt totals for the run.
func (l *Ledger) Finish(ctx context.Context, entries int, runErr error) Summary {
	ctx = context.WithoutCancel(ctx)

	status, errText := store.RunSucceeded, ""
	if runErr != nil {
		status, errText = store.RunFailed, runErr.Error()
	}
	if err := l.store.FinishRun(ctx, store.FinishRunParams{
		ID:         l.runID,
		FinishedAt: l.now(),
		Status:     status,
		Entries:    int64(entries),
		Error:      errText,
	}); err != nil {
		l.log.WarnContext(ctx, "finishing run", slog.String("run_id", l.runID), slog.String("error", err.Error()))
	}

	var sum Summary
	run, err := l.store.GetRun(ctx, l.runID)
	if err != nil {
		l.log.WarnContext(ctx, "reading run", slog.String("run_id", l.runID), slog.String("error", err.Error()))
	} else {
		sum.Run = run
	}

	counts, err := l.store.CountFetchesByRun(ctx, l.runID)
	if err != nil {
		l.log.WarnContext(ctx, "counting fetches", slog.String("run_id", l.runID), slog.String("error", err.Error()))
	}
	sum.Counts = counts
	return sum
}

// Failures returns the failed attempts of the run in the order they were made.
func (l *Ledger) Failures(ctx context.Context) []store.Fetch {
	fetches, err := l.store.ListFetchesByRun(context.WithoutCancel(ctx), l.runID)
	if err != nil {
		l.log.WarnContext(ctx, "listing fetches", slog.String("run_id", l.runID), slog.String("error", err.Error()))
		return nil
	}
	var failed []store.Fetch
	for _, f := range fetches {
		if !f.OK {
			failed = append(failed, f)
		}
	}
	return failed
}
