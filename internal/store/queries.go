package store

import (
	"context"
	"time"
)

const createRun = `
INSERT INTO runs (id, started_at, status) VALUES (?, ?, 'running')
`

type CreateRunParams struct {
	ID        string
	StartedAt time.Time
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun, arg.ID, arg.StartedAt)
	return err
}

const finishRun = `
UPDATE runs SET finished_at = ?, status = ?, entries = ?, error = ? WHERE id = ?
`

type FinishRunParams struct {
	ID         string
	FinishedAt time.Time
	Status     string
	Entries    int64
	Error      string
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	_, err := q.db.ExecContext(ctx, finishRun,
		arg.FinishedAt, arg.Status, arg.Entries, arg.Error, arg.ID,
	)
	return err
}

const getRun = `
SELECT id, started_at, finished_at, status, entries, error FROM runs WHERE id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var r Run
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Entries, &r.Error)
	return r, err
}

const insertFetch = `
INSERT INTO fetches (run_id, url, path, status, bytes, ok, error, attempted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertFetchParams struct {
	RunID       string
	URL         string
	Path        string
	Status      int64
	Bytes       int64
	OK          bool
	Error       string
	AttemptedAt time.Time
}

func (q *Queries) InsertFetch(ctx context.Context, arg InsertFetchParams) error {
	_, err := q.db.ExecContext(ctx, insertFetch,
		arg.RunID, arg.URL, arg.Path, arg.Status, arg.Bytes, arg.OK, arg.Error, arg.AttemptedAt,
	)
	return err
}

const listFetchesByRun = `
SELECT id, run_id, url, path, status, bytes, ok, error, attempted_at
FROM fetches WHERE run_id = ? ORDER BY id
`

func (q *Queries) ListFetchesByRun(ctx context.Context, runID string) ([]Fetch, error) {
	rows, err := q.db.QueryContext(ctx, listFetchesByRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Fetch
	for rows.Next() {
		var f Fetch
		if err := rows.Scan(
			&f.ID, &f.RunID, &f.URL, &f.Path, &f.Status, &f.Bytes, &f.OK, &f.Error, &f.AttemptedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countFetchesByRun = `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN ok THEN 0 ELSE 1 END), 0), COALESCE(SUM(bytes), 0)
FROM fetches WHERE run_id = ?
`

type CountFetchesByRunRow struct {
	Total  int64
	Failed int64
	Bytes  int64
}

func (q *Queries) CountFetchesByRun(ctx context.Context, runID string) (CountFetchesByRunRow, error) {
	row := q.db.QueryRowContext(ctx, countFetchesByRun, runID)
	var r CountFetchesByRunRow
	err := row.Scan(&r.Total, &r.Failed, &r.Bytes)
	return r, err
}
