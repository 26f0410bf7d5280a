package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoRuns is returned when the tracking database holds no runs.
var ErrNoRuns = errors.New("tracker: no runs recorded")

// Point is one logged value of a metric.
type Point struct {
	Step  int
	Value float64
}

// #region history
// LatestRunID returns the most recently started run.
func (t *SQLiteTracker) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := t.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY rowid DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// History returns the stepped values logged for key in runID, ordered by
// step. When a step was logged more than once the last value wins.
func (t *SQLiteTracker) History(ctx context.Context, runID, key string) ([]Point, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT step, value FROM metrics
		 WHERE run_id = ? AND key = ? AND step IS NOT NULL
		 ORDER BY step ASC, id ASC`, runID, key,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if n := len(points); n > 0 && points[n-1].Step == p.Step {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Params returns every param of runID as stored.
func (t *SQLiteTracker) Params(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT key, value FROM params WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	params := map[string]string{}
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		params[key] = value.String
	}
	return params, rows.Err()
}

// #endregion history
