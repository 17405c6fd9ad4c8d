package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// runColumns is the column list scanned by scanRun.
const runColumns = `id, scenario, seed, pass, trace_digest, errors, started_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ReadRun returns the run with id and all of its steps in flow order.
// Returns an error wrapping ErrRunNotFound if the ID is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	steps, err := s.querySteps(ctx, `
		SELECT step, type, method, args, result, assertion, error_code, error, digest
		FROM steps
		WHERE run_id = ?
		ORDER BY step ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	run.Steps = steps
	return &run, nil
}

// ListRuns returns run summaries without steps, newest first. An empty
// scenario lists every run; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY started_at DESC, id COLLATE BINARY DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run of scenario with its steps.
func (s *Store) LatestRun(ctx context.Context, scenario string) (*Run, error) {
	runs, err := s.ListRuns(ctx, scenario, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("latest run of %q: %w", scenario, ErrRunNotFound)
	}
	return s.ReadRun(ctx, runs[0].ID)
}

// StepsForMethod returns the steps of a run that touched method, in flow
// order.
func (s *Store) StepsForMethod(ctx context.Context, runID, method string) ([]Step, error) {
	steps, err := s.querySteps(ctx, `
		SELECT step, type, method, args, result, assertion, error_code, error, digest
		FROM steps
		WHERE run_id = ? AND method = ?
		ORDER BY step ASC
	`, runID, method)
	if err != nil {
		return nil, fmt.Errorf("steps for %s in run %s: %w", method, runID, err)
	}
	return steps, nil
}

func (s *Store) querySteps(ctx context.Context, query string, args ...any) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run      Run
		errsJSON string
	)
	if err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.Seed,
		&run.Pass,
		&run.TraceDigest,
		&errsJSON,
		&run.StartedAt,
	); err != nil {
		return Run{}, err
	}
	errs, err := unmarshalErrors(errsJSON)
	if err != nil {
		return Run{}, err
	}
	run.Errors = errs
	return run, nil
}

func scanStep(row rowScanner) (Step, error) {
	var (
		step       Step
		argsJSON   string
		resultJSON sql.NullString
	)
	if err := row.Scan(
		&step.Step,
		&step.Type,
		&step.Method,
		&argsJSON,
		&resultJSON,
		&step.Assertion,
		&step.ErrorCode,
		&step.Error,
		&step.Digest,
	); err != nil {
		return Step{}, fmt.Errorf("scan step: %w", err)
	}
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return Step{}, err
	}
	result, err := unmarshalResult(resultJSON)
	if err != nil {
		return Step{}, err
	}
	step.Args = args
	step.Result = result
	return step, nil
}
