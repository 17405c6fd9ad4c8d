package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/rpcsim/internal/canon"
)

// NewRunID returns a fresh UUIDv7 run identifier.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// StepDigest is the content address of a step under canon.DomainCall.
func StepDigest(step Step) (string, error) {
	return canon.Digest(canon.DomainCall, step.canonicalMap())
}

// SaveRun writes run and all of its steps in one transaction.
//
// An empty run.ID is replaced with a new UUIDv7 and a zero StartedAt with
// the current time; both are written back into run. Step digests are
// always recomputed. Saving an ID that already exists fails.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		id, err := NewRunID()
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		run.ID = id
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixMilli()
	}

	errsJSON, err := marshalErrors(run.Errors)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, seed, pass, trace_digest, errors, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Seed,
		run.Pass,
		run.TraceDigest,
		errsJSON,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	for i := range run.Steps {
		step := &run.Steps[i]
		argsJSON, err := marshalArgs(step.Args)
		if err != nil {
			return fmt.Errorf("save run %s step %d: %w", run.ID, step.Step, err)
		}
		resultJSON, err := marshalResult(step.Result)
		if err != nil {
			return fmt.Errorf("save run %s step %d: %w", run.ID, step.Step, err)
		}
		digest, err := StepDigest(*step)
		if err != nil {
			return fmt.Errorf("save run %s step %d: %w", run.ID, step.Step, err)
		}
		step.Digest = digest

		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps
			(run_id, step, type, method, args, result, assertion, error_code, error, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			step.Step,
			step.Type,
			step.Method,
			argsJSON,
			resultJSON,
			step.Assertion,
			step.ErrorCode,
			step.Error,
			step.Digest,
		)
		if err != nil {
			return fmt.Errorf("save run %s step %d: %w", run.ID, step.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", run.ID, err)
	}
	return nil
}

// DeleteRun removes a run and its steps. Deleting an unknown ID returns
// ErrRunNotFound.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}
