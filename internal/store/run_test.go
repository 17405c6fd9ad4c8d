package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(scenario string, startedAt int64) *Run {
	return &Run{
		Scenario:    scenario,
		Seed:        7,
		Pass:        false,
		TraceDigest: "abc123",
		Errors:      []string{"flow[1] getAccountBalance: expected result \"11\", got \"10\""},
		StartedAt:   startedAt,
		Steps: []Step{
			{Step: 1, Type: "call", Method: "getAccountBalance", Args: []any{"0x1"}, Result: "10"},
			{
				Step: 2, Type: "call", Method: "getAccount",
				Args:      []any{map[string]any{"address": "0x1", "limit": 3}},
				ErrorCode: "TIMEOUT", Error: "TIMEOUT: Request timed out",
			},
			{Step: 3, Type: "assert", Method: "getAccountBalance", Assertion: "called"},
			{Step: 4, Type: "cleanup"},
		},
	}
}

func TestSaveRun_AssignsIDAndTime(t *testing.T) {
	s := createTestStore(t)
	run := sampleRun("s", 0)

	require.NoError(t, s.SaveRun(context.Background(), run))

	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Positive(t, run.StartedAt)
	for _, step := range run.Steps {
		assert.Len(t, step.Digest, 64)
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := sampleRun("balance", 1_700_000_000_000)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "balance", got.Scenario)
	assert.Equal(t, int64(7), got.Seed)
	assert.False(t, got.Pass)
	assert.Equal(t, run.Errors, got.Errors)
	assert.Equal(t, int64(1_700_000_000_000), got.StartedAt)
	require.Len(t, got.Steps, 4)

	assert.Equal(t, []any{"0x1"}, got.Steps[0].Args)
	assert.Equal(t, "10", got.Steps[0].Result)
	// Integers come back as int64.
	assert.Equal(t, []any{map[string]any{"address": "0x1", "limit": int64(3)}}, got.Steps[1].Args)
	assert.Nil(t, got.Steps[1].Result)
	assert.Equal(t, "TIMEOUT", got.Steps[1].ErrorCode)
	assert.Equal(t, "called", got.Steps[2].Assertion)
	assert.Equal(t, []any{}, got.Steps[3].Args)

	for i := range got.Steps {
		assert.Equal(t, run.Steps[i].Digest, got.Steps[i].Digest)
		recomputed, err := StepDigest(got.Steps[i])
		require.NoError(t, err)
		assert.Equal(t, got.Steps[i].Digest, recomputed, "digest of step %d is stable across storage", i+1)
	}
}

func TestSaveRun_DuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := sampleRun("s", 1)
	require.NoError(t, s.SaveRun(ctx, run))

	dup := sampleRun("s", 2)
	dup.ID = run.ID
	require.Error(t, s.SaveRun(ctx, dup))
}

func TestSaveRun_RejectsNonCanonicalResultAtomically(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := sampleRun("s", 1)
	run.Steps[3].Result = 1.5

	err := s.SaveRun(ctx, run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")

	_, err = s.ReadRun(ctx, run.ID)
	assert.True(t, errors.Is(err, ErrRunNotFound), "failed save leaves no partial run")
}

func TestReadRun_NotFound(t *testing.T) {
	_, err := createTestStore(t).ReadRun(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for i, name := range []string{"a", "b", "a", "a"} {
		run := sampleRun(name, int64(100+i))
		run.Steps = nil
		require.NoError(t, s.SaveRun(ctx, run))
	}

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(103), all[0].StartedAt)
	assert.Equal(t, int64(100), all[3].StartedAt)
	assert.Empty(t, all[0].Steps, "listings carry no steps")

	onlyA, err := s.ListRuns(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, int64(103), onlyA[0].StartedAt)
	assert.Equal(t, int64(102), onlyA[1].StartedAt)

	none, err := s.ListRuns(ctx, "zzz", 0)
	require.NoError(t, err)
	assert.Equal(t, []Run{}, none)
}

func TestLatestRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SaveRun(ctx, sampleRun("a", 1)))
	newest := sampleRun("a", 2)
	require.NoError(t, s.SaveRun(ctx, newest))

	got, err := s.LatestRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)
	assert.Len(t, got.Steps, 4)

	_, err = s.LatestRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStepsForMethod(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := sampleRun("a", 1)
	require.NoError(t, s.SaveRun(ctx, run))

	steps, err := s.StepsForMethod(ctx, run.ID, "getAccountBalance")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, "assert", steps[1].Type)
}

func TestDeleteRun_CascadesSteps(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := sampleRun("a", 1)
	require.NoError(t, s.SaveRun(ctx, run))

	require.NoError(t, s.DeleteRun(ctx, run.ID))

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM steps WHERE run_id = ?`, run.ID).Scan(&n))
	assert.Zero(t, n)
	assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestStepDigest_IgnoresEmptyFields(t *testing.T) {
	a, err := StepDigest(Step{Step: 1, Type: "reset"})
	require.NoError(t, err)
	b, err := StepDigest(Step{Step: 1, Type: "reset", Args: []any{}})
	require.NoError(t, err)
	c, err := StepDigest(Step{Step: 2, Type: "reset"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
