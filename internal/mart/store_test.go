package mart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBatches_AllSucceed asserts no per-row fallback happens when every
// batch succeeds.
func TestBatches_AllSucceed(t *testing.T) {
	rows := make([]int, 120) // spans three batches at batchSize=50
	for i := range rows {
		rows[i] = i
	}

	var batchCalls, rowCalls int
	err := batches(rows,
		func(b []int) error { batchCalls++; return nil },
		func(r int) error { rowCalls++; return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 3, batchCalls)
	assert.Equal(t, 0, rowCalls)
}

// TestBatches_FailedBatchFallsBackPerRow asserts a failing batch is retried
// row by row rather than aborting the whole upsert (spec §4.5).
func TestBatches_FailedBatchFallsBackPerRow(t *testing.T) {
	rows := []int{1, 2, 3}
	var rowCalls []int
	err := batches(rows,
		func(b []int) error { return errors.New("batch conflict") },
		func(r int) error { rowCalls = append(rowCalls, r); return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, rowCalls)
}

// TestBatches_RowFailureIsReported asserts a single failing row's error
// propagates without silently dropping it.
func TestBatches_RowFailureIsReported(t *testing.T) {
	rows := []int{1, 2, 3}
	boom := errors.New("row conflict")
	err := batches(rows,
		func(b []int) error { return errors.New("batch conflict") },
		func(r int) error {
			if r == 2 {
				return boom
			}
			return nil
		},
	)
	assert.ErrorIs(t, err, boom)
}
