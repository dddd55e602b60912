package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRetryThenSucceed drives spec.md §6 scenario 3: a three-stage
// pipeline where stage 2 retries twice then succeeds, observing
// context_attempt 1, 2, 3 and a final output of "ok".
func TestRetryThenSucceed(t *testing.T) {
	m := New(3, false)

	a := m.Start("base")
	require.Equal(t, ExecuteStage, a.Kind)
	require.Equal(t, 1, a.Stage)

	// Stage 1 succeeds with "s1-v1".
	a = m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1-v1"})
	require.Equal(t, ExecuteStage, a.Kind)
	require.Equal(t, 2, a.Stage)
	require.Equal(t, 1, a.ContextAttempt)

	// Stage 2 requests a retry (implicit target = stage 1).
	a = m.Advance(StageResult{Stage: 2, Kind: Retry})
	require.Equal(t, ExecuteStage, a.Kind)
	require.Equal(t, 1, a.Stage)
	require.Equal(t, 2, a.ContextAttempt)

	a = m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1-v2"})
	require.Equal(t, 2, a.Stage)
	require.Equal(t, 2, a.ContextAttempt)

	a = m.Advance(StageResult{Stage: 2, Kind: Retry})
	require.Equal(t, 1, a.Stage)
	require.Equal(t, 3, a.ContextAttempt)

	a = m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1-v3"})
	require.Equal(t, 2, a.Stage)
	require.Equal(t, 3, a.ContextAttempt)

	a = m.Advance(StageResult{Stage: 2, Kind: Success, Output: "ok-stage2"})
	require.Equal(t, ExecuteStage, a.Kind)
	require.Equal(t, 3, a.Stage)

	a = m.Advance(StageResult{Stage: 3, Kind: Success, Output: "ok"})
	require.Equal(t, Complete, a.Kind)
	require.Equal(t, "ok", a.Output)

	require.Equal(t, 1, m.Log.CountTerminal())
}

// TestRetryLimitAborts drives spec.md §6 scenario 4 and §8's boundary:
// exactly 10 retries inside a context succeed, the 11th aborts.
func TestRetryLimitAborts(t *testing.T) {
	m := New(2, false)
	m.Start("base")
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1"})

	var last Action
	for i := 0; i < 10; i++ {
		last = m.Advance(StageResult{Stage: 2, Kind: Retry})
		require.Equal(t, ExecuteStage, last.Kind, "retry %d should still execute", i+1)
		last = m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1"})
		require.Equal(t, ExecuteStage, last.Kind)
		require.Equal(t, 2, last.Stage)
	}
	// 11th retry request: attempt_number would become 11 > 10 -> ABORT.
	last = m.Advance(StageResult{Stage: 2, Kind: Retry})
	require.Equal(t, Abort, last.Kind)
	require.Contains(t, last.Reason, "exceeded retry limit")
}

// TestSelfRetryRejected drives spec.md §8's boundary: a retry request
// from stage k with override from=k (k>0) is rejected.
func TestSelfRetryRejected(t *testing.T) {
	m := New(2, false)
	m.Start("base")
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1"})

	from := 2
	a := m.Advance(StageResult{Stage: 2, Kind: Retry, RetryFrom: &from})
	require.Equal(t, Abort, a.Kind)
	require.Contains(t, a.Reason, "self-retry")
}

// TestStageZeroRetryRequiresRetryable covers the stage-0 retryability
// rule independent of the self-retry case.
func TestStageZeroRetryRequiresRetryable(t *testing.T) {
	m := New(2, false)
	m.Start("base")

	a := m.Advance(StageResult{Stage: 1, Kind: Retry})
	require.Equal(t, Abort, a.Kind)
	require.Contains(t, a.Reason, "not retryable")
}

func TestStageZeroRetryAllowedWhenRetryable(t *testing.T) {
	m := New(2, true)
	m.Start("base")

	a := m.Advance(StageResult{Stage: 1, Kind: Retry})
	require.Equal(t, ExecuteStage, a.Kind)
	require.Equal(t, 0, a.Stage)
}

// TestEmptyStringTerminatesImmediately covers spec.md §8's boundary.
func TestEmptyStringTerminatesImmediately(t *testing.T) {
	m := New(3, false)
	m.Start("base")
	a := m.Advance(StageResult{Stage: 1, Kind: Success, Output: ""})
	require.Equal(t, Complete, a.Kind)
	require.Equal(t, "", a.Output)
}

func TestStageErrorReturnsErrorAction(t *testing.T) {
	m := New(2, false)
	m.Start("base")
	a := m.Advance(StageResult{Stage: 1, Kind: Error, Err: errors.New("boom")})
	require.Equal(t, ActionError, a.Kind)
	require.Equal(t, 1, a.Stage)
}

// TestSingleActiveRetryContext covers spec.md §8's invariant: the
// machine never has more than one active retry context.
func TestSingleActiveRetryContext(t *testing.T) {
	m := New(3, false)
	m.Start("base")
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1"})
	m.Advance(StageResult{Stage: 2, Kind: Retry})
	require.NotNil(t, m.Active)
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1-v2"})
	require.NotNil(t, m.Active, "context persists across a replay")
	m.Advance(StageResult{Stage: 2, Kind: Success, Output: "s2"})
	require.Nil(t, m.Active, "context clears once the requester succeeds")
}

// TestStageStartCountMatchesRetryRequests covers spec.md §8's invariant
// relating STAGE_START counts to STAGE_RETRY_REQUEST counts targeting a
// stage.
func TestStageStartCountMatchesRetryRequests(t *testing.T) {
	m := New(2, false)
	m.Start("base")
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1"})
	m.Advance(StageResult{Stage: 2, Kind: Retry})
	m.Advance(StageResult{Stage: 1, Kind: Success, Output: "s1-v2"})
	m.Advance(StageResult{Stage: 2, Kind: Success, Output: "done"})

	require.Equal(t, 1+m.Log.CountRetryRequestsTargeting(1), m.Log.CountStageStarts(1))
}
