// Package state implements spec.md §4.6's pipeline state machine: a
// pure, event-sourced transducer that, given the next StageResult,
// returns the next Action. No I/O, no wall-clock reads outside of
// telemetry fields the caller supplies, so tests can drive it
// synthetically by injecting StageResults (spec.md §9's explicit design
// note). The executor (package pipeline) is the only caller that
// performs I/O; this package only decides.
package state

import (
	"fmt"

	"github.com/mlld-lang/mlld-core/pipeline/event"
)

// Status is the pipeline's overall run state (spec.md §3).
type Status string

const (
	Idle      Status = "IDLE"
	Running   Status = "RUNNING"
	Retrying  Status = "RETRYING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

// ResultKind is the outcome kind a stage reports back to the machine.
type ResultKind string

const (
	Success ResultKind = "success"
	Retry   ResultKind = "retry"
	Error   ResultKind = "error"
)

// StageResult is what the executor reports after invoking one stage.
type StageResult struct {
	Stage     int
	Kind      ResultKind
	Output    string // Kind == Success
	RetryFrom *int   // Kind == Retry: explicit target override, nil means max(0, stage-1)
	Hint      any    // Kind == Retry
	Err       error  // Kind == Error
}

// ActionKind is what the machine tells the executor to do next.
type ActionKind string

const (
	ExecuteStage ActionKind = "EXECUTE_STAGE"
	Complete     ActionKind = "COMPLETE"
	ActionError  ActionKind = "ERROR"
	Abort        ActionKind = "ABORT"
)

// Action is the machine's decision.
type Action struct {
	Kind           ActionKind
	Stage          int    // Kind == ExecuteStage: which stage to run next
	ContextAttempt int    // Kind == ExecuteStage: this invocation's context_attempt (spec.md §3)
	Hint           any    // Kind == ExecuteStage, set when this is a retry replay
	Output         string // Kind == Complete: final pipeline output
	Reason         string // Kind == Error | Abort: human-readable cause
	Err            error  // Kind == Error: the stage's reported cause
}

// RetryContext is the single active retry cycle, if any (spec.md §3's
// "At most one exists").
type RetryContext struct {
	ID              string
	RequestingStage int
	RetryingStage   int
	AttemptNumber   int
	// AllAttempts accumulates the retrying stage's successive outputs
	// within this context — spec.md §4.6's "history for the retrying
	// stage within the current context includes all prior attempt
	// outputs in that context".
	AllAttempts []string
	Hints       []any
	LastHint    any
}

// Machine is the pure pipeline state machine.
type Machine struct {
	TotalStages int
	// Retryable marks whether stage 0 (the pipeline's source) may itself
	// be retried — true only when the pipeline was created from a
	// function (spec.md §4.5 "Source re-execution").
	Retryable bool

	Status Status
	Active *RetryContext

	GlobalStageRetryCount map[int]int
	AllRetryHistory       map[string][]string

	// Outputs holds the latest successful output of every stage,
	// 0 → base input, 1..n → stage outputs (spec.md §3).
	Outputs map[int]string

	Log *event.Log

	nextContextID int
}

// New builds a Machine for a pipeline with totalStages real stages
// (numbered 1..totalStages; 0 is the implicit source/base-input stage).
func New(totalStages int, retryable bool) *Machine {
	return &Machine{
		TotalStages:           totalStages,
		Retryable:             retryable,
		Status:                Idle,
		GlobalStageRetryCount: make(map[int]int),
		AllRetryHistory:       make(map[string][]string),
		Outputs:               make(map[int]string),
		Log:                   event.NewLog(),
	}
}

// Start begins the run with the already-computed base input as stage
// 0's output, and directs the executor to invoke stage 1.
func (m *Machine) Start(baseInput string) Action {
	m.Status = Running
	m.Outputs[0] = baseInput
	m.Log.Append(event.Event{Type: event.PipelineStart, Stage: 0})
	return m.beginStage(1, nil)
}

func (m *Machine) beginStage(stage int, hint any) Action {
	ca := m.contextAttemptFor(stage)
	m.Log.Append(event.Event{Type: event.StageStart, Stage: stage, ContextAttempt: ca})
	return Action{Kind: ExecuteStage, Stage: stage, ContextAttempt: ca, Hint: hint}
}

// contextAttemptFor reports the context_attempt value spec.md §3 exposes
// to stage code: 1 for a plain (non-retry) invocation, or
// active.AttemptNumber+1 when stage is either side of the active retry
// pair (spec.md §4.6 "counting the initial execution as attempt 1").
func (m *Machine) contextAttemptFor(stage int) int {
	if m.Active != nil && (stage == m.Active.RequestingStage || stage == m.Active.RetryingStage) {
		return m.Active.AttemptNumber + 1
	}
	return 1
}

// PreviousOutputs returns the latest successful output of every stage
// strictly before "before" (spec.md §3's stage-context `previous_outputs`).
func (m *Machine) PreviousOutputs(before int) map[int]string {
	out := make(map[int]string)
	for stage, output := range m.Outputs {
		if stage < before {
			out[stage] = output
		}
	}
	return out
}

// History returns the retrying stage's accumulated attempt outputs for
// the active context, or nil if stage is not the active context's
// retrying stage.
func (m *Machine) History(stage int) []string {
	if m.Active != nil && m.Active.RetryingStage == stage {
		return append([]string(nil), m.Active.AllAttempts...)
	}
	return nil
}

// Advance processes one StageResult and returns the next Action.
func (m *Machine) Advance(r StageResult) Action {
	switch r.Kind {
	case Success:
		return m.advanceSuccess(r)
	case Retry:
		return m.advanceRetry(r)
	case Error:
		m.Status = Failed
		m.Log.Append(event.Event{Type: event.StageFailure, Stage: r.Stage, Reason: errString(r.Err)})
		return Action{Kind: ActionError, Stage: r.Stage, Err: r.Err, Reason: errString(r.Err)}
	default:
		panic(fmt.Sprintf("state: unknown StageResult kind %q", r.Kind))
	}
}

func (m *Machine) advanceSuccess(r StageResult) Action {
	m.Log.Append(event.Event{Type: event.StageSuccess, Stage: r.Stage, Output: r.Output})
	m.Outputs[r.Stage] = r.Output

	wasRetryingStage := m.Active != nil && m.Active.RetryingStage == r.Stage
	if wasRetryingStage {
		m.Active.AllAttempts = append(m.Active.AllAttempts, r.Output)
	}

	// Clearance: the requesting stage succeeded — the retry cycle is over.
	if m.Active != nil && m.Active.RequestingStage == r.Stage {
		m.AllRetryHistory[m.Active.ID] = m.Active.AllAttempts
		m.Active = nil
		m.Status = Running
	} else if wasRetryingStage {
		// Spec.md §5: "retries re-execute the target then replay the
		// requesting stage with the retry's output" — the requesting
		// stage is replayed next regardless of linear stage order, so an
		// explicit from=<earlier-than-s-1> override still resumes at s.
		if r.Output == "" {
			return m.complete("")
		}
		return m.beginStage(m.Active.RequestingStage, nil)
	}

	// Empty string from any stage terminates the pipeline immediately
	// with "" (spec.md §4.6 Termination).
	if r.Output == "" {
		return m.complete("")
	}
	// Reaching past the last stage on a success completes with that
	// output.
	if r.Stage >= m.TotalStages {
		return m.complete(r.Output)
	}
	return m.beginStage(r.Stage+1, nil)
}

func (m *Machine) complete(output string) Action {
	m.Status = Completed
	m.Log.Append(event.Event{Type: event.PipelineComplete, Output: output})
	return Action{Kind: Complete, Output: output}
}

func (m *Machine) abort(reason string) Action {
	m.Status = Failed
	m.Log.Append(event.Event{Type: event.PipelineAbort, Reason: reason})
	return Action{Kind: Abort, Reason: reason}
}

func (m *Machine) advanceRetry(r StageResult) Action {
	target := 0
	if r.RetryFrom != nil {
		target = *r.RetryFrom
	} else if r.Stage-1 > 0 {
		target = r.Stage - 1
	}

	m.Log.Append(event.Event{Type: event.StageRetryRequest, Stage: r.Stage, Target: target})

	// Self-retry rule.
	if r.Stage == target && target != 0 {
		return m.abort(fmt.Sprintf("stage %d requested a self-retry (from=%d): rejected", r.Stage, target))
	}
	if r.Stage == target && target == 0 {
		if m.TotalStages != 1 || !m.Retryable {
			return m.abort("stage 0 cannot self-retry in a multi-stage pipeline")
		}
	}
	// Stage 0 retryability.
	if target == 0 && !m.Retryable {
		return m.abort("retry targets stage 0 but the pipeline source is not retryable")
	}

	// Global per-stage cap, checked before admitting another retry.
	if m.GlobalStageRetryCount[target] >= 20 {
		return m.abort(fmt.Sprintf("stage %d exceeded global retry limit", target))
	}
	m.GlobalStageRetryCount[target]++

	// Context reuse vs fresh context.
	if m.Active != nil && m.Active.RequestingStage == r.Stage && m.Active.RetryingStage == target {
		m.Active.AttemptNumber++
		m.Active.Hints = append(m.Active.Hints, r.Hint)
		m.Active.LastHint = r.Hint
	} else {
		if m.Active != nil {
			m.AllRetryHistory[m.Active.ID] = m.Active.AllAttempts
		}
		m.nextContextID++
		m.Active = &RetryContext{
			ID:              fmt.Sprintf("retry-%d", m.nextContextID),
			RequestingStage: r.Stage,
			RetryingStage:   target,
			AttemptNumber:   1,
			Hints:           []any{r.Hint},
			LastHint:        r.Hint,
		}
	}

	// Per-context cap.
	if m.Active.AttemptNumber > 10 {
		return m.abort(fmt.Sprintf("retry context for stage %d exceeded retry limit", target))
	}

	m.Status = Retrying
	return m.beginStage(target, m.Active.LastHint)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
