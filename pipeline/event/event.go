// Package event implements spec.md §3's pipeline event log: an
// append-only record of PIPELINE_START | STAGE_START | STAGE_SUCCESS |
// STAGE_RETRY_REQUEST | STAGE_FAILURE | PIPELINE_COMPLETE |
// PIPELINE_ABORT occurrences, consumed by both the state machine's own
// decisions and observers (tests, tracing). Encoded with
// fxamacker/cbor/v2 for compact, stable trace dumps and golden fixtures
// — the same "serialize an append-only run record compactly" concern
// core/planfmt addresses for devcmd's execution plans.
package event

import (
	"github.com/fxamacker/cbor/v2"
)

// Type identifies one kind of pipeline event.
type Type string

const (
	PipelineStart    Type = "PIPELINE_START"
	StageStart       Type = "STAGE_START"
	StageSuccess     Type = "STAGE_SUCCESS"
	StageRetryRequest Type = "STAGE_RETRY_REQUEST"
	StageFailure     Type = "STAGE_FAILURE"
	PipelineComplete Type = "PIPELINE_COMPLETE"
	PipelineAbort    Type = "PIPELINE_ABORT"
)

// Event is one append-only log entry.
type Event struct {
	Type          Type   `cbor:"type"`
	Stage         int    `cbor:"stage"`
	Attempt       int    `cbor:"attempt,omitempty"`
	ContextAttempt int   `cbor:"context_attempt,omitempty"`
	Target        int    `cbor:"target,omitempty"` // retry-target stage, for STAGE_RETRY_REQUEST
	Output        string `cbor:"output,omitempty"`
	Reason        string `cbor:"reason,omitempty"`
}

// Log is an append-only sequence of Events, plus the observer hook
// tests/LSP diagnostics subscribe through.
type Log struct {
	Events    []Event
	observers []func(Event)
}

// NewLog builds an empty Log.
func NewLog() *Log { return &Log{} }

// Append records ev and notifies every subscribed observer, in order.
func (l *Log) Append(ev Event) {
	l.Events = append(l.Events, ev)
	for _, obs := range l.observers {
		obs(ev)
	}
}

// Subscribe registers an observer called synchronously on every Append.
func (l *Log) Subscribe(obs func(Event)) {
	l.observers = append(l.observers, obs)
}

// CountStageStarts returns the number of STAGE_START events recorded for
// stage s — used by spec.md §8's invariant: "the sum of STAGE_START
// events for stage s equals 1 + number of STAGE_RETRY_REQUEST events
// targeting s".
func (l *Log) CountStageStarts(stage int) int {
	n := 0
	for _, e := range l.Events {
		if e.Type == StageStart && e.Stage == stage {
			n++
		}
	}
	return n
}

// CountRetryRequestsTargeting returns the number of STAGE_RETRY_REQUEST
// events whose Target field equals stage.
func (l *Log) CountRetryRequestsTargeting(stage int) int {
	n := 0
	for _, e := range l.Events {
		if e.Type == StageRetryRequest && e.Target == stage {
			n++
		}
	}
	return n
}

// CountTerminal returns how many PIPELINE_COMPLETE/PIPELINE_ABORT events
// were recorded — spec.md §8 requires this to be exactly 1 for any
// completed pipeline.
func (l *Log) CountTerminal() int {
	n := 0
	for _, e := range l.Events {
		if e.Type == PipelineComplete || e.Type == PipelineAbort {
			n++
		}
	}
	return n
}

// MarshalCBOR encodes the full event log compactly for trace dumps and
// golden fixtures.
func (l *Log) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(l.Events)
}

// UnmarshalLogCBOR decodes a CBOR-encoded event slice back into a Log
// (observers are not restored; a decoded Log is read-only history).
func UnmarshalLogCBOR(data []byte) (*Log, error) {
	var events []Event
	if err := cbor.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return &Log{Events: events}, nil
}
