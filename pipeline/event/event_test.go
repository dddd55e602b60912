package event

import "testing"

func TestAppendNotifiesSubscribers(t *testing.T) {
	l := NewLog()
	var seen []Type
	l.Subscribe(func(ev Event) { seen = append(seen, ev.Type) })

	l.Append(Event{Type: PipelineStart})
	l.Append(Event{Type: StageStart, Stage: 0})
	l.Append(Event{Type: PipelineComplete})

	if len(seen) != 3 || seen[2] != PipelineComplete {
		t.Fatalf("observer saw %v, want 3 events ending in PIPELINE_COMPLETE", seen)
	}
	if len(l.Events) != 3 {
		t.Fatalf("Log.Events has %d entries, want 3", len(l.Events))
	}
}

func TestCountStageStartsIncludesRetries(t *testing.T) {
	l := NewLog()
	l.Append(Event{Type: StageStart, Stage: 1})
	l.Append(Event{Type: StageRetryRequest, Target: 1})
	l.Append(Event{Type: StageStart, Stage: 1})

	if n := l.CountStageStarts(1); n != 2 {
		t.Fatalf("CountStageStarts(1) = %d, want 2", n)
	}
	if n := l.CountRetryRequestsTargeting(1); n != 1 {
		t.Fatalf("CountRetryRequestsTargeting(1) = %d, want 1", n)
	}
}

func TestCountTerminalCountsCompleteAndAbort(t *testing.T) {
	l := NewLog()
	l.Append(Event{Type: PipelineStart})
	l.Append(Event{Type: PipelineComplete})
	if n := l.CountTerminal(); n != 1 {
		t.Fatalf("CountTerminal() = %d, want 1", n)
	}
}

func TestMarshalUnmarshalCBORRoundTrips(t *testing.T) {
	l := NewLog()
	l.Append(Event{Type: StageFailure, Stage: 2, Attempt: 3, Reason: "boom"})

	data, err := l.MarshalCBOR()
	if err != nil {
		t.Fatalf("MarshalCBOR() error = %v", err)
	}
	decoded, err := UnmarshalLogCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalLogCBOR() error = %v", err)
	}
	if len(decoded.Events) != 1 || decoded.Events[0].Reason != "boom" {
		t.Fatalf("decoded = %+v, want one event with Reason=boom", decoded.Events)
	}
}
