package diagnostics

import "testing"

func TestEmitRespectsConfiguredLevel(t *testing.T) {
	var got []Event
	e := &Emitter{Level: Basic, Sink: SinkFunc(func(ev Event) { got = append(got, ev) })}

	e.Emit(Basic, "checkpoint", map[string]any{"name": "start"})
	e.Emit(Verbose, "trace", map[string]any{"detail": "noisy"})

	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (Verbose should be suppressed at Basic level)", len(got))
	}
	if got[0].Name != "checkpoint" {
		t.Fatalf("emitted event = %+v, want name=checkpoint", got[0])
	}
}

func TestEmitWithNilSinkNeverPanics(t *testing.T) {
	e := &Emitter{Level: Verbose}
	e.Emit(Basic, "anything", nil)
}

func TestEmitOnNilEmitterNeverPanics(t *testing.T) {
	var e *Emitter
	e.Emit(Basic, "anything", nil)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"basic":    Basic,
		"detailed": Detailed,
		"verbose":  Verbose,
		"":         Basic,
		"bogus":    Basic,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}
