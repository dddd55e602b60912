package location

import "testing"

func TestSpanStringSameLineIsCompact(t *testing.T) {
	s := Span{Start: Position{Line: 3, Column: 5}, End: Position{Line: 3, Column: 9}}
	if got, want := s.String(), "3:5-9"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestSpanStringCrossLineIncludesBothLines(t *testing.T) {
	s := Span{Start: Position{Line: 3, Column: 5}, End: Position{Line: 4, Column: 1}}
	if got, want := s.String(), "3:5-4:1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestCoverReturnsSmallestEnclosingSpan(t *testing.T) {
	a := Span{Start: Position{Line: 1, Column: 1, Offset: 0}, End: Position{Line: 1, Column: 5, Offset: 4}}
	b := Span{Start: Position{Line: 2, Column: 1, Offset: 10}, End: Position{Line: 2, Column: 3, Offset: 12}}
	c := Cover(a, b)
	if c.Start != a.Start || c.End != b.End {
		t.Fatalf("Cover() = %+v, want Start=%+v End=%+v", c, a.Start, b.End)
	}
}

func TestCoverWithZeroSpanReturnsOther(t *testing.T) {
	a := Span{}
	b := Span{Start: Position{Line: 1, Column: 1, Offset: 0}, End: Position{Line: 1, Column: 5, Offset: 4}}
	if got := Cover(a, b); got != b {
		t.Fatalf("Cover(zero, b) = %+v, want %+v", got, b)
	}
	if got := Cover(b, a); got != b {
		t.Fatalf("Cover(b, zero) = %+v, want %+v", got, b)
	}
}
