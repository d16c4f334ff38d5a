package speech

import "testing"

func TestAggregatorCumulativeSnapshots(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	steps := []struct {
		seg         Segment
		wantText    string
		wantChanged bool
	}{
		{Segment{Text: "허리가"}, "허리가", true},
		{Segment{Text: "허리가 아파요"}, "허리가 아파요", true},
		{Segment{Text: "허리가 아파요", Final: true}, "허리가 아파요", false},
		{Segment{Text: "삼 일 전부터"}, "허리가 아파요 삼 일 전부터", true},
		{Segment{Text: "삼 일 전부터요", Final: true}, "허리가 아파요 삼 일 전부터요", true},
		{Segment{Text: "  ", Final: true}, "허리가 아파요 삼 일 전부터요", false},
	}

	for i, step := range steps {
		got, changed := a.Add(step.seg)
		if got != step.wantText {
			t.Fatalf("step %d: snapshot = %q, want %q", i, got, step.wantText)
		}
		if changed != step.wantChanged {
			t.Fatalf("step %d: changed = %v, want %v", i, changed, step.wantChanged)
		}
	}
	if got := a.Snapshot(); got != "허리가 아파요 삼 일 전부터요" {
		t.Fatalf("Snapshot() = %q", got)
	}
}

func TestAggregatorEmptyFinalClearsInterim(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Add(Segment{Text: "기침", Final: true})
	a.Add(Segment{Text: "가래"})

	got, changed := a.Add(Segment{Final: true})
	if got != "기침" || !changed {
		t.Fatalf("Add(empty final) = %q, %v; want %q, true", got, changed, "기침")
	}
}

func TestAggregatorSnapshotDoesNotAliasFinals(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.finals = make([]string, 1, 4)
	a.finals[0] = "두통"
	a.Add(Segment{Text: "어지러움"})

	a.Add(Segment{Text: "구토", Final: true})
	if got := a.Snapshot(); got != "두통 구토" {
		t.Fatalf("Snapshot() = %q, want %q", got, "두통 구토")
	}
}

func TestEventTerminal(t *testing.T) {
	t.Parallel()

	if (Event{Transcript: "x"}).Terminal() {
		t.Fatalf("transcript event must not be terminal")
	}
	if !(Event{Code: CodeNetwork, Err: errTest}).Terminal() {
		t.Fatalf("error event must be terminal")
	}
}
