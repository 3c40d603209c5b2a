package domain

import "testing"

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in     string
		want   Priority
		wantOK bool
	}{
		{in: "low", want: PriorityLow, wantOK: true},
		{in: "Medium", want: PriorityMedium, wantOK: true},
		{in: "  HIGH  ", want: PriorityHigh, wantOK: true},
		{in: "critical", want: PriorityCritical, wantOK: true},
		{in: "", wantOK: false},
		{in: "whenever", wantOK: false},
		{in: "p1", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParsePriority(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriorityLevel(t *testing.T) {
	levels := map[Priority]int{
		PriorityLow:      1,
		PriorityMedium:   2,
		PriorityHigh:     3,
		PriorityCritical: 4,
		Priority("bogus"): 0,
	}
	for p, want := range levels {
		if got := p.Level(); got != want {
			t.Errorf("%q.Level() = %d, want %d", p, got, want)
		}
	}
}

func TestStageOrder(t *testing.T) {
	if len(StageOrder) != 11 {
		t.Fatalf("StageOrder len = %d, want 11", len(StageOrder))
	}
	if StageOrder[0] != StageIntake {
		t.Errorf("first stage = %q, want INTAKE", StageOrder[0])
	}
	if StageOrder[len(StageOrder)-1] != StageComplete {
		t.Errorf("last stage = %q, want COMPLETE", StageOrder[len(StageOrder)-1])
	}

	for i, s := range StageOrder {
		if got := StageIndex(s); got != i {
			t.Errorf("StageIndex(%q) = %d, want %d", s, got, i)
		}
	}
	if got := StageIndex(Stage("NOPE")); got != -1 {
		t.Errorf("StageIndex(NOPE) = %d, want -1", got)
	}
}
