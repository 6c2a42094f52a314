package exam

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_Breakdowns(t *testing.T) {
	tests := []struct {
		name       string
		entries    []SheetEntry
		total      int
		correct    int
		wrong      int
		unanswered int
		raw        float64
		final      float64
		passed     bool
	}{
		{
			name: "six correct two wrong two unanswered",
			entries: append(
				sheet("A", "A", 6), // 6 correct
				sheet("B", "C", 2)..., // 2 wrong
			),
			total:   10,
			correct: 6, wrong: 2, unanswered: 2,
			raw: 10.68, final: 10.68, passed: true, // pass mark 20*0.33 = 6.6
		},
		{
			name:    "all ten wrong clamps at zero",
			entries: sheet("B", "C", 10),
			total:   10,
			correct: 0, wrong: 10, unanswered: 0,
			raw: -6.6, final: 0, passed: false,
		},
		{
			name:    "nothing answered",
			entries: nil,
			total:   10,
			correct: 0, wrong: 0, unanswered: 10,
			raw: 0, final: 0, passed: false,
		},
		{
			name:    "blank selection counts as unanswered",
			entries: []SheetEntry{{Selected: "", Correct: "A"}, {Selected: "A", Correct: "A"}},
			total:   4,
			correct: 1, wrong: 0, unanswered: 3,
			raw: 2, final: 2, passed: false, // pass mark 8*0.33 = 2.64
		},
		{
			name:    "exactly at pass mark passes",
			entries: sheet("A", "A", 33),
			total:   100,
			correct: 33, wrong: 0, unanswered: 67,
			raw: 66, final: 66, passed: true, // pass mark 200*0.33 = 66
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.entries, tc.total)
			if got.Correct != tc.correct || got.Wrong != tc.wrong || got.Unanswered != tc.unanswered {
				t.Fatalf("counts = %d/%d/%d, want %d/%d/%d",
					got.Correct, got.Wrong, got.Unanswered, tc.correct, tc.wrong, tc.unanswered)
			}
			if !almostEqual(got.RawScore, tc.raw) {
				t.Fatalf("raw = %v, want %v", got.RawScore, tc.raw)
			}
			if !almostEqual(got.FinalScore, tc.final) {
				t.Fatalf("final = %v, want %v", got.FinalScore, tc.final)
			}
			if got.Correct+got.Wrong+got.Unanswered != tc.total {
				t.Fatalf("correct+wrong+unanswered = %d, want %d",
					got.Correct+got.Wrong+got.Unanswered, tc.total)
			}
			if got.Passed != tc.passed {
				t.Fatalf("passed = %v, want %v (final=%v passMark=%v)",
					got.Passed, tc.passed, got.FinalScore, got.PassMark)
			}
		})
	}
}

func TestScore_SpecScenario(t *testing.T) {
	entries := append(sheet("A", "A", 6), sheet("D", "B", 2)...)
	got := Score(entries, 10)

	if !almostEqual(got.TotalMarks, 20) {
		t.Fatalf("total marks = %v, want 20", got.TotalMarks)
	}
	if !almostEqual(got.PassMark, 6.6) {
		t.Fatalf("pass mark = %v, want 6.6", got.PassMark)
	}
	if !almostEqual(got.FinalScore, 10.68) {
		t.Fatalf("final = %v, want 10.68", got.FinalScore)
	}
	if !got.Passed {
		t.Fatal("expected pass")
	}
}

func TestScore_NeverNegativeAndAlwaysSumsToTotal(t *testing.T) {
	const total = 12
	for correct := 0; correct <= total; correct++ {
		for wrong := 0; correct+wrong <= total; wrong++ {
			entries := append(sheet("A", "A", correct), sheet("B", "D", wrong)...)
			got := Score(entries, total)
			if got.FinalScore < 0 {
				t.Fatalf("final score negative for correct=%d wrong=%d: %v", correct, wrong, got.FinalScore)
			}
			if got.Correct+got.Wrong+got.Unanswered != total {
				t.Fatalf("sum invariant broken for correct=%d wrong=%d: %d/%d/%d",
					correct, wrong, got.Correct, got.Wrong, got.Unanswered)
			}
		}
	}
}

// sheet builds n identical entries with the given selection and key.
func sheet(selected, correct string, n int) []SheetEntry {
	out := make([]SheetEntry, n)
	for i := range out {
		out[i] = SheetEntry{Selected: selected, Correct: correct}
	}
	return out
}
