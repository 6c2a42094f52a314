package exam

// Marking scheme. Every question is worth the same fixed marks and a
// wrong (non-blank) selection costs the fixed penalty. The pass mark
// is a percentage of total marks; 33% is the single canonical policy
// for every submission path, explicit or swept.
const (
	MarkPerQuestion         = 2.0
	NegativeMarkPerQuestion = 0.66
	PassPercentage          = 33.0
)

// SheetEntry pairs a recorded selection with the question's correct
// answer. Questions never answered at all simply have no entry.
type SheetEntry struct {
	Selected string
	Correct  string
}

// ScoreResult is the full breakdown written onto a completed attempt.
type ScoreResult struct {
	Correct    int     `json:"correct_answers"`
	Wrong      int     `json:"wrong_answers"`
	Unanswered int     `json:"unanswered"`
	RawScore   float64 `json:"raw_score"`
	FinalScore float64 `json:"final_score"`
	TotalMarks float64 `json:"total_marks"`
	PassMark   float64 `json:"pass_mark"`
	Passed     bool    `json:"passed"`
}

// Score evaluates a sheet against the exam size. Pure: both explicit
// submission and the stuck-attempt sweep call this and nothing else.
//
// Invariants: Correct+Wrong+Unanswered == totalQuestions, and
// FinalScore is clamped at zero so negative marking can never push an
// attempt below it.
func Score(entries []SheetEntry, totalQuestions int) ScoreResult {
	var correct, wrong int
	for _, e := range entries {
		switch {
		case e.Selected == "":
			// blank selection counts as unanswered, not wrong
		case e.Selected == e.Correct:
			correct++
		default:
			wrong++
		}
	}

	unanswered := totalQuestions - correct - wrong
	if unanswered < 0 {
		unanswered = 0
	}

	raw := float64(correct)*MarkPerQuestion - float64(wrong)*NegativeMarkPerQuestion
	final := raw
	if final < 0 {
		final = 0
	}

	totalMarks := float64(totalQuestions) * MarkPerQuestion
	passMark := totalMarks * PassPercentage / 100

	return ScoreResult{
		Correct:    correct,
		Wrong:      wrong,
		Unanswered: unanswered,
		RawScore:   raw,
		FinalScore: final,
		TotalMarks: totalMarks,
		PassMark:   passMark,
		Passed:     final >= passMark,
	}
}
