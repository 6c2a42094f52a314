package exam

import (
	"context"
	"time"
)

// Assignment marks an exam as handed out. The existence of any
// assignment row locks the exam against structural edits.
type Assignment struct {
	ID         string    `json:"id"`
	ExamID     string    `json:"exam_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Store is the persistence contract the attempt lifecycle runs on.
// Two guarantees matter beyond plain CRUD: UpsertAnswer is atomic on
// (attempt, question) with last-write-wins, and FinalizeAttempt is a
// conditional transition that only fires while the row is still
// in_progress (the losing writer of a concurrent submit gets false).
type Store interface {
	QuestionSource

	// Exams. CreateExam persists the exam, its subject configs and any
	// materialized questions in one transaction: all or nothing.
	CreateExam(ctx context.Context, e Exam, cfgs []SubjectConfig, qs []ExamQuestion) error
	GetExam(ctx context.Context, id string) (Exam, error)
	DeleteExam(ctx context.Context, id string) error
	SubjectConfigs(ctx context.Context, examID string) ([]SubjectConfig, error)
	ExamQuestions(ctx context.Context, examID string) ([]ExamQuestion, error)
	QuestionsByIDs(ctx context.Context, ids []string) (map[string]Question, error)

	// Assignments.
	AssignExam(ctx context.Context, asg Assignment, studentIDs []string) error
	IsAssigned(ctx context.Context, examID string) (bool, error)

	// Attempts. CreateAttempt persists the attempt and, when paper is
	// non-empty, the question list drawn for this sitting (dynamic
	// exams), in one transaction. AttemptQuestions returns that pinned
	// list; empty for attempts at statically-composed exams.
	CreateAttempt(ctx context.Context, a Attempt, paper []ExamQuestion) error
	AttemptQuestions(ctx context.Context, attemptID string) ([]ExamQuestion, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// ActiveAttempt returns the open attempt for the pair, or nil.
	ActiveAttempt(ctx context.Context, studentID, examID string) (*Attempt, error)
	// AttemptCounts returns how many attempts exist for the pair in
	// total and how many of them are completed.
	AttemptCounts(ctx context.Context, studentID, examID string) (total, completed int, err error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// Answers.
	UpsertAnswer(ctx context.Context, ans Answer) error
	Answers(ctx context.Context, attemptID string) ([]Answer, error)

	// FinalizeAttempt writes the score breakdown and flips the attempt
	// to completed iff it is still in_progress. Returns whether the
	// transition happened.
	FinalizeAttempt(ctx context.Context, attemptID string, res ScoreResult, endTime time.Time, totalTimeSeconds int) (bool, error)

	// StuckAttempts selects in_progress attempts whose window has
	// elapsed as of asOf: start older than time_limit+grace for timed
	// exams, older than noLimitWindow for untimed ones.
	StuckAttempts(ctx context.Context, asOf time.Time, grace, noLimitWindow time.Duration) ([]Attempt, error)
}
