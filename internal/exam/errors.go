package exam

import "errors"

var (
	ErrExamNotFound    = errors.New("exam not found")
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrUnauthorized: the caller does not own the attempt (or is not a
	// student where one is required).
	ErrUnauthorized = errors.New("not authorized for this attempt")

	// ErrRetakeLimitExceeded: the exam type's completed-attempt quota is
	// used up (mock: 2, live: 1). A business rejection, not a fault.
	ErrRetakeLimitExceeded = errors.New("retake limit exceeded for this exam")

	// ErrInsufficientQuestions: a topic has fewer eligible questions
	// than its config requests. Exam builds roll back entirely.
	ErrInsufficientQuestions = errors.New("not enough questions available for topic")

	// ErrNoQuestions: the exam resolves to an empty question list.
	ErrNoQuestions = errors.New("exam has no questions configured")

	// ErrAttemptNotActive: write against an attempt that is not
	// in_progress.
	ErrAttemptNotActive = errors.New("attempt is not in progress")

	// ErrQuestionNotInExam: an answer referenced a question that is not
	// on the attempt's paper.
	ErrQuestionNotInExam = errors.New("question is not part of this attempt's paper")

	// ErrAlreadySubmitted: finalization of an attempt that has already
	// reached its terminal state. Score fields stay untouched.
	ErrAlreadySubmitted = errors.New("attempt already submitted")

	// ErrExamLocked: structural edit of an exam that has assignments.
	ErrExamLocked = errors.New("exam is assigned to students and locked")
)
