package exam

import "time"

// ExamType controls both attempt-retake policy and question composition.
type ExamType string

const (
	TypePractice ExamType = "practice"
	TypeMock     ExamType = "mock"
	TypeLive     ExamType = "live"
)

// Composition says where an attempt's question list comes from.
type Composition string

const (
	// CompositionStatic: questions materialized once at exam-build time.
	CompositionStatic Composition = "static"
	// CompositionDynamic: re-sampled from the subject configs at every
	// attempt start.
	CompositionDynamic Composition = "dynamic"
)

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
)

type Exam struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          ExamType   `json:"type"`
	TimeLimitMin  int        `json:"time_limit_min"` // 0 = no limit
	ScheduledFrom *time.Time `json:"scheduled_from,omitempty"`
	ScheduledTo   *time.Time `json:"scheduled_to,omitempty"`
	QuestionCount int        `json:"question_count"`
	TotalMarks    float64    `json:"total_marks"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Composition derives the question-list source from the exam type.
// Live exams draw a fresh sample per attempt; practice and mock exams
// serve the list fixed at build time.
func (e Exam) Composition() Composition {
	if e.Type == TypeLive {
		return CompositionDynamic
	}
	return CompositionStatic
}

// SubjectConfig is one topic's contribution to an exam: "draw N
// questions from this topic". One row per contributing topic.
type SubjectConfig struct {
	ExamID        string `json:"exam_id"`
	SubjectID     string `json:"subject_id"`
	TopicID       string `json:"topic_id"`
	QuestionCount int    `json:"question_count"`
}

type Question struct {
	ID            string  `json:"id"`
	TopicID       string  `json:"topic_id"`
	Prompt        string  `json:"prompt"`
	OptionA       string  `json:"option_a"`
	OptionB       string  `json:"option_b"`
	OptionC       string  `json:"option_c"`
	OptionD       string  `json:"option_d"`
	CorrectAnswer string  `json:"-"` // never serialized to students
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
	Difficulty    string  `json:"difficulty,omitempty"`
}

// ExamQuestion is a materialized (exam, question) link with its slot in
// the paper and the marks frozen at selection time.
type ExamQuestion struct {
	ExamID        string  `json:"exam_id"`
	QuestionID    string  `json:"question_id"`
	Order         int     `json:"question_order"`
	Marks         float64 `json:"marks"`
	NegativeMarks float64 `json:"negative_marks"`
}

type Attempt struct {
	ID               string        `json:"id"`
	StudentID        string        `json:"student_id"`
	ExamID           string        `json:"exam_id"`
	AttemptNumber    int           `json:"attempt_number"`
	Status           AttemptStatus `json:"status"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Score            float64       `json:"score"`
	CorrectAnswers   int           `json:"correct_answers"`
	WrongAnswers     int           `json:"wrong_answers"`
	Unanswered       int           `json:"unanswered"`
	TotalTimeSeconds int           `json:"total_time_seconds"`
}

// Answer is one recorded selection within an attempt. Unique per
// (attempt, question); re-recording overwrites.
type Answer struct {
	AttemptID        string `json:"attempt_id"`
	QuestionID       string `json:"question_id"`
	SelectedAnswer   string `json:"selected_answer"` // "A".."D", "" = cleared
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

type AttemptListOpts struct {
	StudentID string
	ExamID    string
	Status    AttemptStatus // optional
	Limit     int
	Offset    int
}
