package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit event types appended per lifecycle transition.
const (
	EventAttemptStarted    = "AttemptStarted"
	EventAttemptSubmitted  = "AttemptSubmitted"
	EventAttemptReconciled = "AttemptReconciled"
	EventExamCreated       = "ExamCreated"
	EventExamAssigned      = "ExamAssigned"
)

// EventRecorder receives audit events; appends are best-effort and
// never fail a lifecycle operation.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, data interface{}) error
}

type noopEvents struct{}

func (noopEvents) Record(context.Context, string, string, interface{}) error { return nil }

// Service owns the attempt lifecycle: build/assign exams, start and
// retake attempts, record answers, submit, finalize. All state lives
// in the injected Store; the random source lives in the Sampler.
type Service struct {
	store   Store
	sampler *Sampler
	events  EventRecorder
	now     func() time.Time
}

type Option func(*Service)

// WithEvents wires an audit event sink.
func WithEvents(rec EventRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.events = rec
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, sampler *Sampler, opts ...Option) *Service {
	s := &Service{
		store:   store,
		sampler: sampler,
		events:  noopEvents{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ---- exam building ----

type BuildExamInput struct {
	Title         string          `json:"title"`
	Type          ExamType        `json:"type"`
	TimeLimitMin  int             `json:"time_limit_min"`
	ScheduledFrom *time.Time      `json:"scheduled_from,omitempty"`
	ScheduledTo   *time.Time      `json:"scheduled_to,omitempty"`
	Configs       []SubjectConfig `json:"configs"`
}

// BuildExam creates an exam from its per-topic question counts. For
// statically-composed exams the question list is drawn here and stored
// with the exam and configs in a single transaction, so an
// ErrInsufficientQuestions leaves nothing behind.
func (s *Service) BuildExam(ctx context.Context, in BuildExamInput) (Exam, error) {
	switch in.Type {
	case TypePractice, TypeMock, TypeLive:
	default:
		return Exam{}, fmt.Errorf("invalid exam type %q", in.Type)
	}
	if len(in.Configs) == 0 {
		return Exam{}, ErrNoQuestions
	}

	total := 0
	topicCounts := map[string]int{}
	for _, c := range in.Configs {
		if c.QuestionCount <= 0 {
			return Exam{}, fmt.Errorf("topic %s: question count must be positive", c.TopicID)
		}
		topicCounts[c.TopicID] += c.QuestionCount
		total += c.QuestionCount
	}

	e := Exam{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Type:          in.Type,
		TimeLimitMin:  in.TimeLimitMin,
		ScheduledFrom: in.ScheduledFrom,
		ScheduledTo:   in.ScheduledTo,
		QuestionCount: total,
		TotalMarks:    float64(total) * MarkPerQuestion,
		Active:        true,
		CreatedAt:     s.now(),
	}

	cfgs := make([]SubjectConfig, len(in.Configs))
	for i, c := range in.Configs {
		c.ExamID = e.ID
		cfgs[i] = c
	}

	var qs []ExamQuestion
	if e.Composition() == CompositionStatic {
		picked, err := s.sampler.Sample(ctx, s.store, topicCounts)
		if err != nil {
			return Exam{}, err
		}
		for i := range picked {
			picked[i].ExamID = e.ID
		}
		qs = picked
	}

	if err := s.store.CreateExam(ctx, e, cfgs, qs); err != nil {
		return Exam{}, fmt.Errorf("create exam: %w", err)
	}
	_ = s.events.Record(ctx, EventExamCreated, e.ID, e)
	return e, nil
}

// DeleteExam removes an exam unless it has been assigned; assignment
// locks structure.
func (s *Service) DeleteExam(ctx context.Context, examID string) error {
	assigned, err := s.store.IsAssigned(ctx, examID)
	if err != nil {
		return err
	}
	if assigned {
		return ErrExamLocked
	}
	return s.store.DeleteExam(ctx, examID)
}

// AssignExam hands an exam to students. From the first assignment on
// the exam is locked (IsAssigned).
func (s *Service) AssignExam(ctx context.Context, examID string, studentIDs []string) (Assignment, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return Assignment{}, err
	}
	asg := Assignment{ID: uuid.NewString(), ExamID: examID, AssignedAt: s.now()}
	if err := s.store.AssignExam(ctx, asg, studentIDs); err != nil {
		return Assignment{}, err
	}
	_ = s.events.Record(ctx, EventExamAssigned, examID, asg)
	return asg, nil
}

func (s *Service) IsAssigned(ctx context.Context, examID string) (bool, error) {
	return s.store.IsAssigned(ctx, examID)
}

// ---- attempt lifecycle ----

// StartedAttempt is what the student gets back: the attempt row plus
// the question list for this sitting.
type StartedAttempt struct {
	Attempt   Attempt        `json:"attempt"`
	Questions []ExamQuestion `json:"questions"`
}

// StartAttempt opens an attempt, enforcing the per-type retake policy
// against completed attempts: practice unlimited, mock at most 2,
// live at most 1. If an in_progress attempt already exists for the
// pair it is resumed instead of opening a second one, serving the same
// paper the sitting began with.
func (s *Service) StartAttempt(ctx context.Context, studentID, examID string) (StartedAttempt, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return StartedAttempt{}, err
	}

	if open, err := s.store.ActiveAttempt(ctx, studentID, examID); err != nil {
		return StartedAttempt{}, err
	} else if open != nil {
		qs, err := s.paperFor(ctx, e, open.ID)
		if err != nil {
			return StartedAttempt{}, err
		}
		return StartedAttempt{Attempt: *open, Questions: qs}, nil
	}

	total, completed, err := s.store.AttemptCounts(ctx, studentID, examID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if limit := completedLimit(e.Type); limit >= 0 && completed >= limit {
		return StartedAttempt{}, ErrRetakeLimitExceeded
	}

	qs, err := s.questionsFor(ctx, e)
	if err != nil {
		return StartedAttempt{}, err
	}

	a := Attempt{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		ExamID:        examID,
		AttemptNumber: total + 1,
		Status:        StatusInProgress,
		StartTime:     s.now(),
	}
	var paper []ExamQuestion
	if e.Composition() == CompositionDynamic {
		// pin this sitting's draw so resume and scoring see the same paper
		paper = qs
	}
	if err := s.store.CreateAttempt(ctx, a, paper); err != nil {
		return StartedAttempt{}, fmt.Errorf("create attempt: %w", err)
	}
	_ = s.events.Record(ctx, EventAttemptStarted, a.ID, a)
	return StartedAttempt{Attempt: a, Questions: qs}, nil
}

// RetakeAttempt starts a fresh attempt at the exam behind a completed
// one. The original must belong to the student and be completed; a
// completed attempt is never mutated, the retake is a new row.
func (s *Service) RetakeAttempt(ctx context.Context, studentID, originalAttemptID string) (StartedAttempt, error) {
	orig, err := s.store.GetAttempt(ctx, originalAttemptID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if orig.StudentID != studentID || orig.Status != StatusCompleted {
		return StartedAttempt{}, ErrAttemptNotFound
	}
	return s.StartAttempt(ctx, studentID, orig.ExamID)
}

// RecordAnswer upserts one selection within an in_progress attempt
// owned by the student. Safe to repeat for the same question; the last
// write wins. Questions outside the attempt's paper are rejected.
func (s *Service) RecordAnswer(ctx context.Context, studentID, attemptID, questionID, selected string, timeTakenSeconds int) error {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.StudentID != studentID {
		return ErrUnauthorized
	}
	if a.Status != StatusInProgress {
		return ErrAttemptNotActive
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return err
	}
	paper, err := s.paperFor(ctx, e, a.ID)
	if err != nil {
		return err
	}
	if !paperHas(paper, questionID) {
		return fmt.Errorf("question %s: %w", questionID, ErrQuestionNotInExam)
	}
	return s.store.UpsertAnswer(ctx, Answer{
		AttemptID:        attemptID,
		QuestionID:       questionID,
		SelectedAnswer:   selected,
		TimeTakenSeconds: timeTakenSeconds,
	})
}

// SubmitAttempt records the final answer sheet and scores it. The
// terminal-state check runs before any write; resubmission of a
// completed attempt fails with ErrAlreadySubmitted and changes
// nothing.
func (s *Service) SubmitAttempt(ctx context.Context, studentID, attemptID string, answers map[string]string, questionTimes map[string]int, totalTimeSeconds int) (ScoreResult, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return ScoreResult{}, err
	}
	if a.StudentID != studentID {
		return ScoreResult{}, ErrUnauthorized
	}
	if a.Status != StatusInProgress {
		return ScoreResult{}, ErrAlreadySubmitted
	}

	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return ScoreResult{}, err
	}
	if e.QuestionCount == 0 {
		return ScoreResult{}, ErrNoQuestions
	}

	// every answer must reference a question on this attempt's paper;
	// checked before any write so a bad sheet changes nothing
	paper, err := s.paperFor(ctx, e, a.ID)
	if err != nil {
		return ScoreResult{}, err
	}
	for qid := range answers {
		if !paperHas(paper, qid) {
			return ScoreResult{}, fmt.Errorf("question %s: %w", qid, ErrQuestionNotInExam)
		}
	}

	for qid, sel := range answers {
		err := s.store.UpsertAnswer(ctx, Answer{
			AttemptID:        attemptID,
			QuestionID:       qid,
			SelectedAnswer:   sel,
			TimeTakenSeconds: questionTimes[qid],
		})
		if err != nil {
			if errors.Is(err, ErrAttemptNotActive) {
				// lost a concurrent submit race after our status read
				return ScoreResult{}, ErrAlreadySubmitted
			}
			return ScoreResult{}, fmt.Errorf("record answer %s: %w", qid, err)
		}
	}

	return s.finalize(ctx, a.ID, e.QuestionCount, totalTimeSeconds, EventAttemptSubmitted)
}

// GetAttemptForStudent returns the student's own attempt with its
// recorded answers (the result/review view once completed).
func (s *Service) GetAttemptForStudent(ctx context.Context, studentID, attemptID string) (Attempt, []Answer, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	if a.StudentID != studentID {
		return Attempt{}, nil, ErrUnauthorized
	}
	ans, err := s.store.Answers(ctx, attemptID)
	if err != nil {
		return Attempt{}, nil, err
	}
	return a, ans, nil
}

// ListAttempts is the student's history for an exam (feeds retake UI).
func (s *Service) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

// finalize evaluates whatever is recorded for the attempt and performs
// the conditional in_progress -> completed transition. Shared verbatim
// by explicit submission and the stuck-attempt sweep, so there is one
// scoring path only. Returns ErrAlreadySubmitted when the transition
// already happened.
func (s *Service) finalize(ctx context.Context, attemptID string, totalQuestions, totalTimeSeconds int, eventType string) (ScoreResult, error) {
	recorded, err := s.store.Answers(ctx, attemptID)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("load answers: %w", err)
	}

	ids := make([]string, 0, len(recorded))
	for _, r := range recorded {
		ids = append(ids, r.QuestionID)
	}
	bank, err := s.store.QuestionsByIDs(ctx, ids)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("load question keys: %w", err)
	}

	entries := make([]SheetEntry, 0, len(recorded))
	for _, r := range recorded {
		q, ok := bank[r.QuestionID]
		if !ok {
			continue
		}
		entries = append(entries, SheetEntry{Selected: r.SelectedAnswer, Correct: q.CorrectAnswer})
	}

	res := Score(entries, totalQuestions)
	ok, err := s.store.FinalizeAttempt(ctx, attemptID, res, s.now(), totalTimeSeconds)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("finalize attempt: %w", err)
	}
	if !ok {
		return ScoreResult{}, ErrAlreadySubmitted
	}
	_ = s.events.Record(ctx, eventType, attemptID, res)
	return res, nil
}

// paperFor resolves the question list an existing attempt was served:
// the materialized exam list for static exams, the pinned per-attempt
// draw for dynamic ones. Resume and answer validation both go through
// here, so one sitting only ever sees one paper.
func (s *Service) paperFor(ctx context.Context, e Exam, attemptID string) ([]ExamQuestion, error) {
	if e.Composition() == CompositionStatic {
		qs, err := s.store.ExamQuestions(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return nil, ErrNoQuestions
		}
		return qs, nil
	}
	qs, err := s.store.AttemptQuestions(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}

func paperHas(paper []ExamQuestion, questionID string) bool {
	for _, q := range paper {
		if q.QuestionID == questionID {
			return true
		}
	}
	return false
}

// questionsFor draws the paper for a fresh sitting. Static exams serve
// the list materialized at build time; dynamic (live) exams sample from
// the subject configs, and the caller pins the draw to the new attempt.
func (s *Service) questionsFor(ctx context.Context, e Exam) ([]ExamQuestion, error) {
	if e.Composition() == CompositionStatic {
		qs, err := s.store.ExamQuestions(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return nil, ErrNoQuestions
		}
		return qs, nil
	}

	cfgs, err := s.store.SubjectConfigs(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, ErrNoQuestions
	}
	topicCounts := map[string]int{}
	for _, c := range cfgs {
		topicCounts[c.TopicID] += c.QuestionCount
	}
	qs, err := s.sampler.Sample(ctx, s.store, topicCounts)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].ExamID = e.ID
	}
	return qs, nil
}

// completedLimit returns the completed-attempt quota per exam type;
// -1 means unlimited.
func completedLimit(t ExamType) int {
	switch t {
	case TypeMock:
		return 2
	case TypeLive:
		return 1
	default:
		return -1
	}
}
