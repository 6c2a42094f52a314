package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	m := NewMemoryStore().(*memoryStore)
	svc := NewService(m, NewSampler(rand.NewSource(1)))
	return svc, m
}

func seedTopic(t *testing.T, m *memoryStore, topic string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m.SeedQuestions(Question{
			ID:            fmt.Sprintf("%s-q%02d", topic, i),
			TopicID:       topic,
			Prompt:        "?",
			OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectAnswer: "A",
			Marks:         MarkPerQuestion,
			NegativeMarks: NegativeMarkPerQuestion,
		})
	}
}

func buildExam(t *testing.T, svc *Service, typ ExamType, limitMin int, counts map[string]int) Exam {
	t.Helper()
	var cfgs []SubjectConfig
	for topic, n := range counts {
		cfgs = append(cfgs, SubjectConfig{SubjectID: "subj", TopicID: topic, QuestionCount: n})
	}
	e, err := svc.BuildExam(context.Background(), BuildExamInput{
		Title:        string(typ) + " exam",
		Type:         typ,
		TimeLimitMin: limitMin,
		Configs:      cfgs,
	})
	if err != nil {
		t.Fatalf("build exam: %v", err)
	}
	return e
}

// completeAttempt runs one start+submit round for the pair.
func completeAttempt(t *testing.T, svc *Service, studentID, examID string) Attempt {
	t.Helper()
	ctx := context.Background()
	started, err := svc.StartAttempt(ctx, studentID, examID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, studentID, started.Attempt.ID, nil, nil, 60); err != nil {
		t.Fatalf("submit: %v", err)
	}
	a, err := svc.store.GetAttempt(ctx, started.Attempt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return a
}

func TestStartAttempt_ExamNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.StartAttempt(context.Background(), "s1", "missing")
	if !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestStartAttempt_CreatesAndResumes(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 12)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 10})

	ctx := context.Background()
	first, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.Attempt.AttemptNumber != 1 {
		t.Fatalf("attempt number = %d, want 1", first.Attempt.AttemptNumber)
	}
	if first.Attempt.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", first.Attempt.Status)
	}
	if len(first.Questions) != 10 {
		t.Fatalf("questions = %d, want 10", len(first.Questions))
	}

	// starting again resumes the open attempt instead of opening a second
	second, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if second.Attempt.ID != first.Attempt.ID {
		t.Fatalf("resume opened a new attempt: %s vs %s", second.Attempt.ID, first.Attempt.ID)
	}
}

func TestSubmitAttempt_ScoresAndCompletes(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 10)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 10})

	ctx := context.Background()
	started, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatal(err)
	}

	// 6 correct, 2 wrong, 2 untouched (bank key is always "A")
	answers := map[string]string{}
	times := map[string]int{}
	for i, q := range started.Questions {
		switch {
		case i < 6:
			answers[q.QuestionID] = "A"
		case i < 8:
			answers[q.QuestionID] = "B"
		}
		if _, ok := answers[q.QuestionID]; ok {
			times[q.QuestionID] = 30
		}
	}

	res, err := svc.SubmitAttempt(ctx, "s1", started.Attempt.ID, answers, times, 540)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct != 6 || res.Wrong != 2 || res.Unanswered != 2 {
		t.Fatalf("breakdown = %d/%d/%d, want 6/2/2", res.Correct, res.Wrong, res.Unanswered)
	}
	if !almostEqual(res.FinalScore, 10.68) {
		t.Fatalf("final = %v, want 10.68", res.FinalScore)
	}
	if !res.Passed {
		t.Fatalf("expected pass at %v >= %v", res.FinalScore, res.PassMark)
	}

	a, _ := m.GetAttempt(ctx, started.Attempt.ID)
	if a.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", a.Status)
	}
	if a.EndTime == nil {
		t.Fatal("end time not set")
	}
	if a.TotalTimeSeconds != 540 {
		t.Fatalf("total time = %d, want 540", a.TotalTimeSeconds)
	}
	if a.CorrectAnswers+a.WrongAnswers+a.Unanswered != e.QuestionCount {
		t.Fatalf("persisted breakdown does not sum to %d", e.QuestionCount)
	}
}

func TestSubmitAttempt_TwiceRejectedUnchanged(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 10)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 10})

	ctx := context.Background()
	started, _ := svc.StartAttempt(ctx, "s1", e.ID)
	answers := map[string]string{started.Questions[0].QuestionID: "A"}
	if _, err := svc.SubmitAttempt(ctx, "s1", started.Attempt.ID, answers, nil, 100); err != nil {
		t.Fatal(err)
	}
	before, _ := m.GetAttempt(ctx, started.Attempt.ID)

	_, err := svc.SubmitAttempt(ctx, "s1", started.Attempt.ID,
		map[string]string{started.Questions[1].QuestionID: "A"}, nil, 999)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}

	after, _ := m.GetAttempt(ctx, started.Attempt.ID)
	if after != before {
		t.Fatalf("second submit mutated the attempt: %+v vs %+v", after, before)
	}
}

func TestSubmitAttempt_Unauthorized(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 5)
	e := buildExam(t, svc, TypePractice, 0, map[string]int{"algebra": 5})

	ctx := context.Background()
	started, _ := svc.StartAttempt(ctx, "s1", e.ID)
	_, err := svc.SubmitAttempt(ctx, "s2", started.Attempt.ID, nil, nil, 10)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestSubmitAttempt_NoQuestions(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	// exam row with an empty paper, written directly past BuildExam's
	// validation
	e := Exam{ID: "empty", Title: "empty", Type: TypePractice, Active: true, CreatedAt: time.Now()}
	if err := m.CreateExam(ctx, e, nil, nil); err != nil {
		t.Fatal(err)
	}
	a := Attempt{ID: "a1", StudentID: "s1", ExamID: "empty", AttemptNumber: 1,
		Status: StatusInProgress, StartTime: time.Now()}
	if err := m.CreateAttempt(ctx, a, nil); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SubmitAttempt(ctx, "s1", "a1", nil, nil, 10)
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestRetakePolicy(t *testing.T) {
	tests := []struct {
		name      string
		typ       ExamType
		completes int
		rejected  bool
	}{
		{"practice unlimited", TypePractice, 3, false},
		{"mock under limit", TypeMock, 1, false},
		{"mock at limit", TypeMock, 2, true},
		{"live at limit", TypeLive, 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newTestService(t)
			seedTopic(t, m, "algebra", 8)
			e := buildExam(t, svc, tc.typ, 30, map[string]int{"algebra": 5})

			for i := 0; i < tc.completes; i++ {
				completeAttempt(t, svc, "s1", e.ID)
			}

			_, err := svc.StartAttempt(context.Background(), "s1", e.ID)
			if tc.rejected && !errors.Is(err, ErrRetakeLimitExceeded) {
				t.Fatalf("err = %v, want ErrRetakeLimitExceeded", err)
			}
			if !tc.rejected && err != nil {
				t.Fatalf("start rejected unexpectedly: %v", err)
			}
		})
	}
}

func TestRetakeAttempt(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 8)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 5})
	ctx := context.Background()

	done := completeAttempt(t, svc, "s1", e.ID)

	// another student cannot retake someone else's attempt
	if _, err := svc.RetakeAttempt(ctx, "s2", done.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("foreign retake: err = %v, want ErrAttemptNotFound", err)
	}

	retake, err := svc.RetakeAttempt(ctx, "s1", done.ID)
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	if retake.Attempt.AttemptNumber != 2 {
		t.Fatalf("attempt number = %d, want 2", retake.Attempt.AttemptNumber)
	}
	if retake.Attempt.ID == done.ID {
		t.Fatal("retake reused the completed attempt row")
	}

	// an in_progress attempt is not retakeable
	if _, err := svc.RetakeAttempt(ctx, "s1", retake.Attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("in-progress retake: err = %v, want ErrAttemptNotFound", err)
	}
}

func TestRecordAnswer(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 5)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 5})
	ctx := context.Background()

	started, _ := svc.StartAttempt(ctx, "s1", e.ID)
	qid := started.Questions[0].QuestionID

	if err := svc.RecordAnswer(ctx, "s1", started.Attempt.ID, qid, "B", 20); err != nil {
		t.Fatalf("record: %v", err)
	}
	// same key again: overwrite, not duplicate
	if err := svc.RecordAnswer(ctx, "s1", started.Attempt.ID, qid, "C", 35); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	answers, _ := m.Answers(ctx, started.Attempt.ID)
	if len(answers) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(answers))
	}
	if answers[0].SelectedAnswer != "C" || answers[0].TimeTakenSeconds != 35 {
		t.Fatalf("last write lost: %+v", answers[0])
	}

	if err := svc.RecordAnswer(ctx, "s2", started.Attempt.ID, qid, "A", 5); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign record: err = %v, want ErrUnauthorized", err)
	}

	err := svc.RecordAnswer(ctx, "s1", started.Attempt.ID, "not-on-paper", "A", 5)
	if !errors.Is(err, ErrQuestionNotInExam) {
		t.Fatalf("off-paper record: err = %v, want ErrQuestionNotInExam", err)
	}

	if _, err := svc.SubmitAttempt(ctx, "s1", started.Attempt.ID, nil, nil, 50); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordAnswer(ctx, "s1", started.Attempt.ID, qid, "A", 5); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("record after completion: err = %v, want ErrAttemptNotActive", err)
	}
}

func TestBuildExam_InsufficientRollsBack(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 3)

	_, err := svc.BuildExam(context.Background(), BuildExamInput{
		Title: "too big", Type: TypeMock,
		Configs: []SubjectConfig{{SubjectID: "subj", TopicID: "algebra", QuestionCount: 5}},
	})
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("err = %v, want ErrInsufficientQuestions", err)
	}
	if len(m.exams) != 0 {
		t.Fatalf("failed build left %d exam rows behind", len(m.exams))
	}
}

func TestLiveExam_SamplesOnceAndPinsPaper(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 20)
	e := buildExam(t, svc, TypeLive, 60, map[string]int{"algebra": 5})
	ctx := context.Background()

	// live exams materialize nothing at build time
	if qs, _ := m.ExamQuestions(ctx, e.ID); len(qs) != 0 {
		t.Fatalf("live exam materialized %d questions at build", len(qs))
	}

	first, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Questions) != 5 {
		t.Fatalf("sampled %d, want 5", len(first.Questions))
	}
	seen := map[string]bool{}
	for _, q := range first.Questions {
		if seen[q.QuestionID] {
			t.Fatalf("duplicate question %s in one paper", q.QuestionID)
		}
		seen[q.QuestionID] = true
	}

	// resuming the open attempt serves the sitting's pinned paper, not
	// a fresh draw
	resumed, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Attempt.ID != first.Attempt.ID {
		t.Fatalf("resume opened a new attempt: %s vs %s", resumed.Attempt.ID, first.Attempt.ID)
	}
	if len(resumed.Questions) != len(first.Questions) {
		t.Fatalf("resumed paper has %d questions, started with %d", len(resumed.Questions), len(first.Questions))
	}
	for i := range first.Questions {
		if resumed.Questions[i].QuestionID != first.Questions[i].QuestionID {
			t.Fatalf("paper changed across resume at slot %d: %s vs %s",
				i, resumed.Questions[i].QuestionID, first.Questions[i].QuestionID)
		}
	}

	// answers on the pinned paper score through submit
	answers := map[string]string{first.Questions[0].QuestionID: "A"}
	res, err := svc.SubmitAttempt(ctx, "s1", first.Attempt.ID, answers, nil, 120)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct != 1 || res.Unanswered != 4 {
		t.Fatalf("breakdown = %d correct / %d unanswered, want 1/4", res.Correct, res.Unanswered)
	}
}

func TestSubmitAttempt_RejectsAnswersOffThePaper(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 2)
	seedTopic(t, m, "optics", 5)
	e := buildExam(t, svc, TypePractice, 30, map[string]int{"algebra": 2})
	ctx := context.Background()

	started, err := svc.StartAttempt(ctx, "s1", e.ID)
	if err != nil {
		t.Fatal(err)
	}

	// correct selections for both paper questions plus five bank
	// questions that were never part of this exam
	answers := map[string]string{}
	for _, q := range started.Questions {
		answers[q.QuestionID] = "A"
	}
	for i := 0; i < 5; i++ {
		answers[fmt.Sprintf("optics-q%02d", i)] = "A"
	}

	_, err = svc.SubmitAttempt(ctx, "s1", started.Attempt.ID, answers, nil, 60)
	if !errors.Is(err, ErrQuestionNotInExam) {
		t.Fatalf("err = %v, want ErrQuestionNotInExam", err)
	}

	// rejected before any write: still open, nothing recorded
	a, _ := m.GetAttempt(ctx, started.Attempt.ID)
	if a.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", a.Status)
	}
	if recorded, _ := m.Answers(ctx, started.Attempt.ID); len(recorded) != 0 {
		t.Fatalf("%d answers recorded despite rejection", len(recorded))
	}

	// a clean sheet still goes through and the breakdown sums to the
	// exam size, not the sheet size
	onPaper := map[string]string{}
	for _, q := range started.Questions {
		onPaper[q.QuestionID] = "A"
	}
	res, err := svc.SubmitAttempt(ctx, "s1", started.Attempt.ID, onPaper, nil, 60)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Correct != 2 || res.Wrong != 0 || res.Unanswered != 0 {
		t.Fatalf("breakdown = %d/%d/%d, want 2/0/0", res.Correct, res.Wrong, res.Unanswered)
	}
	if res.FinalScore > res.TotalMarks {
		t.Fatalf("final %v exceeds total marks %v", res.FinalScore, res.TotalMarks)
	}
}

func TestDeleteExam_LockedWhenAssigned(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 5)
	e := buildExam(t, svc, TypeMock, 30, map[string]int{"algebra": 5})
	ctx := context.Background()

	if _, err := svc.AssignExam(ctx, e.ID, []string{"s1", "s2"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	assigned, _ := svc.IsAssigned(ctx, e.ID)
	if !assigned {
		t.Fatal("IsAssigned = false after assignment")
	}
	if err := svc.DeleteExam(ctx, e.ID); !errors.Is(err, ErrExamLocked) {
		t.Fatalf("delete assigned: err = %v, want ErrExamLocked", err)
	}

	unassigned := buildExam(t, svc, TypeMock, 30, map[string]int{"algebra": 5})
	if err := svc.DeleteExam(ctx, unassigned.ID); err != nil {
		t.Fatalf("delete unassigned: %v", err)
	}
	if _, err := m.GetExam(ctx, unassigned.ID); !errors.Is(err, ErrExamNotFound) {
		t.Fatal("exam still present after delete")
	}
}
