package exam

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"testing"
	"time"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// seedAttempt writes an in_progress attempt with a backdated start.
func seedAttempt(t *testing.T, m *memoryStore, id, studentID, examID string, started time.Time) {
	t.Helper()
	err := m.CreateAttempt(context.Background(), Attempt{
		ID: id, StudentID: studentID, ExamID: examID,
		AttemptNumber: 1, Status: StatusInProgress, StartTime: started,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestSweep_TimedWindow(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 10)
	e := buildExam(t, svc, TypeMock, 60, map[string]int{"algebra": 10}) // stuck past 80 min

	asOf := time.Now()
	seedAttempt(t, m, "old", "s1", e.ID, asOf.Add(-90*time.Minute))
	seedAttempt(t, m, "fresh", "s2", e.ID, asOf.Add(-70*time.Minute))

	// two answers were saved before the student disappeared
	ctx := context.Background()
	qs, _ := m.ExamQuestions(ctx, e.ID)
	for _, q := range qs[:2] {
		if err := m.UpsertAnswer(ctx, Answer{AttemptID: "old", QuestionID: q.QuestionID, SelectedAnswer: "A"}); err != nil {
			t.Fatal(err)
		}
	}

	rec := NewReconciler(m, svc, quietLogger())
	rec.now = func() time.Time { return asOf }

	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	old, _ := m.GetAttempt(ctx, "old")
	if old.Status != StatusCompleted {
		t.Fatalf("stuck attempt status = %s, want completed", old.Status)
	}
	if old.CorrectAnswers != 2 || old.Unanswered != 8 {
		t.Fatalf("breakdown = %d correct / %d unanswered, want 2/8", old.CorrectAnswers, old.Unanswered)
	}
	if !almostEqual(old.Score, 4) {
		t.Fatalf("score = %v, want 4", old.Score)
	}
	// timed exam: recorded total time is the full window
	if old.TotalTimeSeconds != 3600 {
		t.Fatalf("total time = %d, want 3600", old.TotalTimeSeconds)
	}

	fresh, _ := m.GetAttempt(ctx, "fresh")
	if fresh.Status != StatusInProgress {
		t.Fatalf("attempt inside the window was swept: %s", fresh.Status)
	}
}

func TestSweep_UntimedWindow(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 5)
	e := buildExam(t, svc, TypePractice, 0, map[string]int{"algebra": 5})

	asOf := time.Now()
	seedAttempt(t, m, "day-old", "s1", e.ID, asOf.Add(-25*time.Hour))
	seedAttempt(t, m, "recent", "s2", e.ID, asOf.Add(-23*time.Hour))

	rec := NewReconciler(m, svc, quietLogger())
	rec.now = func() time.Time { return asOf }

	ctx := context.Background()
	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	a, _ := m.GetAttempt(ctx, "day-old")
	if a.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", a.Status)
	}
	// elapsed wall time capped at the no-limit window
	if a.TotalTimeSeconds != int(StuckNoLimitWindow.Seconds()) {
		t.Fatalf("total time = %d, want %d", a.TotalTimeSeconds, int(StuckNoLimitWindow.Seconds()))
	}
	if a.Unanswered != 5 {
		t.Fatalf("unanswered = %d, want 5", a.Unanswered)
	}

	b, _ := m.GetAttempt(ctx, "recent")
	if b.Status != StatusInProgress {
		t.Fatal("attempt under 24h was swept")
	}
}

func TestSweep_SecondRunIsNoop(t *testing.T) {
	svc, m := newTestService(t)
	seedTopic(t, m, "algebra", 5)
	e := buildExam(t, svc, TypeMock, 30, map[string]int{"algebra": 5})

	asOf := time.Now()
	seedAttempt(t, m, "stuck", "s1", e.ID, asOf.Add(-2*time.Hour))

	rec := NewReconciler(m, svc, quietLogger())
	rec.now = func() time.Time { return asOf }

	ctx := context.Background()
	if n, _ := rec.Sweep(ctx); n != 1 {
		t.Fatalf("first sweep processed %d, want 1", n)
	}
	if n, _ := rec.Sweep(ctx); n != 0 {
		t.Fatalf("second sweep processed %d, want 0", n)
	}
}

// finalizeFailStore fails the transition for one attempt to exercise
// per-attempt error isolation.
type finalizeFailStore struct {
	Store
	failID string
}

func (f *finalizeFailStore) FinalizeAttempt(ctx context.Context, attemptID string, res ScoreResult, endTime time.Time, totalTimeSeconds int) (bool, error) {
	if attemptID == f.failID {
		return false, errors.New("write failed")
	}
	return f.Store.FinalizeAttempt(ctx, attemptID, res, endTime, totalTimeSeconds)
}

func TestSweep_OneFailureDoesNotStopTheRest(t *testing.T) {
	m := NewMemoryStore().(*memoryStore)
	seedTopic(t, m, "algebra", 5)

	wrapped := &finalizeFailStore{Store: m, failID: "bad"}
	svc := NewService(wrapped, NewSampler(rand.NewSource(1)))
	e := buildExam(t, svc, TypeMock, 30, map[string]int{"algebra": 5})

	asOf := time.Now()
	seedAttempt(t, m, "bad", "s1", e.ID, asOf.Add(-2*time.Hour))
	seedAttempt(t, m, "good", "s2", e.ID, asOf.Add(-2*time.Hour))

	rec := NewReconciler(wrapped, svc, quietLogger())
	rec.now = func() time.Time { return asOf }

	ctx := context.Background()
	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	good, _ := m.GetAttempt(ctx, "good")
	if good.Status != StatusCompleted {
		t.Fatal("healthy attempt was not swept after the failing one")
	}
	bad, _ := m.GetAttempt(ctx, "bad")
	if bad.Status != StatusInProgress {
		t.Fatal("failing attempt should remain in_progress for the next sweep")
	}
}
