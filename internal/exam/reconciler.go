package exam

import (
	"context"
	"errors"
	"log"
	"time"
)

// Stuck-attempt selection windows. A timed exam's attempt is
// abandoned once its limit plus the grace has elapsed; untimed exams
// get a flat day.
const (
	StuckGrace         = 20 * time.Minute
	StuckNoLimitWindow = 24 * time.Hour
)

// Reconciler force-completes abandoned in_progress attempts through
// the same finalize path a normal submission uses. Safe to run
// concurrently with itself and with live submissions: the conditional
// transition means an attempt that slipped to completed in the
// meantime is skipped, not overwritten.
type Reconciler struct {
	store Store
	svc   *Service
	log   *log.Logger
	now   func() time.Time
}

func NewReconciler(store Store, svc *Service, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{store: store, svc: svc, log: logger, now: time.Now}
}

// Sweep finds and finalizes stuck attempts, treating everything not
// yet answered as unanswered. Attempts are processed independently;
// one failure is logged and the sweep moves on. Returns how many
// attempts were actually transitioned.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stuck, err := r.store.StuckAttempts(ctx, r.now(), StuckGrace, StuckNoLimitWindow)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, a := range stuck {
		e, err := r.store.GetExam(ctx, a.ExamID)
		if err != nil {
			r.log.Printf("reconcile attempt %s: exam %s: %v", a.ID, a.ExamID, err)
			continue
		}
		_, err = r.svc.finalize(ctx, a.ID, e.QuestionCount, r.allowedSeconds(e, a), EventAttemptReconciled)
		if err != nil {
			if errors.Is(err, ErrAlreadySubmitted) {
				// submitted (or swept) between selection and transition
				continue
			}
			r.log.Printf("reconcile attempt %s: %v", a.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// allowedSeconds is the total time recorded on a force-completed
// attempt: the exam's full window when it has one, otherwise the
// elapsed wall time capped at the no-limit window.
func (r *Reconciler) allowedSeconds(e Exam, a Attempt) int {
	if e.TimeLimitMin > 0 {
		return e.TimeLimitMin * 60
	}
	elapsed := r.now().Sub(a.StartTime)
	if elapsed > StuckNoLimitWindow {
		elapsed = StuckNoLimitWindow
	}
	return int(elapsed.Seconds())
}
