package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examgate/examgate/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain error taxonomy onto HTTP statuses. Business
// rejections (retake limit, locked exam, double submit) are conflicts,
// not server faults.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exam.ErrExamNotFound), errors.Is(err, exam.ErrAttemptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exam.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exam.ErrRetakeLimitExceeded),
		errors.Is(err, exam.ErrAlreadySubmitted),
		errors.Is(err, exam.ErrAttemptNotActive),
		errors.Is(err, exam.ErrExamLocked):
		status = http.StatusConflict
	case errors.Is(err, exam.ErrInsufficientQuestions),
		errors.Is(err, exam.ErrNoQuestions),
		errors.Is(err, exam.ErrQuestionNotInExam):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
