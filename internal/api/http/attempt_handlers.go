package http

import (
	"encoding/json"
	"net/http"

	"github.com/examgate/examgate/internal/auth"
	"github.com/examgate/examgate/internal/exam"

	"github.com/go-chi/chi/v5"
)

// StartAttemptHandler opens (or resumes) an attempt for the
// authenticated student.
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExamID == "" {
			http.Error(w, "exam_id required", http.StatusBadRequest)
			return
		}
		started, err := svc.StartAttempt(r.Context(), auth.SubjectFromContext(r.Context()), req.ExamID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, started)
	}
}

func RetakeAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		started, err := svc.RetakeAttempt(r.Context(), auth.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, started)
	}
}

// RecordAnswerHandler upserts one answer; called per question as the
// student moves through the paper.
func RecordAnswerHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID       string `json:"question_id"`
			SelectedAnswer   string `json:"selected_answer"`
			TimeTakenSeconds int    `json:"time_taken_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		err := svc.RecordAnswer(r.Context(), auth.SubjectFromContext(r.Context()),
			id, req.QuestionID, req.SelectedAnswer, req.TimeTakenSeconds)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Answers          map[string]string `json:"answers"`
			QuestionTimes    map[string]int    `json:"question_times"`
			TotalTimeSeconds int               `json:"total_time_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res, err := svc.SubmitAttempt(r.Context(), auth.SubjectFromContext(r.Context()),
			id, req.Answers, req.QuestionTimes, req.TotalTimeSeconds)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetAttemptHandler returns the student's own attempt with recorded
// answers; the result view once completed.
func GetAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, answers, err := svc.GetAttemptForStudent(r.Context(), auth.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"attempt": a,
			"answers": answers,
		})
	}
}

// ListMyAttemptsHandler is the student's history for one exam.
func ListMyAttemptsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		attempts, err := svc.ListAttempts(r.Context(), exam.AttemptListOpts{
			StudentID: auth.SubjectFromContext(r.Context()),
			ExamID:    examID,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, attempts)
	}
}
