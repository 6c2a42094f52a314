package http

import (
	"encoding/json"
	"net/http"

	"github.com/examgate/examgate/internal/exam"

	"github.com/go-chi/chi/v5"
)

// BuildExamHandler creates an exam from its per-topic question counts.
func BuildExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.BuildExamInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		e, err := svc.BuildExam(r.Context(), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func AssignExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		var req struct {
			StudentIDs []string `json:"student_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.StudentIDs) == 0 {
			http.Error(w, "student_ids required", http.StatusBadRequest)
			return
		}
		asg, err := svc.AssignExam(r.Context(), examID, req.StudentIDs)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, asg)
	}
}

// DeleteExamHandler removes an exam; rejected once assigned.
func DeleteExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteExam(r.Context(), chi.URLParam(r, "examID")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// ReconcileHandler runs one stuck-attempt sweep and reports how many
// attempts it force-completed.
func ReconcileHandler(rec *exam.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := rec.Sweep(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"processed": n})
	}
}
