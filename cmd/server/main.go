package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"time"

	api "github.com/examgate/examgate/internal/api/http"
	"github.com/examgate/examgate/internal/auth"
	"github.com/examgate/examgate/internal/config"
	"github.com/examgate/examgate/internal/db"
	"github.com/examgate/examgate/internal/eventlog"
	"github.com/examgate/examgate/internal/exam"
	"github.com/examgate/examgate/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	store := exam.NewSQLStore(dbh)
	events := eventlog.NewRepo(dbh)
	sampler := exam.NewSampler(rand.NewSource(time.Now().UnixNano()))
	svc := exam.NewService(store, sampler, exam.WithEvents(events))
	reconciler := exam.NewReconciler(store, svc, log.Default())

	// --- Auth ---
	authSvc := auth.NewService(cfg.AuthSecret, time.Duration(cfg.TokenTTLHour)*time.Hour)
	creds := auth.NewCredentials(dbh)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, creds))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		// Admin: exam building and administration
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.BuildExamHandler(svc))
		pr.With(rbac.Require("exam:assign")).
			Post("/exams/{examID}/assign", api.AssignExamHandler(svc))
		pr.With(rbac.Require("exam:delete")).
			Delete("/exams/{examID}", api.DeleteExamHandler(svc))
		pr.With(rbac.RequireAny("exam:view", "exam:manage")).
			Get("/exams/{examID}", api.GetExamHandler(store))
		pr.With(rbac.Require("reconcile:run")).
			Post("/admin/reconcile", api.ReconcileHandler(reconciler))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts/{attemptID}/retake", api.RetakeAttemptHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.RecordAnswerHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/exams/{examID}/attempts", api.ListMyAttemptsHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Optional in-process sweep loop; the endpoint stays the primary
	// trigger.
	if cfg.ReconcileEveryMin > 0 {
		go func() {
			t := time.NewTicker(time.Duration(cfg.ReconcileEveryMin) * time.Minute)
			defer t.Stop()
			for range t.C {
				n, err := reconciler.Sweep(context.Background())
				if err != nil {
					log.Printf("reconcile sweep: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("reconcile sweep: force-completed %d attempts", n)
				}
			}
		}()
	}

	log.Printf("examgate listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
