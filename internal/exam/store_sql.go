package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore implements Store on database/sql. Works against postgres
// (pgx stdlib driver) and sqlite (modernc); both accept the $n
// placeholder style and ON CONFLICT upserts used here.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// ---- question bank (read-only here) ----

func (s *SQLStore) QuestionsByTopic(ctx context.Context, topicID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic_id, prompt, option_a, option_b, option_c, option_d,
		       correct_answer, marks, negative_marks, difficulty
		FROM questions WHERE topic_id = $1`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Prompt, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &q.Marks, &q.NegativeMarks, &q.Difficulty); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) QuestionsByIDs(ctx context.Context, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic_id, prompt, option_a, option_b, option_c, option_d,
		       correct_answer, marks, negative_marks, difficulty
		FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Prompt, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &q.Marks, &q.NegativeMarks, &q.Difficulty); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// ---- exams ----

func (s *SQLStore) CreateExam(ctx context.Context, e Exam, cfgs []SubjectConfig, qs []ExamQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exams (id, title, exam_type, time_limit_min, scheduled_from, scheduled_to,
		                   question_count, total_marks, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.Title, string(e.Type), e.TimeLimitMin, unixPtr(e.ScheduledFrom), unixPtr(e.ScheduledTo),
		e.QuestionCount, e.TotalMarks, boolInt(e.Active), e.CreatedAt.Unix())
	if err != nil {
		return err
	}

	for _, c := range cfgs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exam_subject_configs (exam_id, subject_id, topic_id, question_count)
			VALUES ($1,$2,$3,$4)`,
			c.ExamID, c.SubjectID, c.TopicID, c.QuestionCount)
		if err != nil {
			return err
		}
	}

	for _, q := range qs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exam_questions (exam_id, question_id, question_order, marks, negative_marks)
			VALUES ($1,$2,$3,$4,$5)`,
			q.ExamID, q.QuestionID, q.Order, q.Marks, q.NegativeMarks)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, exam_type, time_limit_min, scheduled_from, scheduled_to,
		       question_count, total_marks, active, created_at
		FROM exams WHERE id = $1`, id)

	var e Exam
	var typ string
	var from, to sql.NullInt64
	var active int
	var created int64
	err := row.Scan(&e.ID, &e.Title, &typ, &e.TimeLimitMin, &from, &to,
		&e.QuestionCount, &e.TotalMarks, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrExamNotFound
	}
	if err != nil {
		return Exam{}, err
	}
	e.Type = ExamType(typ)
	e.ScheduledFrom = timePtr(from)
	e.ScheduledTo = timePtr(to)
	e.Active = active != 0
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (s *SQLStore) SubjectConfigs(ctx context.Context, examID string) ([]SubjectConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_id, subject_id, topic_id, question_count
		FROM exam_subject_configs WHERE exam_id = $1 ORDER BY topic_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubjectConfig
	for rows.Next() {
		var c SubjectConfig
		if err := rows.Scan(&c.ExamID, &c.SubjectID, &c.TopicID, &c.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ExamQuestions(ctx context.Context, examID string) ([]ExamQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_id, question_id, question_order, marks, negative_marks
		FROM exam_questions WHERE exam_id = $1 ORDER BY question_order`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExamQuestion
	for rows.Next() {
		var q ExamQuestion
		if err := rows.Scan(&q.ExamID, &q.QuestionID, &q.Order, &q.Marks, &q.NegativeMarks); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ---- assignments ----

func (s *SQLStore) AssignExam(ctx context.Context, asg Assignment, studentIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exam_assignments (id, exam_id, assigned_at) VALUES ($1,$2,$3)`,
		asg.ID, asg.ExamID, asg.AssignedAt.Unix())
	if err != nil {
		return err
	}
	for _, sid := range studentIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exam_assignment_students (assignment_id, student_id) VALUES ($1,$2)
			ON CONFLICT (assignment_id, student_id) DO NOTHING`,
			asg.ID, sid)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) IsAssigned(ctx context.Context, examID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_assignments WHERE exam_id = $1)`, examID).Scan(&exists)
	return exists, err
}

// ---- attempts ----

// CreateAttempt inserts the attempt row and, for dynamically-composed
// exams, the paper drawn for this sitting. The unique partial index on
// open attempts rejects a second concurrent start for the same pair.
func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, paper []ExamQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO student_exam_attempts
			(id, student_id, exam_id, attempt_number, status, start_time,
			 score, correct_answers, wrong_answers, unanswered, total_time_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,0,0,0)`,
		a.ID, a.StudentID, a.ExamID, a.AttemptNumber, string(a.Status), a.StartTime.Unix())
	if err != nil {
		return err
	}

	for _, q := range paper {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attempt_questions (attempt_id, question_id, question_order, marks, negative_marks)
			VALUES ($1,$2,$3,$4,$5)`,
			a.ID, q.QuestionID, q.Order, q.Marks, q.NegativeMarks)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) AttemptQuestions(ctx context.Context, attemptID string) ([]ExamQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.exam_id, q.question_id, q.question_order, q.marks, q.negative_marks
		FROM attempt_questions q
		JOIN student_exam_attempts a ON a.id = q.attempt_id
		WHERE q.attempt_id = $1 ORDER BY q.question_order`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExamQuestion
	for rows.Next() {
		var q ExamQuestion
		if err := rows.Scan(&q.ExamID, &q.QuestionID, &q.Order, &q.Marks, &q.NegativeMarks); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const attemptCols = `id, student_id, exam_id, attempt_number, status, start_time, end_time,
	score, correct_answers, wrong_answers, unanswered, total_time_seconds`

func scanAttempt(row interface{ Scan(...interface{}) error }) (Attempt, error) {
	var a Attempt
	var status string
	var start int64
	var end sql.NullInt64
	err := row.Scan(&a.ID, &a.StudentID, &a.ExamID, &a.AttemptNumber, &status, &start, &end,
		&a.Score, &a.CorrectAnswers, &a.WrongAnswers, &a.Unanswered, &a.TotalTimeSeconds)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	a.StartTime = time.Unix(start, 0).UTC()
	a.EndTime = timePtr(end)
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM student_exam_attempts WHERE id = $1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

func (s *SQLStore) ActiveAttempt(ctx context.Context, studentID, examID string) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+attemptCols+` FROM student_exam_attempts
		WHERE student_id = $1 AND exam_id = $2 AND status = 'in_progress'
		ORDER BY start_time DESC LIMIT 1`, studentID, examID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) AttemptCounts(ctx context.Context, studentID, examID string) (int, int, error) {
	var total, completed int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN status = 'completed' THEN 1 END)
		FROM student_exam_attempts
		WHERE student_id = $1 AND exam_id = $2`, studentID, examID).Scan(&total, &completed)
	return total, completed, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM student_exam_attempts WHERE 1=1`
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s = $%d", cond, len(args))
	}
	if opts.StudentID != "" {
		add("student_id", opts.StudentID)
	}
	if opts.ExamID != "" {
		add("exam_id", opts.ExamID)
	}
	if opts.Status != "" {
		add("status", string(opts.Status))
	}
	q += " ORDER BY start_time DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- answers ----

// UpsertAnswer is the storage-level last-write-wins upsert. The status
// check and the write share a transaction so an answer can never land
// on a completed attempt.
func (s *SQLStore) UpsertAnswer(ctx context.Context, ans Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM student_exam_attempts WHERE id = $1`, ans.AttemptID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAttemptNotFound
	}
	if err != nil {
		return err
	}
	if AttemptStatus(status) != StatusInProgress {
		return ErrAttemptNotActive
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO student_answers (attempt_id, question_id, selected_answer, time_taken_seconds)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
			selected_answer = EXCLUDED.selected_answer,
			time_taken_seconds = EXCLUDED.time_taken_seconds`,
		ans.AttemptID, ans.QuestionID, ans.SelectedAnswer, ans.TimeTakenSeconds)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Answers(ctx context.Context, attemptID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, question_id, selected_answer, time_taken_seconds
		FROM student_answers WHERE attempt_id = $1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.SelectedAnswer, &a.TimeTakenSeconds); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FinalizeAttempt performs the conditional terminal transition. The
// WHERE status clause makes concurrent submits race-safe: exactly one
// writer sees rows=1.
func (s *SQLStore) FinalizeAttempt(ctx context.Context, attemptID string, res ScoreResult, endTime time.Time, totalTimeSeconds int) (bool, error) {
	r, err := s.db.ExecContext(ctx, `
		UPDATE student_exam_attempts
		SET status = 'completed',
		    score = $1, correct_answers = $2, wrong_answers = $3, unanswered = $4,
		    end_time = $5, total_time_seconds = $6
		WHERE id = $7 AND status = 'in_progress'`,
		res.FinalScore, res.Correct, res.Wrong, res.Unanswered,
		endTime.Unix(), totalTimeSeconds, attemptID)
	if err != nil {
		return false, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) StuckAttempts(ctx context.Context, asOf time.Time, grace, noLimitWindow time.Duration) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.exam_id, a.attempt_number, a.status, a.start_time, a.end_time,
		       a.score, a.correct_answers, a.wrong_answers, a.unanswered, a.total_time_seconds
		FROM student_exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.status = 'in_progress'
		  AND ((e.time_limit_min > 0 AND a.start_time < $1 - (e.time_limit_min * 60 + $2))
		    OR (e.time_limit_min = 0 AND a.start_time < $1 - $3))
		ORDER BY a.start_time`,
		asOf.Unix(), int64(grace.Seconds()), int64(noLimitWindow.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- scan helpers ----

func unixPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
