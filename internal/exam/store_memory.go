package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps everything in maps behind one mutex. It backs
// tests and the offline single-user mode; semantics mirror the SQL
// store, including the conditional finalize.
type memoryStore struct {
	mu          sync.Mutex
	exams       map[string]Exam
	configs     map[string][]SubjectConfig // examID -> configs
	examQs      map[string][]ExamQuestion  // examID -> materialized list
	questions   map[string]Question        // question bank
	byTopic     map[string][]string        // topicID -> question ids
	assignments map[string][]Assignment    // examID -> assignments
	attempts    map[string]Attempt
	attemptQs   map[string][]ExamQuestion    // attemptID -> pinned paper
	answers     map[string]map[string]Answer // attemptID -> questionID -> answer
}

func NewMemoryStore() Store {
	return &memoryStore{
		exams:       map[string]Exam{},
		configs:     map[string][]SubjectConfig{},
		examQs:      map[string][]ExamQuestion{},
		questions:   map[string]Question{},
		byTopic:     map[string][]string{},
		assignments: map[string][]Assignment{},
		attempts:    map[string]Attempt{},
		attemptQs:   map[string][]ExamQuestion{},
		answers:     map[string]map[string]Answer{},
	}
}

// SeedQuestions loads bank questions directly; test/offline helper.
func (m *memoryStore) SeedQuestions(qs ...Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		m.questions[q.ID] = q
		m.byTopic[q.TopicID] = append(m.byTopic[q.TopicID], q.ID)
	}
}

func (m *memoryStore) QuestionsByTopic(_ context.Context, topicID string) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byTopic[topicID]
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.questions[id])
	}
	return out, nil
}

func (m *memoryStore) QuestionsByIDs(_ context.Context, ids []string) (map[string]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Question, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (m *memoryStore) CreateExam(_ context.Context, e Exam, cfgs []SubjectConfig, qs []ExamQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	m.configs[e.ID] = append([]SubjectConfig(nil), cfgs...)
	m.examQs[e.ID] = append([]ExamQuestion(nil), qs...)
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrExamNotFound
	}
	return e, nil
}

func (m *memoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return ErrExamNotFound
	}
	delete(m.exams, id)
	delete(m.configs, id)
	delete(m.examQs, id)
	return nil
}

func (m *memoryStore) SubjectConfigs(_ context.Context, examID string) ([]SubjectConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubjectConfig(nil), m.configs[examID]...), nil
}

func (m *memoryStore) ExamQuestions(_ context.Context, examID string) ([]ExamQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]ExamQuestion(nil), m.examQs[examID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memoryStore) AssignExam(_ context.Context, asg Assignment, studentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[asg.ExamID]; !ok {
		return ErrExamNotFound
	}
	m.assignments[asg.ExamID] = append(m.assignments[asg.ExamID], asg)
	return nil
}

func (m *memoryStore) IsAssigned(_ context.Context, examID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assignments[examID]) > 0, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt, paper []ExamQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// same guarantee the unique partial index gives the SQL store
	for _, ex := range m.attempts {
		if ex.StudentID == a.StudentID && ex.ExamID == a.ExamID && ex.Status == StatusInProgress {
			return fmt.Errorf("attempt %s already open for student %s on exam %s", ex.ID, a.StudentID, a.ExamID)
		}
	}
	m.attempts[a.ID] = a
	if len(paper) > 0 {
		m.attemptQs[a.ID] = append([]ExamQuestion(nil), paper...)
	}
	return nil
}

func (m *memoryStore) AttemptQuestions(_ context.Context, attemptID string) ([]ExamQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]ExamQuestion(nil), m.attemptQs[attemptID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *memoryStore) ActiveAttempt(_ context.Context, studentID, examID string) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.ExamID == examID && a.Status == StatusInProgress {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) AttemptCounts(_ context.Context, studentID, examID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, completed int
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.ExamID == examID {
			total++
			if a.Status == StatusCompleted {
				completed++
			}
		}
	}
	return total, completed, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, ans Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ans.AttemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	if a.Status != StatusInProgress {
		return ErrAttemptNotActive
	}
	byQ := m.answers[ans.AttemptID]
	if byQ == nil {
		byQ = map[string]Answer{}
		m.answers[ans.AttemptID] = byQ
	}
	byQ[ans.QuestionID] = ans
	return nil
}

func (m *memoryStore) Answers(_ context.Context, attemptID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQ := m.answers[attemptID]
	out := make([]Answer, 0, len(byQ))
	for _, a := range byQ {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memoryStore) FinalizeAttempt(_ context.Context, attemptID string, res ScoreResult, endTime time.Time, totalTimeSeconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return false, ErrAttemptNotFound
	}
	if a.Status != StatusInProgress {
		return false, nil
	}
	a.Status = StatusCompleted
	a.Score = res.FinalScore
	a.CorrectAnswers = res.Correct
	a.WrongAnswers = res.Wrong
	a.Unanswered = res.Unanswered
	a.EndTime = &endTime
	a.TotalTimeSeconds = totalTimeSeconds
	m.attempts[attemptID] = a
	return true, nil
}

func (m *memoryStore) StuckAttempts(_ context.Context, asOf time.Time, grace, noLimitWindow time.Duration) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.Status != StatusInProgress {
			continue
		}
		e, ok := m.exams[a.ExamID]
		if !ok {
			continue
		}
		window := noLimitWindow
		if e.TimeLimitMin > 0 {
			window = time.Duration(e.TimeLimitMin)*time.Minute + grace
		}
		if asOf.Sub(a.StartTime) > window {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
