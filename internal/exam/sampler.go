package exam

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// QuestionSource is the read-only slice of the question bank the
// sampler needs.
type QuestionSource interface {
	QuestionsByTopic(ctx context.Context, topicID string) ([]Question, error)
}

// Sampler draws random, non-repeating question subsets per topic and
// lays them out as an ordered exam question list. The random source is
// injected so tests can seed it.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampler(src rand.Source) *Sampler {
	return &Sampler{rnd: rand.New(src)}
}

// Sample selects count[topic] questions per topic. Topics are walked
// in sorted id order so question_order is a stable increasing counter
// for a given draw. Fails with ErrInsufficientQuestions if any topic
// has fewer eligible questions than requested; nothing is written
// anywhere, the caller decides what to do with the selection.
func (s *Sampler) Sample(ctx context.Context, src QuestionSource, topicCounts map[string]int) ([]ExamQuestion, error) {
	topics := make([]string, 0, len(topicCounts))
	for t := range topicCounts {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	var out []ExamQuestion
	order := 1
	for _, topicID := range topics {
		want := topicCounts[topicID]
		if want <= 0 {
			continue
		}
		pool, err := src.QuestionsByTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("fetch questions for topic %s: %w", topicID, err)
		}
		if len(pool) < want {
			return nil, fmt.Errorf("topic %s has %d of %d: %w", topicID, len(pool), want, ErrInsufficientQuestions)
		}
		for _, q := range s.pick(pool, want) {
			out = append(out, ExamQuestion{
				QuestionID:    q.ID,
				Order:         order,
				Marks:         q.Marks,
				NegativeMarks: q.NegativeMarks,
			})
			order++
		}
	}
	return out, nil
}

// pick shuffles a copy of pool with Fisher–Yates and returns the first
// n entries. Each permutation is equally likely; the source slice is
// left untouched.
func (s *Sampler) pick(pool []Question, n int) []Question {
	shuffled := make([]Question, len(pool))
	copy(shuffled, pool)

	s.mu.Lock()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	s.mu.Unlock()

	return shuffled[:n]
}
