package redis

import (
	"context"
	"errors"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/circuitbreaker"
)

// SummaryCache implements evaluation.SummaryCache using the generic Cache.
// Only derived summary fields are cached, never child items: the breakdown
// always comes from storage so a reader can trust it against the summary.
//
// All Redis traffic runs behind a circuit breaker. When Redis starts timing
// out, reads degrade to misses immediately instead of stalling every request
// on a dead connection; writes and invalidations surface the breaker error
// to callers, which already tolerate cache failure.
type SummaryCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewSummaryCache creates a new SummaryCache.
func NewSummaryCache(cache *Cache) *SummaryCache {
	// A miss is a healthy answer, not a failure the breaker should count.
	return &SummaryCache{
		cache: cache,
		breaker: circuitbreaker.CacheBreaker(nil, circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, ErrCacheMiss)
		})),
	}
}

// cachedSummary is the wire form of a cached parent evaluation.
type cachedSummary struct {
	ID               string    `json:"id"`
	TeacherID        string    `json:"teacher_id"`
	EvaluatorID      string    `json:"evaluator_id"`
	PeriodID         string    `json:"period_id"`
	TotalScore       float64   `json:"total_score"`
	AverageScore     float64   `json:"average_score"`
	FinalGrade       string    `json:"final_grade,omitempty"`
	FinalNotes       string    `json:"final_notes,omitempty"`
	LastRecomputedAt time.Time `json:"last_recomputed_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Get returns the cached summary for a parent key, or nil on a miss. Any
// cache failure is reported as a miss plus error; callers treat both as
// "go to storage".
func (s *SummaryCache) Get(ctx context.Context, key evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	var c cachedSummary
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, SummaryKey(key.TeacherID, key.PeriodID, key.EvaluatorID), &c)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, nil
		}
		return nil, err
	}

	e := &evaluation.TeacherEvaluation{
		ID:               c.ID,
		TeacherID:        c.TeacherID,
		EvaluatorID:      c.EvaluatorID,
		PeriodID:         c.PeriodID,
		TotalScore:       c.TotalScore,
		AverageScore:     c.AverageScore,
		FinalNotes:       c.FinalNotes,
		LastRecomputedAt: c.LastRecomputedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.FinalGrade != "" {
		g := evaluation.Grade(c.FinalGrade)
		e.FinalGrade = &g
	}
	return e, nil
}

// Set stores a summary with the given TTL. A zero or negative TTL selects
// TTLSummaryCache.
func (s *SummaryCache) Set(ctx context.Context, e *evaluation.TeacherEvaluation, ttl time.Duration) error {
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLSummaryCache
	}

	c := cachedSummary{
		ID:               e.ID,
		TeacherID:        e.TeacherID,
		EvaluatorID:      e.EvaluatorID,
		PeriodID:         e.PeriodID,
		TotalScore:       e.TotalScore,
		AverageScore:     e.AverageScore,
		FinalNotes:       e.FinalNotes,
		LastRecomputedAt: e.LastRecomputedAt,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if e.FinalGrade != nil {
		c.FinalGrade = string(*e.FinalGrade)
	}

	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, SummaryKey(e.TeacherID, e.PeriodID, e.EvaluatorID), c, ttl)
	})
}

// Invalidate drops the cached summary for a parent key.
func (s *SummaryCache) Invalidate(ctx context.Context, key evaluation.ParentKey) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.Delete(ctx, SummaryKey(key.TeacherID, key.PeriodID, key.EvaluatorID))
	})
}

// InvalidateTeacher drops every cached summary naming a teacher. Used when
// a teacher-wide change (such as a soft delete) must not serve stale reads.
func (s *SummaryCache) InvalidateTeacher(ctx context.Context, teacherID string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.DeleteByPattern(ctx, PrefixSummary+teacherID+":*")
	})
}
