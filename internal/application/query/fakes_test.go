package query

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

// readEvalRepo is a read-only evaluation repository backed by maps. The
// write-side methods exist to satisfy the interface; queries never call them.
type readEvalRepo struct {
	parents map[evaluation.ParentKey]*evaluation.TeacherEvaluation
	items   map[string][]*evaluation.TeacherEvaluationItem

	listItemsCalls int
	getByKeyCalls  int
}

func newReadEvalRepo() *readEvalRepo {
	return &readEvalRepo{
		parents: map[evaluation.ParentKey]*evaluation.TeacherEvaluation{},
		items:   map[string][]*evaluation.TeacherEvaluationItem{},
	}
}

func (r *readEvalRepo) GetByID(_ context.Context, id string) (*evaluation.TeacherEvaluation, error) {
	for _, p := range r.parents {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, evaluation.ErrEvaluationNotFound
}

func (r *readEvalRepo) GetByKey(_ context.Context, key evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	r.getByKeyCalls++
	if p, ok := r.parents[key]; ok {
		return p, nil
	}
	return nil, evaluation.ErrEvaluationNotFound
}

func (r *readEvalRepo) ListItems(_ context.Context, evaluationID string) ([]*evaluation.TeacherEvaluationItem, error) {
	r.listItemsCalls++
	out := append([]*evaluation.TeacherEvaluationItem(nil), r.items[evaluationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].AspectID < out[j].AspectID })
	return out, nil
}

func (r *readEvalRepo) ListByPeriod(_ context.Context, periodID string) ([]*evaluation.TeacherEvaluation, error) {
	var out []*evaluation.TeacherEvaluation
	for _, p := range r.parents {
		if p.PeriodID == periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *readEvalRepo) ListByTeacher(_ context.Context, teacherID string) ([]*evaluation.TeacherEvaluation, error) {
	var out []*evaluation.TeacherEvaluation
	for _, p := range r.parents {
		if p.TeacherID == teacherID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *readEvalRepo) ListStaleSummaries(context.Context, time.Time, int) ([]*evaluation.TeacherEvaluation, error) {
	return nil, nil
}

func (r *readEvalRepo) CountForUser(context.Context, string) (int, error) { return 0, nil }

func (r *readEvalRepo) WithParent(context.Context, evaluation.ParentKey, bool, func(tx evaluation.ParentTx) error) error {
	panic("queries must not open write transactions")
}

func (r *readEvalRepo) DeleteWithItems(context.Context, string) error {
	panic("queries must not delete")
}

type readPeriodRepo struct {
	periods map[string]*evaluation.Period
}

func (r *readPeriodRepo) Create(context.Context, *evaluation.Period) error { return nil }

func (r *readPeriodRepo) GetByID(_ context.Context, id string) (*evaluation.Period, error) {
	if p, ok := r.periods[id]; ok {
		return p, nil
	}
	return nil, evaluation.ErrPeriodNotFound
}

func (r *readPeriodRepo) GetActive(context.Context) (*evaluation.Period, error) {
	for _, p := range r.periods {
		if p.IsActive {
			return p, nil
		}
	}
	return nil, evaluation.ErrPeriodNotFound
}

func (r *readPeriodRepo) Activate(context.Context, string) error            { return nil }
func (r *readPeriodRepo) Update(context.Context, *evaluation.Period) error { return nil }

// stubCache serves one preloaded summary and records refills.
type stubCache struct {
	entry *evaluation.TeacherEvaluation
	sets  []*evaluation.TeacherEvaluation
}

func (c *stubCache) Get(context.Context, evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	return c.entry, nil
}

func (c *stubCache) Set(_ context.Context, e *evaluation.TeacherEvaluation, _ time.Duration) error {
	c.sets = append(c.sets, e)
	return nil
}

func (c *stubCache) Invalidate(context.Context, evaluation.ParentKey) error { return nil }

func (c *stubCache) InvalidateTeacher(context.Context, string) error { return nil }

// dryRunStore answers existence and reference counts without transactions.
type dryRunStore struct {
	entities map[integrity.EntityKind]map[string]bool
	refs     map[string]int
}

func newDryRunStore() *dryRunStore {
	return &dryRunStore{
		entities: map[integrity.EntityKind]map[string]bool{},
		refs:     map[string]int{},
	}
}

func (s *dryRunStore) addEntity(kind integrity.EntityKind, id string) {
	if s.entities[kind] == nil {
		s.entities[kind] = map[string]bool{}
	}
	s.entities[kind][id] = true
}

func (s *dryRunStore) Exists(_ context.Context, kind integrity.EntityKind, id string) (bool, error) {
	return s.entities[kind][id], nil
}

func (s *dryRunStore) CountReferences(_ context.Context, rel integrity.Relation, id string) (int, error) {
	return s.refs[rel.String()+":"+id], nil
}

func (s *dryRunStore) InTx(context.Context, func(tx integrity.StoreTx) error) error {
	panic("dry-run queries must not open transactions")
}
