package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
	"github.com/sekolah-hub/teacher-evaluation-hub/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

// ──────────────────────────────────────────────────────────────────────────────
// In-memory evaluation repository. WithParent stages all mutations on copies
// and commits only when fn succeeds, mirroring the transactional contract.
// ──────────────────────────────────────────────────────────────────────────────

type memEvalRepo struct {
	parents map[evaluation.ParentKey]*evaluation.TeacherEvaluation
	items   map[string]map[string]*evaluation.TeacherEvaluationItem

	// conflicts injects this many concurrency conflicts before succeeding.
	conflicts int

	// failPublish makes the next PublishSummary fail.
	failPublish bool
}

func newMemEvalRepo() *memEvalRepo {
	return &memEvalRepo{
		parents: map[evaluation.ParentKey]*evaluation.TeacherEvaluation{},
		items:   map[string]map[string]*evaluation.TeacherEvaluationItem{},
	}
}

func (r *memEvalRepo) seed(parent *evaluation.TeacherEvaluation, items ...*evaluation.TeacherEvaluationItem) {
	r.parents[parent.Key()] = parent
	set := map[string]*evaluation.TeacherEvaluationItem{}
	for _, it := range items {
		it.EvaluationID = parent.ID
		set[it.AspectID] = it
	}
	r.items[parent.ID] = set
}

func (r *memEvalRepo) GetByID(_ context.Context, id string) (*evaluation.TeacherEvaluation, error) {
	for _, p := range r.parents {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, evaluation.ErrEvaluationNotFound
}

func (r *memEvalRepo) GetByKey(_ context.Context, key evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	if p, ok := r.parents[key]; ok {
		return p, nil
	}
	return nil, evaluation.ErrEvaluationNotFound
}

func (r *memEvalRepo) ListItems(_ context.Context, evaluationID string) ([]*evaluation.TeacherEvaluationItem, error) {
	return sortedItems(r.items[evaluationID]), nil
}

func (r *memEvalRepo) ListByPeriod(_ context.Context, periodID string) ([]*evaluation.TeacherEvaluation, error) {
	var out []*evaluation.TeacherEvaluation
	for _, p := range r.parents {
		if p.PeriodID == periodID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memEvalRepo) ListByTeacher(_ context.Context, teacherID string) ([]*evaluation.TeacherEvaluation, error) {
	var out []*evaluation.TeacherEvaluation
	for _, p := range r.parents {
		if p.TeacherID == teacherID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memEvalRepo) ListStaleSummaries(_ context.Context, cutoff time.Time, limit int) ([]*evaluation.TeacherEvaluation, error) {
	var out []*evaluation.TeacherEvaluation
	for _, p := range r.parents {
		if p.LastRecomputedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memEvalRepo) CountForUser(_ context.Context, userID string) (int, error) {
	n := 0
	for _, p := range r.parents {
		if p.TeacherID == userID || p.EvaluatorID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memEvalRepo) WithParent(_ context.Context, key evaluation.ParentKey, create bool, fn func(tx evaluation.ParentTx) error) error {
	if r.conflicts > 0 {
		r.conflicts--
		return shared.NewDomainError("evaluation", "WithParent", shared.ErrConcurrencyConflict, "simulated lock conflict")
	}

	stored, ok := r.parents[key]
	created := false
	var work evaluation.TeacherEvaluation
	if ok {
		work = *stored
	} else {
		if !create {
			return evaluation.ErrEvaluationNotFound
		}
		created = true
		now := time.Now().UTC()
		work = evaluation.TeacherEvaluation{
			ID:          fmt.Sprintf("eval-%d", len(r.parents)+1),
			TeacherID:   key.TeacherID,
			EvaluatorID: key.EvaluatorID,
			PeriodID:    key.PeriodID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	staged := map[string]*evaluation.TeacherEvaluationItem{}
	for aspectID, it := range r.items[work.ID] {
		cp := *it
		staged[aspectID] = &cp
	}

	tx := &memParentTx{repo: r, parent: &work, created: created, staged: staged}
	if err := fn(tx); err != nil {
		return err
	}

	committed := work
	r.parents[key] = &committed
	r.items[work.ID] = staged
	return nil
}

func (r *memEvalRepo) DeleteWithItems(_ context.Context, evaluationID string) error {
	for key, p := range r.parents {
		if p.ID == evaluationID {
			delete(r.parents, key)
			delete(r.items, evaluationID)
			return nil
		}
	}
	return evaluation.ErrEvaluationNotFound
}

type memParentTx struct {
	repo    *memEvalRepo
	parent  *evaluation.TeacherEvaluation
	created bool
	staged  map[string]*evaluation.TeacherEvaluationItem
}

func (t *memParentTx) Parent() *evaluation.TeacherEvaluation { return t.parent }
func (t *memParentTx) Created() bool                         { return t.created }

func (t *memParentTx) Items(context.Context) ([]*evaluation.TeacherEvaluationItem, error) {
	return sortedItems(t.staged), nil
}

func (t *memParentTx) PutItem(_ context.Context, item *evaluation.TeacherEvaluationItem) error {
	cp := *item
	t.staged[item.AspectID] = &cp
	return nil
}

func (t *memParentTx) DeleteItem(_ context.Context, aspectID string) error {
	if _, ok := t.staged[aspectID]; !ok {
		return evaluation.ErrItemNotFound
	}
	delete(t.staged, aspectID)
	return nil
}

func (t *memParentTx) PublishSummary(context.Context, *evaluation.TeacherEvaluation) error {
	if t.repo.failPublish {
		t.repo.failPublish = false
		return errors.New("publish failed")
	}
	return nil
}

func sortedItems(set map[string]*evaluation.TeacherEvaluationItem) []*evaluation.TeacherEvaluationItem {
	out := make([]*evaluation.TeacherEvaluationItem, 0, len(set))
	for _, it := range set {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AspectID < out[j].AspectID })
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog and identity fakes
// ──────────────────────────────────────────────────────────────────────────────

type memAspectRepo struct {
	aspects    map[string]*evaluation.EvaluationAspect
	referenced map[string]bool
}

func newMemAspectRepo() *memAspectRepo {
	return &memAspectRepo{
		aspects:    map[string]*evaluation.EvaluationAspect{},
		referenced: map[string]bool{},
	}
}

func (r *memAspectRepo) Create(_ context.Context, a *evaluation.EvaluationAspect) error {
	r.aspects[a.ID] = a
	return nil
}

func (r *memAspectRepo) GetByID(_ context.Context, id string) (*evaluation.EvaluationAspect, error) {
	if a, ok := r.aspects[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, evaluation.ErrAspectNotFound
}

func (r *memAspectRepo) ListActive(context.Context) ([]*evaluation.EvaluationAspect, error) {
	var out []*evaluation.EvaluationAspect
	for _, a := range r.aspects {
		if a.IsActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memAspectRepo) IsReferenced(_ context.Context, id string) (bool, error) {
	return r.referenced[id], nil
}

func (r *memAspectRepo) Update(_ context.Context, a *evaluation.EvaluationAspect) error {
	if _, ok := r.aspects[a.ID]; !ok {
		return evaluation.ErrAspectNotFound
	}
	cp := *a
	r.aspects[a.ID] = &cp
	return nil
}

type memPeriodRepo struct {
	periods map[string]*evaluation.Period
}

func newMemPeriodRepo() *memPeriodRepo {
	return &memPeriodRepo{periods: map[string]*evaluation.Period{}}
}

func (r *memPeriodRepo) Create(_ context.Context, p *evaluation.Period) error {
	for _, existing := range r.periods {
		if existing.AcademicYear == p.AcademicYear && existing.Semester == p.Semester {
			return evaluation.ErrPeriodExists
		}
	}
	r.periods[p.ID] = p
	return nil
}

func (r *memPeriodRepo) GetByID(_ context.Context, id string) (*evaluation.Period, error) {
	if p, ok := r.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, evaluation.ErrPeriodNotFound
}

func (r *memPeriodRepo) GetActive(context.Context) (*evaluation.Period, error) {
	for _, p := range r.periods {
		if p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, evaluation.ErrPeriodNotFound
}

func (r *memPeriodRepo) Activate(_ context.Context, id string) error {
	target, ok := r.periods[id]
	if !ok {
		return evaluation.ErrPeriodNotFound
	}
	for _, p := range r.periods {
		p.IsActive = false
	}
	target.IsActive = true
	return nil
}

func (r *memPeriodRepo) Update(_ context.Context, p *evaluation.Period) error {
	if _, ok := r.periods[p.ID]; !ok {
		return evaluation.ErrPeriodNotFound
	}
	cp := *p
	r.periods[p.ID] = &cp
	return nil
}

type memUserRepo struct {
	users map[string]*identity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*identity.User{}}
}

func (r *memUserRepo) Create(_ context.Context, u *identity.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range r.users {
		if u.Email == email && !u.IsSoftDeleted() {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (r *memUserRepo) Update(_ context.Context, u *identity.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return identity.ErrUserNotFound
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) ListByOrganization(_ context.Context, orgID string) ([]*identity.User, error) {
	var out []*identity.User
	for _, u := range r.users {
		if u.OrganizationID != nil && *u.OrganizationID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) CountWithRole(_ context.Context, roleName string) (int, error) {
	now := time.Now().UTC()
	n := 0
	for _, u := range r.users {
		if !u.IsSoftDeleted() && u.HasRole(roleName, now) {
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) Exists(_ context.Context, id string) (bool, error) {
	u, ok := r.users[id]
	return ok && !u.IsSoftDeleted(), nil
}

// spyCache records cache interactions; reads always miss.
type spyCache struct {
	invalidated  []evaluation.ParentKey
	teacherWipes []string
	sets         int
	failNext     error
}

func (c *spyCache) Get(context.Context, evaluation.ParentKey) (*evaluation.TeacherEvaluation, error) {
	return nil, nil
}

func (c *spyCache) Set(context.Context, *evaluation.TeacherEvaluation, time.Duration) error {
	c.sets++
	return nil
}

func (c *spyCache) Invalidate(_ context.Context, key evaluation.ParentKey) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	c.invalidated = append(c.invalidated, key)
	return nil
}

func (c *spyCache) InvalidateTeacher(_ context.Context, teacherID string) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	c.teacherWipes = append(c.teacherWipes, teacherID)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Standard fixture: one active period, three aspects, two live users.
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	evalRepo *memEvalRepo
	aspects  *memAspectRepo
	periods  *memPeriodRepo
	users    *memUserRepo
	cache    *spyCache
	key      evaluation.ParentKey
}

func newFixture() *fixture {
	f := &fixture{
		evalRepo: newMemEvalRepo(),
		aspects:  newMemAspectRepo(),
		periods:  newMemPeriodRepo(),
		users:    newMemUserRepo(),
		cache:    &spyCache{},
		key: evaluation.ParentKey{
			TeacherID:   "teacher-1",
			PeriodID:    "period-1",
			EvaluatorID: "evaluator-1",
		},
	}

	f.periods.periods["period-1"] = &evaluation.Period{
		ID:           "period-1",
		AcademicYear: "2025/2026",
		Semester:     "Ganjil",
		StartDate:    time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		IsActive:     true,
	}

	for i, weight := range []float64{1.0, 0.5, 1.0} {
		id := fmt.Sprintf("aspect-%d", i+1)
		f.aspects.aspects[id] = &evaluation.EvaluationAspect{
			ID:       id,
			Name:     "Aspect " + id,
			Category: "Pedagogik",
			Weight:   weight,
			MinScore: 1,
			MaxScore: 4,
			IsActive: true,
		}
	}

	f.users.users["teacher-1"] = &identity.User{
		ID: "teacher-1", Email: "guru@sekolah.id", Status: identity.StatusActive,
		Profile: identity.Profile{Name: "Guru Satu"},
	}
	f.users.users["evaluator-1"] = &identity.User{
		ID: "evaluator-1", Email: "kepsek@sekolah.id", Status: identity.StatusActive,
		Profile: identity.Profile{Name: "Kepala Sekolah"},
	}

	return f
}

func (f *fixture) upsertHandler() *UpsertItemHandler {
	return NewUpsertItemHandler(
		f.evalRepo, f.aspects, f.periods, f.users, f.cache,
		evaluation.DefaultLetterScale(), testLogger())
}

func (f *fixture) createHandler() *CreateEvaluationHandler {
	return NewCreateEvaluationHandler(
		f.evalRepo, f.aspects, f.periods, f.users, f.cache,
		evaluation.DefaultLetterScale(), testLogger())
}

func (f *fixture) removeHandler() *RemoveItemHandler {
	return NewRemoveItemHandler(f.evalRepo, f.cache, evaluation.DefaultLetterScale(), testLogger())
}

func (f *fixture) assignHandler() *AssignTeachersHandler {
	return NewAssignTeachersHandler(
		f.evalRepo, f.aspects, f.periods, f.users, f.cache,
		evaluation.DefaultLetterScale(), testLogger())
}

func (f *fixture) notesHandler() *UpdateFinalNotesHandler {
	return NewUpdateFinalNotesHandler(f.evalRepo, f.periods, f.users, f.cache, testLogger())
}

func (f *fixture) recomputeHandler() *RecomputeSummaryHandler {
	return NewRecomputeSummaryHandler(f.evalRepo, f.cache, evaluation.DefaultLetterScale(), testLogger())
}

// ──────────────────────────────────────────────────────────────────────────────
// Integrity store fake for deletion tests
// ──────────────────────────────────────────────────────────────────────────────

type memIntegrityStore struct {
	entities map[integrity.EntityKind]map[string]bool
	refs     map[string]int // relation string + ":" + id -> count

	softDeleted map[string]string // user id -> actor
	detached    map[string]int
	cascaded    map[string]int
	hardDeleted []string
}

func newMemIntegrityStore() *memIntegrityStore {
	return &memIntegrityStore{
		entities:    map[integrity.EntityKind]map[string]bool{},
		refs:        map[string]int{},
		softDeleted: map[string]string{},
		detached:    map[string]int{},
		cascaded:    map[string]int{},
	}
}

func (s *memIntegrityStore) addEntity(kind integrity.EntityKind, id string) {
	if s.entities[kind] == nil {
		s.entities[kind] = map[string]bool{}
	}
	s.entities[kind][id] = true
}

func (s *memIntegrityStore) addRefs(rel integrity.Relation, id string, n int) {
	s.refs[rel.String()+":"+id] = n
}

func (s *memIntegrityStore) Exists(_ context.Context, kind integrity.EntityKind, id string) (bool, error) {
	return s.entities[kind][id], nil
}

func (s *memIntegrityStore) CountReferences(_ context.Context, rel integrity.Relation, id string) (int, error) {
	return s.refs[rel.String()+":"+id], nil
}

func (s *memIntegrityStore) InTx(_ context.Context, fn func(tx integrity.StoreTx) error) error {
	return fn(&memStoreTx{store: s})
}

type memStoreTx struct {
	store *memIntegrityStore
}

func (t *memStoreTx) LockEntity(_ context.Context, kind integrity.EntityKind, id string) error {
	if !t.store.entities[kind][id] {
		return shared.NewDomainError("integrity", "Lock", shared.ErrNotFound, string(kind)+" not found")
	}
	return nil
}

func (t *memStoreTx) CountReferences(ctx context.Context, rel integrity.Relation, id string) (int, error) {
	return t.store.CountReferences(ctx, rel, id)
}

func (t *memStoreTx) DetachReferences(_ context.Context, rel integrity.Relation, id string) (int, error) {
	key := rel.String() + ":" + id
	n := t.store.refs[key]
	t.store.refs[key] = 0
	t.store.detached[rel.String()] += n
	return n, nil
}

func (t *memStoreTx) CascadeDelete(_ context.Context, rel integrity.Relation, id string) (int, error) {
	key := rel.String() + ":" + id
	n := t.store.refs[key]
	t.store.refs[key] = 0
	t.store.cascaded[rel.String()] += n
	return n, nil
}

func (t *memStoreTx) HardDelete(_ context.Context, kind integrity.EntityKind, id string) error {
	delete(t.store.entities[kind], id)
	t.store.hardDeleted = append(t.store.hardDeleted, id)
	return nil
}

func (t *memStoreTx) SoftDeleteUser(_ context.Context, id, actor string, _ time.Time) error {
	t.store.softDeleted[id] = actor
	return nil
}
