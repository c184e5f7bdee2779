package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/evaluation"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/identity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

type deleteHarness struct {
	store    *memIntegrityStore
	users    *memUserRepo
	evalRepo *memEvalRepo
	cache    *spyCache
}

func deleteFixture() (*memIntegrityStore, *memUserRepo, *DeleteEntityHandler) {
	dh := newDeleteHarness()
	return dh.store, dh.users, dh.handler()
}

func newDeleteHarness() *deleteHarness {
	return &deleteHarness{
		store:    newMemIntegrityStore(),
		users:    newMemUserRepo(),
		evalRepo: newMemEvalRepo(),
		cache:    &spyCache{},
	}
}

func (dh *deleteHarness) handler() *DeleteEntityHandler {
	return NewDeleteEntityHandler(dh.store, dh.users, dh.evalRepo, dh.cache, testLogger())
}

func TestDeleteEntity_OrganizationDetachesDependents(t *testing.T) {
	store, _, h := deleteFixture()
	store.addEntity(integrity.KindOrganization, "org-1")

	userRel := integrity.Relation{
		Parent: integrity.KindOrganization, Child: integrity.KindUser,
		Column: "organization_id", OnDelete: integrity.ActionDetach,
	}
	roleRel := integrity.Relation{
		Parent: integrity.KindOrganization, Child: integrity.KindUserRole,
		Column: "organization_id", OnDelete: integrity.ActionDetach,
	}
	store.addRefs(userRel, "org-1", 4)
	store.addRefs(roleRel, "org-1", 2)

	outcome, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindOrganization, EntityID: "org-1", ActorID: "admin-1",
	})
	require.NoError(t, err)

	assert.False(t, outcome.SoftDeleted)
	assert.Equal(t, 4, outcome.Detached[userRel.String()])
	assert.Equal(t, 2, outcome.Detached[roleRel.String()])
	assert.Empty(t, outcome.Cascaded)
	assert.Contains(t, store.hardDeleted, "org-1")
	assert.False(t, store.entities[integrity.KindOrganization]["org-1"])
}

func TestDeleteEntity_UserWithHistoryIsSoftDeleted(t *testing.T) {
	store, users, h := deleteFixture()
	store.addEntity(integrity.KindUser, "teacher-1")
	users.users["teacher-1"] = &identity.User{
		ID: "teacher-1", Email: "guru@sekolah.id", Status: identity.StatusActive,
	}

	historyRel := integrity.Relation{
		Parent: integrity.KindUser, Child: integrity.KindEvaluation,
		Column: "teacher_id", OnDelete: integrity.ActionBlockOrSoftDelete,
	}
	store.addRefs(historyRel, "teacher-1", 3)

	outcome, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "teacher-1", ActorID: "admin-1",
	})
	require.NoError(t, err)

	assert.True(t, outcome.SoftDeleted)
	assert.Equal(t, "admin-1", store.softDeleted["teacher-1"])

	// The row and every attachment survive so history keeps resolving.
	assert.True(t, store.entities[integrity.KindUser]["teacher-1"])
	assert.Empty(t, store.cascaded)
	assert.Empty(t, store.detached)
}

func TestDeleteEntity_UserWithoutHistoryIsHardDeleted(t *testing.T) {
	store, users, h := deleteFixture()
	store.addEntity(integrity.KindUser, "user-clean")
	users.users["user-clean"] = &identity.User{
		ID: "user-clean", Email: "baru@sekolah.id", Status: identity.StatusActive,
	}

	roleRel := integrity.Relation{
		Parent: integrity.KindUser, Child: integrity.KindUserRole,
		Column: "user_id", OnDelete: integrity.ActionCascade,
	}
	fileRel := integrity.Relation{
		Parent: integrity.KindUser, Child: integrity.KindMediaFile,
		Column: "uploader_id", OnDelete: integrity.ActionDetach,
	}
	store.addRefs(roleRel, "user-clean", 2)
	store.addRefs(fileRel, "user-clean", 1)

	outcome, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "user-clean", ActorID: "admin-1",
	})
	require.NoError(t, err)

	assert.False(t, outcome.SoftDeleted)
	assert.Equal(t, 2, outcome.Cascaded[roleRel.String()])
	assert.Equal(t, 1, outcome.Detached[fileRel.String()])
	assert.Contains(t, store.hardDeleted, "user-clean")
	assert.Empty(t, store.softDeleted)
}

func TestDeleteEntity_AttachedFileIsBlocked(t *testing.T) {
	store, _, h := deleteFixture()
	store.addEntity(integrity.KindMediaFile, "file-1")

	attachRel := integrity.Relation{
		Parent: integrity.KindMediaFile, Child: integrity.KindRPPSubmission,
		Column: "file_id", OnDelete: integrity.ActionBlock,
	}
	store.addRefs(attachRel, "file-1", 1)

	_, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindMediaFile, EntityID: "file-1", ActorID: "admin-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrDeleteBlocked)
	assert.True(t, shared.IsBlocked(err))

	assert.True(t, store.entities[integrity.KindMediaFile]["file-1"])
	assert.Empty(t, store.hardDeleted)
}

func TestDeleteEntity_LastAdminIsProtected(t *testing.T) {
	store, users, h := deleteFixture()
	store.addEntity(integrity.KindUser, "admin-1")
	users.users["admin-1"] = &identity.User{
		ID: "admin-1", Email: "admin@sekolah.id", Status: identity.StatusActive,
		Roles: []identity.RoleAssignment{
			{ID: "role-1", UserID: "admin-1", RoleName: identity.RoleAdmin, IsActive: true},
		},
	}

	_, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "admin-1", ActorID: "admin-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLastAdmin)

	// The guard fires before the store is touched.
	assert.True(t, store.entities[integrity.KindUser]["admin-1"])
	assert.Empty(t, store.softDeleted)
	assert.Empty(t, store.hardDeleted)
}

func TestDeleteEntity_AdminDeletableWhileAnotherRemains(t *testing.T) {
	store, users, h := deleteFixture()
	store.addEntity(integrity.KindUser, "admin-1")
	for _, id := range []string{"admin-1", "admin-2"} {
		users.users[id] = &identity.User{
			ID: id, Email: id + "@sekolah.id", Status: identity.StatusActive,
			Roles: []identity.RoleAssignment{
				{ID: "role-" + id, UserID: id, RoleName: identity.RoleAdmin, IsActive: true},
			},
		}
	}

	outcome, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "admin-1", ActorID: "admin-2",
	})
	require.NoError(t, err)
	assert.False(t, outcome.SoftDeleted)
	assert.Contains(t, store.hardDeleted, "admin-1")
}

func TestDeleteEntity_ExpiredAdminRoleDoesNotCount(t *testing.T) {
	store, users, h := deleteFixture()
	store.addEntity(integrity.KindUser, "user-1")
	expired := time.Now().UTC().Add(-24 * time.Hour)
	users.users["user-1"] = &identity.User{
		ID: "user-1", Email: "mantan@sekolah.id", Status: identity.StatusActive,
		Roles: []identity.RoleAssignment{
			{ID: "role-1", UserID: "user-1", RoleName: identity.RoleAdmin, IsActive: true, ExpiresAt: &expired},
		},
	}

	// An expired admin assignment never triggers the last-admin guard.
	outcome, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "user-1", ActorID: "admin-2",
	})
	require.NoError(t, err)
	assert.False(t, outcome.SoftDeleted)
}

func TestDeleteEntity_UnknownKind(t *testing.T) {
	_, _, h := deleteFixture()

	_, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.EntityKind("spreadsheet"), EntityID: "x", ActorID: "admin-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownEntity)
}

func TestDeleteEntity_MissingEntity(t *testing.T) {
	store, _, h := deleteFixture()
	store.addEntity(integrity.KindOrganization, "org-1")

	_, err := h.Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindOrganization, EntityID: "org-404", ActorID: "admin-1",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestDeleteEntity_EvaluationDeleteDropsCachedSummary(t *testing.T) {
	dh := newDeleteHarness()
	key := evaluation.ParentKey{
		TeacherID: "teacher-1", PeriodID: "period-1", EvaluatorID: "evaluator-1",
	}
	dh.evalRepo.seed(&evaluation.TeacherEvaluation{
		ID: "eval-1", TeacherID: key.TeacherID, PeriodID: key.PeriodID, EvaluatorID: key.EvaluatorID,
	})
	dh.store.addEntity(integrity.KindEvaluation, "eval-1")

	itemRel := integrity.Relation{
		Parent: integrity.KindEvaluation, Child: integrity.KindItem,
		Column: "teacher_evaluation_id", OnDelete: integrity.ActionCascade,
	}
	dh.store.addRefs(itemRel, "eval-1", 3)

	outcome, err := dh.handler().Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindEvaluation, EntityID: "eval-1", ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Cascaded[itemRel.String()])

	// A reader must not find the deleted evaluation in the cache.
	assert.Equal(t, []evaluation.ParentKey{key}, dh.cache.invalidated)
}

func TestDeleteEntity_SoftDeletedUserWipesTeacherSummaries(t *testing.T) {
	dh := newDeleteHarness()
	dh.store.addEntity(integrity.KindUser, "teacher-1")
	dh.users.users["teacher-1"] = &identity.User{
		ID: "teacher-1", Email: "guru@sekolah.id", Status: identity.StatusActive,
	}

	historyRel := integrity.Relation{
		Parent: integrity.KindUser, Child: integrity.KindEvaluation,
		Column: "teacher_id", OnDelete: integrity.ActionBlockOrSoftDelete,
	}
	dh.store.addRefs(historyRel, "teacher-1", 2)

	outcome, err := dh.handler().Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "teacher-1", ActorID: "admin-1",
	})
	require.NoError(t, err)
	require.True(t, outcome.SoftDeleted)

	assert.Equal(t, []string{"teacher-1"}, dh.cache.teacherWipes)
	assert.Empty(t, dh.cache.invalidated)
}

func TestDeleteEntity_CacheFailureDoesNotFailDelete(t *testing.T) {
	dh := newDeleteHarness()
	dh.store.addEntity(integrity.KindUser, "user-9")
	dh.users.users["user-9"] = &identity.User{
		ID: "user-9", Email: "staf@sekolah.id", Status: identity.StatusActive,
	}
	dh.cache.failNext = errors.New("redis down")

	outcome, err := dh.handler().Handle(context.Background(), DeleteEntityCommand{
		Kind: integrity.KindUser, EntityID: "user-9", ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.False(t, outcome.SoftDeleted)
	assert.Contains(t, dh.store.hardDeleted, "user-9")
}
