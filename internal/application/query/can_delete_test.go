package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/integrity"
	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

func TestCanDelete_CleanEntity(t *testing.T) {
	store := newDryRunStore()
	store.addEntity(integrity.KindOrganization, "org-1")
	h := NewCanDeleteHandler(store)

	res, err := h.Handle(context.Background(), CanDeleteQuery{
		Kind: integrity.KindOrganization, EntityID: "org-1",
	})
	require.NoError(t, err)

	assert.True(t, res.CanDelete)
	assert.False(t, res.RequiresSoftDelete)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Reason)
	assert.Empty(t, res.BlockedBy)
}

func TestCanDelete_UserWithHistoryRequiresSoftDelete(t *testing.T) {
	store := newDryRunStore()
	store.addEntity(integrity.KindUser, "teacher-1")
	rel := integrity.Relation{
		Parent: integrity.KindUser, Child: integrity.KindEvaluation,
		Column: "teacher_id", OnDelete: integrity.ActionBlockOrSoftDelete,
	}
	store.refs[rel.String()+":teacher-1"] = 7

	h := NewCanDeleteHandler(store)
	res, err := h.Handle(context.Background(), CanDeleteQuery{
		Kind: integrity.KindUser, EntityID: "teacher-1",
	})
	require.NoError(t, err)

	assert.False(t, res.CanDelete)
	assert.True(t, res.RequiresSoftDelete)
	assert.False(t, res.Blocked)
	assert.Contains(t, res.Reason, "teacher_id")
	require.Len(t, res.BlockedBy, 1)
	assert.Equal(t, "teacher_evaluation", res.BlockedBy[0].ChildKind)
	assert.Equal(t, 7, res.BlockedBy[0].Count)
}

func TestCanDelete_AttachedFileIsBlocked(t *testing.T) {
	store := newDryRunStore()
	store.addEntity(integrity.KindMediaFile, "file-1")
	rel := integrity.Relation{
		Parent: integrity.KindMediaFile, Child: integrity.KindRPPSubmission,
		Column: "file_id", OnDelete: integrity.ActionBlock,
	}
	store.refs[rel.String()+":file-1"] = 1

	h := NewCanDeleteHandler(store)
	res, err := h.Handle(context.Background(), CanDeleteQuery{
		Kind: integrity.KindMediaFile, EntityID: "file-1",
	})
	require.NoError(t, err)

	assert.True(t, res.Blocked)
	assert.False(t, res.CanDelete)
	assert.False(t, res.RequiresSoftDelete)
	assert.NotEmpty(t, res.Reason)
}

func TestCanDelete_MissingEntity(t *testing.T) {
	h := NewCanDeleteHandler(newDryRunStore())

	_, err := h.Handle(context.Background(), CanDeleteQuery{
		Kind: integrity.KindUser, EntityID: "ghost",
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestCanDelete_UnknownKind(t *testing.T) {
	h := NewCanDeleteHandler(newDryRunStore())

	_, err := h.Handle(context.Background(), CanDeleteQuery{
		Kind: integrity.EntityKind("classroom"), EntityID: "x",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownEntity)
}
