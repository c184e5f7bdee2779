package integrity

import (
	"context"

	"github.com/sekolah-hub/teacher-evaluation-hub/internal/domain/shared"
)

// RefCounter counts the records referencing an entity through one policy
// relation. Both the dry-run store and the transactional store view
// satisfy it.
type RefCounter interface {
	CountReferences(ctx context.Context, rel Relation, id string) (int, error)
}

// Decide walks the policy rows for the entity's kind and classifies the
// deletion. Only blocking relations consult reference counts; detach and
// cascade rows never prevent a deletion, so they are not counted here.
//
// A hard block (ActionBlock) wins over the soft-delete fallback: if any
// ActionBlock relation holds references the decision is Blocked even when
// every other blocker would have allowed a soft delete.
func Decide(ctx context.Context, counter RefCounter, kind EntityKind, id string) (Decision, error) {
	if !kind.IsValid() {
		return Decision{}, shared.ErrUnknownEntity
	}

	var (
		blockedBy []BlockingReference
		hardBlock bool
	)
	for _, rel := range RelationsFor(kind) {
		switch rel.OnDelete {
		case ActionBlock, ActionBlockOrSoftDelete:
			n, err := counter.CountReferences(ctx, rel, id)
			if err != nil {
				return Decision{}, err
			}
			if n == 0 {
				continue
			}
			blockedBy = append(blockedBy, BlockingReference{Relation: rel, Count: n})
			if rel.OnDelete == ActionBlock {
				hardBlock = true
			}
		}
	}

	switch {
	case len(blockedBy) == 0:
		return Decision{Kind: DecisionHard}, nil
	case hardBlock:
		return Decision{Kind: DecisionBlocked, BlockedBy: blockedBy}, nil
	default:
		return Decision{Kind: DecisionSoftDeleteRequired, BlockedBy: blockedBy}, nil
	}
}
