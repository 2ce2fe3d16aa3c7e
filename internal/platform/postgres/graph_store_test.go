package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/latticelearn/lattice-api/internal/domain"
)

func TestCheckEdgeConsistency(t *testing.T) {
	def := domain.NodeRef{ID: uuid.New(), Type: domain.NodeTypeDefinition}
	ex := domain.NodeRef{ID: uuid.New(), Type: domain.NodeTypeExercise}

	t.Run("well-formed edge passes", func(t *testing.T) {
		edge := domain.PrerequisiteEdge{Node: ex, Prerequisite: def, Weight: 0.5}
		assert.NoError(t, checkEdgeConsistency(edge))
	})

	t.Run("out-of-range weight still passes", func(t *testing.T) {
		// EffectiveWeight defaults a malformed weight to full strength,
		// so the row must reach propagation instead of being filtered.
		edge := domain.PrerequisiteEdge{Node: ex, Prerequisite: def, Weight: 0}
		assert.NoError(t, checkEdgeConsistency(edge))
		edge.Weight = 2.5
		assert.NoError(t, checkEdgeConsistency(edge))
	})

	t.Run("self loop rejected", func(t *testing.T) {
		edge := domain.PrerequisiteEdge{Node: def, Prerequisite: def, Weight: 1}
		assert.ErrorIs(t, checkEdgeConsistency(edge), domain.ErrEdgeSelfLoop)
	})

	t.Run("non-definition prerequisite rejected", func(t *testing.T) {
		other := domain.NodeRef{ID: uuid.New(), Type: domain.NodeTypeExercise}
		edge := domain.PrerequisiteEdge{Node: ex, Prerequisite: other, Weight: 1}
		assert.ErrorIs(t, checkEdgeConsistency(edge), domain.ErrEdgePrereqNotDefinition)
	})

	t.Run("dangling ref rejected", func(t *testing.T) {
		edge := domain.PrerequisiteEdge{
			Node:         ex,
			Prerequisite: domain.NodeRef{ID: uuid.Nil, Type: domain.NodeTypeDefinition},
			Weight:       1,
		}
		assert.ErrorIs(t, checkEdgeConsistency(edge), domain.ErrNodeIDEmpty)
	})
}
