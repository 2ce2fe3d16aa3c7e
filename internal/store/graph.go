package store

import (
	"context"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// GraphStore is the read-only view of the prerequisite graph and node
// identities. Both are owned by the content-editing collaborator, which
// also guarantees the dependency relation stays acyclic; this core only
// reads them.
type GraphStore interface {
	// GetNode resolves a node's identity and display metadata.
	// Returns ErrNodeNotFound if no such node exists.
	GetNode(ctx context.Context, ref domain.NodeRef) (domain.Node, error)

	// GetPrerequisites returns the direct prerequisite edges of a node.
	// Edges whose prerequisite no longer resolves to a node are skipped
	// and logged rather than failing the lookup.
	GetPrerequisites(ctx context.Context, ref domain.NodeRef) ([]domain.PrerequisiteEdge, error)

	// GetDependents returns the direct dependent edges of a node, i.e.
	// edges where the node is the prerequisite.
	GetDependents(ctx context.Context, ref domain.NodeRef) ([]domain.PrerequisiteEdge, error)
}
