package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
	"github.com/latticelearn/lattice-api/internal/platform/logger"
	"github.com/latticelearn/lattice-api/internal/store"
)

// PostgresGraphStore implements store.GraphStore over the nodes and
// prerequisite_edges tables. Both tables are written by the
// content-editing collaborator; this store only reads them.
type PostgresGraphStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGraphStore creates a read-only PostgreSQL view of the
// prerequisite graph. If logger is nil, the default logger is used.
func NewPostgresGraphStore(db store.DBTX, logger *slog.Logger) *PostgresGraphStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGraphStore{
		db:     db,
		logger: logger.With(slog.String("component", "graph_store")),
	}
}

// Ensure PostgresGraphStore implements store.GraphStore
var _ store.GraphStore = (*PostgresGraphStore)(nil)

// GetNode implements store.GraphStore.GetNode
func (s *PostgresGraphStore) GetNode(ctx context.Context, ref domain.NodeRef) (domain.Node, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, node_type, domain_id, code, name
		FROM nodes
		WHERE id = $1 AND node_type = $2`

	var (
		id       uuid.UUID
		nodeType string
		domainID uuid.UUID
		code     string
		name     string
	)
	err := s.db.QueryRowContext(ctx, query, ref.ID, ref.Type).
		Scan(&id, &nodeType, &domainID, &code, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNodeNotFound
		}
		log.Error("failed to get node",
			slog.String("error", err.Error()),
			slog.String("node", ref.String()))
		return nil, MapError(err)
	}

	switch domain.NodeType(nodeType) {
	case domain.NodeTypeDefinition:
		return domain.NewDefinition(id, domainID, code, name), nil
	case domain.NodeTypeExercise:
		return domain.NewExercise(id, domainID, code, name), nil
	default:
		log.Error("node row has unknown type",
			slog.String("node", ref.String()),
			slog.String("node_type", nodeType))
		return nil, domain.ErrInvalidNodeType
	}
}

// GetPrerequisites implements store.GraphStore.GetPrerequisites
// The join against nodes drops edges whose prerequisite has been deleted
// out from under them; those are logged, not surfaced as errors.
func (s *PostgresGraphStore) GetPrerequisites(
	ctx context.Context,
	ref domain.NodeRef,
) ([]domain.PrerequisiteEdge, error) {
	query := `
		SELECT e.node_id, e.node_type, e.prereq_id, e.prereq_type, e.weight, e.is_manual
		FROM prerequisite_edges e
		JOIN nodes n ON n.id = e.prereq_id AND n.node_type = e.prereq_type
		WHERE e.node_id = $1 AND e.node_type = $2`

	return s.queryEdges(ctx, query, ref)
}

// GetDependents implements store.GraphStore.GetDependents
func (s *PostgresGraphStore) GetDependents(
	ctx context.Context,
	ref domain.NodeRef,
) ([]domain.PrerequisiteEdge, error) {
	query := `
		SELECT e.node_id, e.node_type, e.prereq_id, e.prereq_type, e.weight, e.is_manual
		FROM prerequisite_edges e
		JOIN nodes n ON n.id = e.node_id AND n.node_type = e.node_type
		WHERE e.prereq_id = $1 AND e.prereq_type = $2`

	return s.queryEdges(ctx, query, ref)
}

func (s *PostgresGraphStore) queryEdges(
	ctx context.Context,
	query string,
	ref domain.NodeRef,
) ([]domain.PrerequisiteEdge, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, ref.ID, ref.Type)
	if err != nil {
		log.Error("failed to query prerequisite edges",
			slog.String("error", err.Error()),
			slog.String("node", ref.String()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	edges := []domain.PrerequisiteEdge{}
	for rows.Next() {
		var edge domain.PrerequisiteEdge
		var nodeType, prereqType string
		err := rows.Scan(
			&edge.Node.ID,
			&nodeType,
			&edge.Prerequisite.ID,
			&prereqType,
			&edge.Weight,
			&edge.IsManual,
		)
		if err != nil {
			log.Error("failed to scan edge row", slog.String("error", err.Error()))
			return nil, err
		}
		edge.Node.Type = domain.NodeType(nodeType)
		edge.Prerequisite.Type = domain.NodeType(prereqType)

		// An inconsistent edge is the editor's bug, not this reader's;
		// skip it so one bad row cannot block the whole review.
		if err := checkEdgeConsistency(edge); err != nil {
			log.Warn("skipping malformed prerequisite edge",
				slog.String("error", err.Error()),
				slog.String("node", edge.Node.String()),
				slog.String("prerequisite", edge.Prerequisite.String()))
			continue
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning edge rows", slog.String("error", err.Error()))
		return nil, err
	}

	return edges, nil
}

// checkEdgeConsistency reports whether a scanned edge row is structurally
// usable. An out-of-range weight alone does not disqualify an edge:
// EffectiveWeight treats it as a full-strength dependency downstream.
func checkEdgeConsistency(edge domain.PrerequisiteEdge) error {
	if err := edge.Validate(); err != nil && !errors.Is(err, domain.ErrEdgeInvalidWeight) {
		return err
	}
	return nil
}
