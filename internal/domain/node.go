package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NodeType distinguishes the two kinds of study nodes.
type NodeType string

// Possible node type values
const (
	NodeTypeDefinition NodeType = "definition"
	NodeTypeExercise   NodeType = "exercise"
)

// Node-related validation errors
var (
	ErrNodeIDEmpty     = errors.New("node ID cannot be empty")
	ErrInvalidNodeType = errors.New("invalid node type")
)

// IsValid reports whether the node type is one of the known values.
func (t NodeType) IsValid() bool {
	return t == NodeTypeDefinition || t == NodeTypeExercise
}

// NodeRef identifies a node by its stable (id, type) pair.
// It is the key for progress rows and prerequisite edges.
type NodeRef struct {
	ID   uuid.UUID `json:"id"`
	Type NodeType  `json:"type"`
}

// NewNodeRef creates a validated NodeRef.
func NewNodeRef(id uuid.UUID, nodeType NodeType) (NodeRef, error) {
	ref := NodeRef{ID: id, Type: nodeType}
	if err := ref.Validate(); err != nil {
		return NodeRef{}, err
	}
	return ref, nil
}

// Validate checks the NodeRef fields.
func (r NodeRef) Validate() error {
	if r.ID == uuid.Nil {
		return ErrNodeIDEmpty
	}
	if !r.Type.IsValid() {
		return ErrInvalidNodeType
	}
	return nil
}

// String renders the ref for logging.
func (r NodeRef) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// Less imposes a total order on refs. The review orchestrator locks
// progress rows in this order so overlapping reviews cannot deadlock.
func (r NodeRef) Less(other NodeRef) bool {
	if r.ID != other.ID {
		return r.ID.String() < other.ID.String()
	}
	return r.Type < other.Type
}

// Node is the common interface over the definition/exercise variants.
// Content fields are owned by the content-management collaborator; this
// core only needs identity, domain membership and display metadata.
type Node interface {
	Ref() NodeRef
	DomainID() uuid.UUID
	Code() string
	Name() string
}

// nodeInfo carries the identity fields shared by both variants.
type nodeInfo struct {
	ID       uuid.UUID
	Domain   uuid.UUID
	NodeCode string
	NodeName string
}

// Definition is a node that may serve as a prerequisite for other nodes.
type Definition struct {
	nodeInfo
}

// Exercise is a node that practices one or more definitions. Exercises
// may depend on definitions but can never be a prerequisite themselves.
type Exercise struct {
	nodeInfo
}

// NewDefinition builds a Definition node.
func NewDefinition(id, domainID uuid.UUID, code, name string) *Definition {
	return &Definition{nodeInfo{ID: id, Domain: domainID, NodeCode: code, NodeName: name}}
}

// NewExercise builds an Exercise node.
func NewExercise(id, domainID uuid.UUID, code, name string) *Exercise {
	return &Exercise{nodeInfo{ID: id, Domain: domainID, NodeCode: code, NodeName: name}}
}

func (d *Definition) Ref() NodeRef        { return NodeRef{ID: d.ID, Type: NodeTypeDefinition} }
func (d *Definition) DomainID() uuid.UUID { return d.Domain }
func (d *Definition) Code() string        { return d.NodeCode }
func (d *Definition) Name() string        { return d.NodeName }

func (e *Exercise) Ref() NodeRef        { return NodeRef{ID: e.ID, Type: NodeTypeExercise} }
func (e *Exercise) DomainID() uuid.UUID { return e.Domain }
func (e *Exercise) Code() string        { return e.NodeCode }
func (e *Exercise) Name() string        { return e.NodeName }
