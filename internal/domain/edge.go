package domain

import "errors"

// Edge-related validation errors
var (
	ErrEdgeSelfLoop            = errors.New("prerequisite edge cannot reference its own node")
	ErrEdgeInvalidWeight       = errors.New("edge weight must be in (0, 1]")
	ErrEdgePrereqNotDefinition = errors.New("prerequisite must be a definition")
)

// PrerequisiteEdge is a weighted directed dependency: the prerequisite
// must be understood before the dependent node. Weight 1.0 is a solid
// dependency, anything below is a partial one. Edges are owned by the
// graph-editing collaborator and are read-only inputs here; the editor
// guarantees the dependency relation stays acyclic.
type PrerequisiteEdge struct {
	Node         NodeRef `json:"node"`
	Prerequisite NodeRef `json:"prerequisite"`
	Weight       float64 `json:"weight"`
	IsManual     bool    `json:"is_manual"`
}

// Validate checks the edge invariants from the data model.
func (e PrerequisiteEdge) Validate() error {
	if err := e.Node.Validate(); err != nil {
		return err
	}
	if err := e.Prerequisite.Validate(); err != nil {
		return err
	}
	if e.Prerequisite.Type != NodeTypeDefinition {
		return ErrEdgePrereqNotDefinition
	}
	if e.Node == e.Prerequisite {
		return ErrEdgeSelfLoop
	}
	if e.Weight <= 0 || e.Weight > 1 {
		return ErrEdgeInvalidWeight
	}
	return nil
}

// EffectiveWeight returns the edge weight, defaulting malformed values
// to a full-strength dependency rather than failing the propagation.
func (e PrerequisiteEdge) EffectiveWeight() float64 {
	if e.Weight <= 0 || e.Weight > 1 {
		return 1.0
	}
	return e.Weight
}
