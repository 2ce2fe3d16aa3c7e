// Package credit implements partial-credit propagation over the
// prerequisite graph. A review is evidence not only about the reviewed
// node but, partially, about its neighbors: mastering an exercise
// implies some confidence in its prerequisite definitions, and
// struggling with a definition makes its dependents shakier too.
//
// Propagation is deliberately bounded: only direct neighbors are
// touched, deltas saturate at [-1, 1], and credit alone never moves a
// node more than one status step. Like the scheduler, the whole policy
// is a pure function of its inputs.
package credit

import (
	"time"

	"github.com/google/uuid"

	"github.com/latticelearn/lattice-api/internal/domain"
)

// Direction selects which side of the reviewed node receives credit.
type Direction string

// Propagation directions. Prerequisites is the default: a review flows
// evidence to the nodes the reviewed node depends on. Dependents is the
// reverse flow and is enabled by configuration only.
const (
	DirectionPrerequisites Direction = "prerequisites"
	DirectionDependents    Direction = "dependents"
)

// Effect describes what a propagation step did to one neighbor.
type Effect string

// Effect values
const (
	EffectAccumulated Effect = "accumulated"
	EffectPostponed   Effect = "postponed"
	EffectPromoted    Effect = "promoted"
	EffectDemoted     Effect = "demoted"
)

// NeighborUpdate is the computed outcome for one neighbor of the
// reviewed node.
type NeighborUpdate struct {
	Node     domain.NodeRef
	Delta    float64
	Effect   Effect
	Progress *domain.NodeProgress
}

// BaseDelta converts a quality grade into the signed unit signal:
// positive above neutral, negative below, zero at neutral, clamped to
// [-1, 1] so a total blackout cannot outweigh a perfect recall.
func BaseDelta(quality domain.Quality) float64 {
	base := float64(quality-domain.QualityNeutral) / 2
	return clamp(base, -1, 1)
}

// Delta is the credit contribution across a single edge.
func Delta(quality domain.Quality, weight float64, params *Params) float64 {
	return BaseDelta(quality) * params.PropagationFactor * weight
}

// Apply adds a signed delta to a neighbor's accumulator and resolves the
// consequences: postponement for unengaged nodes, threshold-driven
// one-step promotion or demotion for engaged ones. The input progress is
// not mutated.
func Apply(
	progress *domain.NodeProgress,
	delta float64,
	now time.Time,
	params *Params,
) NeighborUpdate {
	next := progress.Clone()
	next.AccumulatedCredit = clamp(next.AccumulatedCredit+delta, -1, 1)
	next.UpdatedAt = now

	update := NeighborUpdate{
		Node:     progress.Node,
		Delta:    delta,
		Progress: next,
	}

	// Credit cannot move a node the learner has never touched; bank it.
	if !next.Status.Engaged() {
		next.CreditPostponed = true
		update.Effect = EffectPostponed
		return update
	}

	update.Effect = resolveThresholds(next, params)
	return update
}

// Settle applies banked credit the first time a node receives a
// status-affecting event of its own. The postponement flag clears and
// the accumulator immediately participates in threshold evaluation.
// Calling it on a node without postponed credit is a no-op.
func Settle(progress *domain.NodeProgress, now time.Time, params *Params) *domain.NodeProgress {
	if !progress.CreditPostponed || !progress.Status.Engaged() {
		return progress
	}

	next := progress.Clone()
	next.CreditPostponed = false
	next.UpdatedAt = now
	resolveThresholds(next, params)
	return next
}

// resolveThresholds moves the status one step when the accumulator
// crosses a threshold, resetting the accumulator afterwards. Without the
// reset a saturated accumulator would re-promote on every propagation,
// letting credit alone walk a node several steps over time.
func resolveThresholds(progress *domain.NodeProgress, params *Params) Effect {
	if progress.AccumulatedCredit >= params.PromotionThreshold &&
		progress.Status != domain.StatusLearned {
		progress.Status = progress.Status.Next()
		progress.AccumulatedCredit = 0
		return EffectPromoted
	}

	if progress.AccumulatedCredit <= params.DemotionThreshold &&
		progress.Status != domain.StatusTackling {
		progress.Status = progress.Status.Prev()
		progress.AccumulatedCredit = 0
		return EffectDemoted
	}

	return EffectAccumulated
}

// NeighborRef resolves which end of an edge is the neighbor for the
// given direction.
func NeighborRef(edge domain.PrerequisiteEdge, direction Direction) domain.NodeRef {
	if direction == DirectionDependents {
		return edge.Node
	}
	return edge.Prerequisite
}

// Propagate computes the updates for all direct neighbors of a reviewed
// node. The progress lookup represents the neighbors' current state; a
// missing entry means the neighbor has never been touched and is treated
// as fresh defaults. Edges beyond the fan-out cap are ignored.
func Propagate(
	userID uuid.UUID,
	quality domain.Quality,
	edges []domain.PrerequisiteEdge,
	direction Direction,
	neighbors map[domain.NodeRef]*domain.NodeProgress,
	now time.Time,
	params *Params,
) []NeighborUpdate {
	base := BaseDelta(quality)
	if base == 0 {
		return nil
	}

	if len(edges) > params.MaxFanout {
		edges = edges[:params.MaxFanout]
	}

	updates := make([]NeighborUpdate, 0, len(edges))
	seen := make(map[domain.NodeRef]bool, len(edges))

	for _, edge := range edges {
		ref := NeighborRef(edge, direction)
		if seen[ref] {
			continue
		}
		seen[ref] = true

		progress, ok := neighbors[ref]
		if !ok {
			fresh, err := domain.NewNodeProgress(userID, ref)
			if err != nil {
				continue
			}
			progress = fresh
		}

		delta := base * params.PropagationFactor * edge.EffectiveWeight()
		updates = append(updates, Apply(progress, delta, now, params))
	}

	return updates
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
