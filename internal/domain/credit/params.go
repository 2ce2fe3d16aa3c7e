package credit

// Params holds the tunable policy constants of credit propagation.
// The thresholds are policy, not physics; deployments adjust them
// through configuration.
type Params struct {
	// PropagationFactor scales the signed quality signal before edge
	// weights apply. At the default 0.2 a perfect review contributes
	// +0.2 credit across a weight-1.0 edge.
	PropagationFactor float64

	// PromotionThreshold and DemotionThreshold are the accumulated-credit
	// levels at which an engaged neighbor moves one status step.
	PromotionThreshold float64
	DemotionThreshold  float64

	// MaxFanout bounds how many edges a single propagation touches.
	// Edges beyond the cap are skipped; the graph editor keeps fan-out
	// far below this in practice.
	MaxFanout int
}

// NewDefaultParams returns the standard propagation policy.
func NewDefaultParams() *Params {
	return &Params{
		PropagationFactor:  0.2,
		PromotionThreshold: 0.5,
		DemotionThreshold:  -0.5,
		MaxFanout:          256,
	}
}

// ParamsConfig allows overriding individual defaults; zero values keep
// the default.
type ParamsConfig struct {
	PropagationFactor  float64
	PromotionThreshold float64
	DemotionThreshold  float64
	MaxFanout          int
}

// NewParams builds a Params from the defaults plus any overrides.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.PropagationFactor > 0 {
		params.PropagationFactor = config.PropagationFactor
	}
	if config.PromotionThreshold > 0 {
		params.PromotionThreshold = config.PromotionThreshold
	}
	if config.DemotionThreshold < 0 {
		params.DemotionThreshold = config.DemotionThreshold
	}
	if config.MaxFanout > 0 {
		params.MaxFanout = config.MaxFanout
	}

	return params
}
