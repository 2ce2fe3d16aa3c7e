package srs

// Params defines all configurable knobs of the scheduling algorithm.
// The defaults implement the classic SM-2 recurrence; deployments tune
// them through configuration rather than code.
type Params struct {
	// MinEasinessFactor is the floor the easiness factor never drops below.
	MinEasinessFactor float64

	// FirstInterval and SecondInterval are the fixed intervals (in days)
	// for the first and second successful repetitions.
	FirstInterval  int
	SecondInterval int

	// FailureInterval is the reset interval (in days) after a failed review.
	FailureInterval int

	// MaxIntervalDays caps interval growth so a long run of easy reviews
	// cannot push a node out of rotation for years.
	MaxIntervalDays int

	// LearnedMinRepetitions and LearnedMinQuality gate promotion to the
	// learned status: the review must be at least LearnedMinQuality and
	// bring the consecutive-success count to at least LearnedMinRepetitions.
	LearnedMinRepetitions int
	LearnedMinQuality     int
}

// NewDefaultParams returns the standard SM-2 parameter set.
func NewDefaultParams() *Params {
	return &Params{
		MinEasinessFactor:     1.3,
		FirstInterval:         1,
		SecondInterval:        6,
		FailureInterval:       1,
		MaxIntervalDays:       365,
		LearnedMinRepetitions: 4,
		LearnedMinQuality:     4,
	}
}

// ParamsConfig allows overriding individual defaults; zero values keep
// the default.
type ParamsConfig struct {
	MinEasinessFactor     float64
	FirstInterval         int
	SecondInterval        int
	FailureInterval       int
	MaxIntervalDays       int
	LearnedMinRepetitions int
	LearnedMinQuality     int
}

// NewParams builds a Params from the defaults plus any overrides.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEasinessFactor > 0 {
		params.MinEasinessFactor = config.MinEasinessFactor
	}
	if config.FirstInterval > 0 {
		params.FirstInterval = config.FirstInterval
	}
	if config.SecondInterval > 0 {
		params.SecondInterval = config.SecondInterval
	}
	if config.FailureInterval > 0 {
		params.FailureInterval = config.FailureInterval
	}
	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}
	if config.LearnedMinRepetitions > 0 {
		params.LearnedMinRepetitions = config.LearnedMinRepetitions
	}
	if config.LearnedMinQuality > 0 {
		params.LearnedMinQuality = config.LearnedMinQuality
	}

	return params
}
