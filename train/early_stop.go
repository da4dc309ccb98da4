package train

import (
	"math"

	"hawkdove/metrics"
)

// EarlyStopper counts epochs without a validation improvement.
//
// The counter goes up by one each time an epoch enters its training phase
// and drops to zero when any of the validation cross-entropy, accuracy or
// weighted F1 beats its best value by at least MinDelta. Each metric keeps
// its own best and only moves it when it qualifies.
type EarlyStopper struct {
	Patience int
	MinDelta float64

	Count int
	best  metrics.Scores
}

func NewEarlyStopper(patience int, minDelta float64) *EarlyStopper {
	return &EarlyStopper{
		Patience: patience,
		MinDelta: minDelta,
		best: metrics.Scores{
			CrossEntropy: math.Inf(1),
			Accuracy:     math.Inf(-1),
			F1:           math.Inf(-1),
		},
	}
}

// ShouldStop is checked at the start of every epoch.
func (e *EarlyStopper) ShouldStop() bool { return e.Count >= e.Patience }

// BeginTrain marks the start of an epoch's training phase.
func (e *EarlyStopper) BeginTrain() { e.Count++ }

// Observe records validation scores and reports whether any metric
// improved enough to reset the counter.
func (e *EarlyStopper) Observe(s metrics.Scores) bool {
	improved := false
	if s.CrossEntropy <= e.best.CrossEntropy-e.MinDelta {
		e.best.CrossEntropy = s.CrossEntropy
		improved = true
	}
	if s.Accuracy >= e.best.Accuracy+e.MinDelta {
		e.best.Accuracy = s.Accuracy
		improved = true
	}
	if s.F1 >= e.best.F1+e.MinDelta {
		e.best.F1 = s.F1
		improved = true
	}
	if improved {
		e.Count = 0
	}
	return improved
}

// Best returns the best value seen for each metric.
func (e *EarlyStopper) Best() metrics.Scores { return e.best }
