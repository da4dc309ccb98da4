// Package metrics scores classifier predictions.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Scores are the per-phase metrics reported for an epoch or a test pass.
type Scores struct {
	CrossEntropy float64
	Accuracy     float64
	F1           float64
}

func (s Scores) String() string {
	return fmt.Sprintf("ce=%.4f acc=%.4f f1=%.4f", s.CrossEntropy, s.Accuracy, s.F1)
}

// Accumulator collects per-example losses and predictions over a phase.
type Accumulator struct {
	losses []float64
	actual []int
	pred   []int
}

// Add records one example.
func (a *Accumulator) Add(loss float64, actual, pred int) {
	a.losses = append(a.losses, loss)
	a.actual = append(a.actual, actual)
	a.pred = append(a.pred, pred)
}

func (a *Accumulator) Len() int { return len(a.actual) }

// Scores computes the phase metrics over every example added so far.
func (a *Accumulator) Scores() Scores {
	return Scores{
		CrossEntropy: MeanCrossEntropy(a.losses),
		Accuracy:     Accuracy(a.actual, a.pred),
		F1:           WeightedF1(a.actual, a.pred),
	}
}

// MeanCrossEntropy is the mean of per-example losses; 0 for none.
func MeanCrossEntropy(losses []float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	return floats.Sum(losses) / float64(len(losses))
}

// Accuracy is the fraction of positions where pred matches actual.
func Accuracy(actual, pred []int) float64 {
	if len(actual) == 0 {
		return 0
	}
	correct := 0
	for i := range actual {
		if actual[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual))
}

// WeightedF1 averages per-class F1 weighted by each class's support in
// actual. Classes are those present in either actual or pred; a class with
// no predicted or no actual members scores 0.
func WeightedF1(actual, pred []int) float64 {
	if len(actual) == 0 {
		return 0
	}
	labels := labelSet(actual, pred)
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	tp := make([]float64, len(labels))
	predCount := make([]float64, len(labels))
	support := make([]float64, len(labels))
	for i := range actual {
		a, p := index[actual[i]], index[pred[i]]
		support[a]++
		predCount[p]++
		if a == p {
			tp[a]++
		}
	}
	f1 := make([]float64, len(labels))
	for i := range labels {
		denom := predCount[i] + support[i]
		if denom > 0 {
			f1[i] = 2 * tp[i] / denom
		}
	}
	total := floats.Sum(support)
	if total == 0 {
		return 0
	}
	return floats.Dot(f1, support) / total
}

func labelSet(actual, pred []int) []int {
	seen := make(map[int]bool)
	var labels []int
	for _, s := range [][]int{actual, pred} {
		for _, l := range s {
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	sort.Ints(labels)
	return labels
}
