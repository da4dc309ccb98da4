// Package sweep runs a resumable grid search over seeds, batch sizes and
// learning rates.
package sweep

import "fmt"

// Grid is the cross product searched by a Driver, iterated seed-major,
// then batch size, then learning rate.
type Grid struct {
	Seeds         []int64
	BatchSizes    []int
	LearningRates []float64
}

// DefaultGrid is the hyperparameter grid used for every model and category.
func DefaultGrid() Grid {
	return Grid{
		Seeds:         []int64{5768, 78516, 944601},
		BatchSizes:    []int{32, 16, 8, 4},
		LearningRates: []float64{1e-4, 1e-5, 1e-6, 1e-7},
	}
}

// Size is the number of experiments in the grid.
func (g Grid) Size() int {
	return len(g.Seeds) * len(g.BatchSizes) * len(g.LearningRates)
}

// Checkpoint is a position in the grid. It is persisted as JSON with
// integer indices.
type Checkpoint struct {
	Seed         int `json:"seed"`
	BatchSize    int `json:"batch_size"`
	LearningRate int `json:"learning_rate"`
}

func (c Checkpoint) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.Seed, c.BatchSize, c.LearningRate)
}

// Ordinal is the 0-based position of c in iteration order.
func (g Grid) Ordinal(c Checkpoint) int {
	return (c.Seed*len(g.BatchSizes)+c.BatchSize)*len(g.LearningRates) + c.LearningRate
}

// Next returns the position after c. Past the last experiment it returns
// {len(Seeds), 0, 0}, which Done reports as finished.
func (g Grid) Next(c Checkpoint) Checkpoint {
	c.LearningRate++
	if c.LearningRate < len(g.LearningRates) {
		return c
	}
	c.LearningRate = 0
	c.BatchSize++
	if c.BatchSize < len(g.BatchSizes) {
		return c
	}
	c.BatchSize = 0
	c.Seed++
	return c
}

// Done reports whether c is past the last experiment.
func (g Grid) Done(c Checkpoint) bool { return c.Seed >= len(g.Seeds) }

// Validate checks that c is a position in g or the finished marker.
func (g Grid) Validate(c Checkpoint) error {
	if c == (Checkpoint{Seed: len(g.Seeds)}) {
		return nil
	}
	if c.Seed < 0 || c.Seed >= len(g.Seeds) ||
		c.BatchSize < 0 || c.BatchSize >= len(g.BatchSizes) ||
		c.LearningRate < 0 || c.LearningRate >= len(g.LearningRates) {
		return fmt.Errorf("checkpoint %v outside grid %dx%dx%d", c, len(g.Seeds), len(g.BatchSizes), len(g.LearningRates))
	}
	return nil
}

// Point is one experiment's hyperparameters.
type Point struct {
	At           Checkpoint
	Seed         int64
	BatchSize    int
	LearningRate float64
}

func (g Grid) point(c Checkpoint) Point {
	return Point{
		At:           c,
		Seed:         g.Seeds[c.Seed],
		BatchSize:    g.BatchSizes[c.BatchSize],
		LearningRate: g.LearningRates[c.LearningRate],
	}
}

// From lists every experiment at or after c in iteration order.
func (g Grid) From(c Checkpoint) []Point {
	var out []Point
	for ; !g.Done(c); c = g.Next(c) {
		out = append(out, g.point(c))
	}
	return out
}
