package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hawkdove/metrics"
	"hawkdove/report"
	"hawkdove/utils"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	c     Checkpoint
	ok    bool
	saves []Checkpoint
}

func (m *memStore) Load() (Checkpoint, bool, error) { return m.c, m.ok, nil }

func (m *memStore) Save(c Checkpoint) error {
	m.c, m.ok = c, true
	m.saves = append(m.saves, c)
	return nil
}

func TestGridFromVisitsSuffixInOrder(t *testing.T) {
	g := DefaultGrid()
	all := g.From(Checkpoint{})
	require.Len(t, all, 48)
	for i, p := range all {
		require.Equal(t, i, g.Ordinal(p.At))
	}
	for i := range all {
		rest := g.From(all[i].At)
		require.Equal(t, all[i:], rest)
	}
	require.Empty(t, g.From(Checkpoint{Seed: 3}))
}

func TestGridResumeScenario(t *testing.T) {
	g := DefaultGrid()
	rest := g.From(Checkpoint{Seed: 1, BatchSize: 2, LearningRate: 0})
	require.Len(t, rest, 24)

	want := []struct {
		seed int64
		bs   int
		lr   float64
	}{
		{78516, 8, 1e-4}, {78516, 8, 1e-5}, {78516, 8, 1e-6}, {78516, 8, 1e-7},
		{78516, 4, 1e-4},
	}
	for i, w := range want {
		require.Equal(t, w.seed, rest[i].Seed)
		require.Equal(t, w.bs, rest[i].BatchSize)
		require.Equal(t, w.lr, rest[i].LearningRate)
	}
	require.Equal(t, int64(944601), rest[8].Seed)
	require.Equal(t, 32, rest[8].BatchSize)
}

func TestGridNextAndValidate(t *testing.T) {
	g := DefaultGrid()
	require.Equal(t, Checkpoint{0, 0, 1}, g.Next(Checkpoint{0, 0, 0}))
	require.Equal(t, Checkpoint{0, 1, 0}, g.Next(Checkpoint{0, 0, 3}))
	require.Equal(t, Checkpoint{1, 0, 0}, g.Next(Checkpoint{0, 3, 3}))
	require.Equal(t, Checkpoint{3, 0, 0}, g.Next(Checkpoint{2, 3, 3}))
	require.True(t, g.Done(Checkpoint{3, 0, 0}))

	require.NoError(t, g.Validate(Checkpoint{2, 3, 3}))
	require.NoError(t, g.Validate(Checkpoint{3, 0, 0}))
	require.Error(t, g.Validate(Checkpoint{3, 1, 0}))
	require.Error(t, g.Validate(Checkpoint{0, 4, 0}))
	require.Error(t, g.Validate(Checkpoint{0, 0, -1}))
}

func TestFileStore(t *testing.T) {
	s := FileStore{Path: filepath.Join(t.TempDir(), "model_data", "checkpoint")}
	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Save(Checkpoint{Seed: 1, BatchSize: 2, LearningRate: 0}))
	data, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	require.JSONEq(t, `{"seed": 1, "batch_size": 2, "learning_rate": 0}`, string(data))

	c, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Checkpoint{1, 2, 0}, c)

	require.NoError(t, os.WriteFile(s.Path, []byte("{"), 0o644))
	_, _, err = s.Load()
	require.Error(t, err)
}

type recorder struct {
	cfgs   []utils.Config
	failAt int
}

func (r *recorder) run(ctx context.Context, cfg utils.Config) (report.ResultRow, error) {
	if r.failAt > 0 && len(r.cfgs)+1 == r.failAt {
		return report.ResultRow{}, errors.New("out of memory")
	}
	r.cfgs = append(r.cfgs, cfg)
	return report.ResultRow{
		Seed: cfg.Seed, LearningRate: cfg.LearningRate, BatchSize: cfg.BatchSize,
		Val: metrics.Scores{F1: float64(len(r.cfgs)) / 100},
	}, nil
}

func newDriver(t *testing.T, store CheckpointStore, rec *recorder) *Driver {
	t.Helper()
	base := utils.DefaultConfig()
	base.ModelName = "roberta"
	base.DataCategory = "lab-manual-combine"
	base.SaveRoot = "/models/final_model"
	return &Driver{
		Grid:        DefaultGrid(),
		Store:       store,
		Run:         rec.run,
		Base:        base,
		TrainPrefix: "data/lab-manual-combine-train",
		TestPrefix:  "data/lab-manual-combine-test",
		ResultsPath: ResultsPath(t.TempDir(), "lab-manual-combine", "roberta"),
	}
}

func TestDriverFullSweep(t *testing.T) {
	store := &memStore{}
	rec := &recorder{}
	d := newDriver(t, store, rec)

	rows, ran, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 48, ran)
	require.Len(t, rows, 48)
	require.Len(t, rec.cfgs, 48)
	require.Equal(t, Checkpoint{Seed: 3}, store.c)
	require.Len(t, store.saves, 48)

	first := rec.cfgs[0]
	require.Equal(t, "data/lab-manual-combine-train-5768.xlsx", first.TrainPath)
	require.Equal(t, "data/lab-manual-combine-test-5768.xlsx", first.TestPath)
	require.Equal(t, "/models/final_modelrobertalab-manual-combine-5768-0.0001-32", first.SavePath())

	written, err := report.ReadResults(d.ResultsPath)
	require.NoError(t, err)
	require.Equal(t, rows, written)

	// A finished sweep does nothing on restart.
	again, ran, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, ran)
	require.Len(t, again, 48)
	require.Len(t, rec.cfgs, 48)
}

func TestDriverResumesFromCheckpoint(t *testing.T) {
	store := &memStore{c: Checkpoint{Seed: 1, BatchSize: 2, LearningRate: 0}, ok: true}
	rec := &recorder{}
	d := newDriver(t, store, rec)
	earlier := []report.ResultRow{{Seed: 5768, LearningRate: 1e-4, BatchSize: 32}}
	require.NoError(t, report.WriteResults(d.ResultsPath, earlier))

	rows, ran, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 24, ran)
	require.Len(t, rec.cfgs, 24)
	require.Len(t, rows, 25)
	require.Equal(t, earlier[0], rows[0])

	require.Equal(t, int64(78516), rec.cfgs[0].Seed)
	require.Equal(t, 8, rec.cfgs[0].BatchSize)
	require.Equal(t, 1e-4, rec.cfgs[0].LearningRate)
	require.Equal(t, 1e-5, rec.cfgs[1].LearningRate)
	require.Equal(t, 4, rec.cfgs[4].BatchSize)
}

func TestDriverFailureKeepsCheckpoint(t *testing.T) {
	store := &memStore{}
	rec := &recorder{failAt: 3}
	d := newDriver(t, store, rec)

	rows, ran, err := d.Sweep(context.Background())
	require.Error(t, err)
	require.Equal(t, 2, ran)
	require.Len(t, rows, 2)
	require.Equal(t, Checkpoint{0, 0, 2}, store.c)

	// The failed experiment is run again on resume.
	rec.failAt = 0
	rows, _, err = d.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 48)
	require.Equal(t, 1e-6, rec.cfgs[2].LearningRate)
}

func TestDriverStopsOnCancel(t *testing.T) {
	store := &memStore{}
	rec := &recorder{}
	d := newDriver(t, store, rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := d.Sweep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.cfgs)
	require.False(t, store.ok)
}
