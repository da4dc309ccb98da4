// Package report writes experiment results to spreadsheets and plots.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"hawkdove/metrics"

	"github.com/xuri/excelize/v2"
)

// ResultColumns is the header of the sweep results sheet.
var ResultColumns = []string{
	"Seed", "Learning Rate", "Batch Size",
	"Val Cross Entropy", "Val Accuracy", "Val F1 Score",
	"Test Cross Entropy", "Test Accuracy", "Test F1 Score",
}

// EpochColumns is the header of the per-experiment epoch sheet. The sheet
// also carries a leading unnamed epoch index column.
var EpochColumns = []string{
	"Loss_train", "Accuracy_train", "F1_train",
	"Loss_valid", "Accuracy_valid", "F1_valid",
}

// ResultRow summarizes one experiment.
type ResultRow struct {
	Seed         int64
	LearningRate float64
	BatchSize    int
	Val          metrics.Scores
	Test         metrics.Scores
}

func (r ResultRow) values() []interface{} {
	return []interface{}{
		r.Seed, r.LearningRate, r.BatchSize,
		r.Val.CrossEntropy, r.Val.Accuracy, r.Val.F1,
		r.Test.CrossEntropy, r.Test.Accuracy, r.Test.F1,
	}
}

// EpochRow pairs the train and validation scores of one epoch.
type EpochRow struct {
	Train metrics.Scores
	Val   metrics.Scores
}

// ResultsFileName is final_<category>_<model>.xlsx.
func ResultsFileName(category, model string) string {
	return fmt.Sprintf("final_%s_%s.xlsx", category, model)
}

// WriteResults replaces path with a sheet holding every row.
func WriteResults(path string, rows []ResultRow) error {
	data := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		data = append(data, r.values())
	}
	return writeSheet(path, ResultColumns, data)
}

// WriteEpochResults replaces path with one row per epoch.
func WriteEpochResults(path string, rows []EpochRow) error {
	header := append([]string{""}, EpochColumns...)
	data := make([][]interface{}, 0, len(rows))
	for i, r := range rows {
		data = append(data, []interface{}{
			i,
			r.Train.CrossEntropy, r.Train.Accuracy, r.Train.F1,
			r.Val.CrossEntropy, r.Val.Accuracy, r.Val.F1,
		})
	}
	return writeSheet(path, header, data)
}

func writeSheet(path string, header []string, rows [][]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadResults loads rows written by WriteResults. A missing file yields no
// rows and no error.
func ReadResults(path string) ([]ResultRow, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := make(map[string]int)
	for i, h := range rows[0] {
		col[h] = i
	}
	for _, name := range ResultColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	out := make([]ResultRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		vals := make([]float64, len(ResultColumns))
		for j, name := range ResultColumns {
			idx := col[name]
			if idx >= len(row) {
				return nil, fmt.Errorf("%s: row %d: missing %q", path, i+2, name)
			}
			v, err := strconv.ParseFloat(row[idx], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %q: %w", path, i+2, name, err)
			}
			vals[j] = v
		}
		out = append(out, ResultRow{
			Seed:         int64(vals[0]),
			LearningRate: vals[1],
			BatchSize:    int(vals[2]),
			Val:          metrics.Scores{CrossEntropy: vals[3], Accuracy: vals[4], F1: vals[5]},
			Test:         metrics.Scores{CrossEntropy: vals[6], Accuracy: vals[7], F1: vals[8]},
		})
	}
	return out, nil
}

// Best returns the row with the highest validation F1, and false if rows is
// empty.
func Best(rows []ResultRow) (ResultRow, bool) {
	if len(rows) == 0 {
		return ResultRow{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Val.F1 > best.Val.F1 {
			best = r
		}
	}
	return best, true
}
