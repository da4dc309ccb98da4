package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AnalysisColumns is the header of the cross-sweep analysis log.
var AnalysisColumns = []string{
	"Model", "Category", "Experiments", "Seed", "Learning Rate", "Batch Size",
	"Val F1 Score", "Test Accuracy", "Test F1 Score", "End Time",
}

const analysisRecords = 10

// Analysis is one line of the analysis log: the best configuration found
// by a finished sweep.
type Analysis struct {
	Model       string
	Category    string
	Experiments int
	Best        ResultRow
	End         time.Time
}

// AppendAnalysis appends a to the CSV log at path, writing the header when
// the file is new.
func AppendAnalysis(path string, a Analysis) error {
	var needsHeaders bool
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeaders = true
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if needsHeaders {
		if err := w.Write(AnalysisColumns); err != nil {
			return fmt.Errorf("writing csv headers: %w", err)
		}
	}
	record := make([]string, analysisRecords)
	record[0] = a.Model
	record[1] = a.Category
	record[2] = strconv.Itoa(a.Experiments)
	record[3] = strconv.FormatInt(a.Best.Seed, 10)
	record[4] = strconv.FormatFloat(a.Best.LearningRate, 'g', -1, 64)
	record[5] = strconv.Itoa(a.Best.BatchSize)
	record[6] = strconv.FormatFloat(a.Best.Val.F1, 'f', 5, 64)
	record[7] = strconv.FormatFloat(a.Best.Test.Accuracy, 'f', 5, 64)
	record[8] = strconv.FormatFloat(a.Best.Test.F1, 'f', 5, 64)
	record[9] = strconv.FormatInt(a.End.Unix(), 10)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ErrNoAnalysis is returned by BestFor when no line matches the category.
var ErrNoAnalysis = errors.New("no analysis for category")

// BestFor scans the analysis log and returns the line for category with
// the highest validation F1. Later lines win ties.
func BestFor(path, category string) (Analysis, error) {
	file, err := os.Open(path)
	if err != nil {
		return Analysis{}, fmt.Errorf("opening analysis csv file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	highest := -1.
	var best Analysis
	found := false
	for i := 0; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Analysis{}, fmt.Errorf("reading record: %w", err)
		}
		if len(record) != analysisRecords {
			return Analysis{}, fmt.Errorf("there are %d analysis csv values in record %d, expected %d", len(record), i, analysisRecords)
		}
		if i == 0 || record[1] != category {
			continue
		}
		a, err := parseAnalysis(record)
		if err != nil {
			return Analysis{}, fmt.Errorf("record %d: %w", i, err)
		}
		if a.Best.Val.F1 >= highest {
			highest = a.Best.Val.F1
			best = a
			found = true
		}
	}
	if !found {
		return Analysis{}, fmt.Errorf("%w %q", ErrNoAnalysis, category)
	}
	return best, nil
}

func parseAnalysis(record []string) (Analysis, error) {
	a := Analysis{Model: record[0], Category: record[1]}
	var err error
	if a.Experiments, err = strconv.Atoi(record[2]); err != nil {
		return a, err
	}
	if a.Best.Seed, err = strconv.ParseInt(record[3], 10, 64); err != nil {
		return a, err
	}
	if a.Best.LearningRate, err = strconv.ParseFloat(record[4], 64); err != nil {
		return a, err
	}
	if a.Best.BatchSize, err = strconv.Atoi(record[5]); err != nil {
		return a, err
	}
	if a.Best.Val.F1, err = strconv.ParseFloat(record[6], 64); err != nil {
		return a, err
	}
	if a.Best.Test.Accuracy, err = strconv.ParseFloat(record[7], 64); err != nil {
		return a, err
	}
	if a.Best.Test.F1, err = strconv.ParseFloat(record[8], 64); err != nil {
		return a, err
	}
	end, err := strconv.ParseInt(record[9], 10, 64)
	if err != nil {
		return a, err
	}
	a.End = time.Unix(end, 0)
	return a, nil
}
