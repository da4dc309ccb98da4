// Package dataset reads labeled sentences from spreadsheets, tokenizes them
// and serves train/validation batches.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	SentenceColumn = "sentence"
	LabelColumn    = "label"

	// NumLabels is the number of stance classes a label may name.
	NumLabels = 3

	NoLabel = -1
)

// RawExample is one spreadsheet row. Sentence holds whatever the cell
// contained: a string for text cells, a float64 for numeric cells and nil
// for empty ones. Labels are only validated on text rows; other rows carry
// NoLabel when theirs does not parse.
type RawExample struct {
	Sentence interface{}
	Label    int
}

// Example is a row whose sentence is text.
type Example struct {
	Sentence string
	Label    int
}

// ErrMissingColumn is wrapped by ColumnError.
var ErrMissingColumn = errors.New("missing column")

// ColumnError reports a header without a required column.
type ColumnError struct {
	Path   string
	Column string
}

func (e ColumnError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Path, ErrMissingColumn, e.Column)
}

func (e ColumnError) Unwrap() error { return ErrMissingColumn }

type errInvalidLabel struct {
	path   string
	rowNum int
	value  string
}

func (e errInvalidLabel) Error() string {
	return fmt.Sprintf("%s: at row %d, label %q is not one of 0, 1, 2",
		e.path, e.rowNum, e.value)
}

// ReadFile reads a .xlsx or .csv file by extension.
func ReadFile(path string) ([]RawExample, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(path, f)
	default:
		return nil, fmt.Errorf("%s: unsupported spreadsheet type", path)
	}
}

// ReadXLSX reads the first sheet of an Excel workbook.
func ReadXLSX(path string) ([]RawExample, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, ColumnError{Path: path, Column: SentenceColumn}
	}
	sentCol, labelCol, err := headerColumns(path, rows[0])
	if err != nil {
		return nil, err
	}

	var out []RawExample
	for i, row := range rows[1:] {
		rowNum := i + 2
		labelText := cellAt(row, labelCol)
		sentText := cellAt(row, sentCol)
		if labelText == "" && sentText == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(sentCol+1, rowNum)
		if err != nil {
			return nil, err
		}
		typ, err := f.GetCellType(sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("reading %s!%s: %w", sheet, cell, err)
		}
		ex, err := rowExample(path, rowNum, cellValue(typ, sentText), labelText)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// cellValue maps a cell to the value a spreadsheet reader would type it as.
// Empty cells are nil whatever their declared type.
func cellValue(typ excelize.CellType, text string) interface{} {
	if text == "" {
		return nil
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return text
	case excelize.CellTypeBool:
		return text == "1" || strings.EqualFold(text, "TRUE")
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v
	}
	return text
}

// ReadCSV reads comma separated rows with a header line. Every non-empty
// cell is text.
func ReadCSV(name string, r io.Reader) ([]RawExample, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, ColumnError{Path: name, Column: SentenceColumn}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	sentCol, labelCol, err := headerColumns(name, header)
	if err != nil {
		return nil, err
	}

	var out []RawExample
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var sentence interface{}
		if s := cellAt(record, sentCol); s != "" {
			sentence = s
		}
		ex, err := rowExample(name, rowNum, sentence, cellAt(record, labelCol))
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

func headerColumns(path string, header []string) (sentence, label int, err error) {
	sentence, label = -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case SentenceColumn:
			sentence = i
		case LabelColumn:
			label = i
		}
	}
	if sentence < 0 {
		return 0, 0, ColumnError{Path: path, Column: SentenceColumn}
	}
	if label < 0 {
		return 0, 0, ColumnError{Path: path, Column: LabelColumn}
	}
	return sentence, label, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// rowExample pairs a typed sentence cell with its label. A bad label is an
// error only when the sentence is text; Filter drops the other rows anyway.
func rowExample(path string, rowNum int, sentence interface{}, labelText string) (RawExample, error) {
	label, err := parseLabel(path, rowNum, labelText)
	if err != nil {
		if _, ok := sentence.(string); ok {
			return RawExample{}, err
		}
		label = NoLabel
	}
	return RawExample{Sentence: sentence, Label: label}, nil
}

// parseLabel accepts integral values written either as "1" or "1.0".
func parseLabel(path string, rowNum int, text string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || v != math.Trunc(v) || v < 0 || v >= NumLabels {
		return 0, errInvalidLabel{path: path, rowNum: rowNum, value: text}
	}
	return int(v), nil
}

// Filter keeps the rows whose sentence is a string. Other rows are dropped
// without error.
func Filter(raw []RawExample) []Example {
	out := make([]Example, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.Sentence.(string); ok {
			out = append(out, Example{Sentence: s, Label: r.Label})
		}
	}
	return out
}

// Load reads and filters one spreadsheet.
func Load(path string) ([]Example, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Filter(raw), nil
}
