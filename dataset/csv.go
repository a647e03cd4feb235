package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/simpledl/gon/neuralnet"
)

// CSVLoader reads numeric features with an integer class label per row.
type CSVLoader struct {
	// LabelColumn indexes the label field; negative counts from the end,
	// so -1 is the last column.
	LabelColumn int
	Header      bool
}

func readRecords(source string, header bool) ([][]string, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var records [][]string
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if header && line == 1 {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

func parseLabel(field string, row int) (int, error) {
	label, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("row %d: invalid label %q: %w", row, field, err)
	}
	if label < 0 {
		return 0, fmt.Errorf("row %d: %w: %d", row, ErrNegativeLabel, label)
	}
	return label, nil
}

func (l CSVLoader) Load(source string, testSize float64) (*Split, error) {
	records, err := readRecords(source, l.Header)
	if err != nil {
		return nil, err
	}
	width := len(records[0])
	if width < 2 {
		return nil, fmt.Errorf("%w: row 1 has %d fields, need a feature and a label", ErrInconsistentRow, width)
	}
	labelCol := l.LabelColumn
	if labelCol < 0 {
		labelCol += width
	}
	if labelCol < 0 || labelCol >= width {
		return nil, fmt.Errorf("label column %d out of range for %d fields", l.LabelColumn, width)
	}

	s := &samples{features: width - 1}
	row := make([]float64, 0, width-1)
	for i, rec := range records {
		if len(rec) != width {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrInconsistentRow, i+1, len(rec), width)
		}
		row = row[:0]
		var label int
		for j, field := range rec {
			if j == labelCol {
				if label, err = parseLabel(field, i+1); err != nil {
					return nil, err
				}
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid value %q: %w", i+1, field, err)
			}
			row = append(row, v)
		}
		s.add(row, label)
	}
	return s.split(testSize, 0)
}

// TextLoader reads text,label rows and turns the text into features with
// Vectorizer, usually the one stored with the model.
type TextLoader struct {
	Vectorizer neuralnet.Vectorizer
	Header     bool
}

func (l TextLoader) Load(source string, testSize float64) (*Split, error) {
	if l.Vectorizer == nil {
		return nil, errors.New("text loader needs a vectorizer")
	}
	records, err := readRecords(source, l.Header)
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(records))
	labels := make([]int, len(records))
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d fields, want text,label", ErrInconsistentRow, i+1, len(rec))
		}
		docs[i] = rec[0]
		if labels[i], err = parseLabel(rec[1], i+1); err != nil {
			return nil, err
		}
	}

	x, err := l.Vectorizer.Transform(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to vectorize: %w", err)
	}
	classes, err := classCount(labels)
	if err != nil {
		return nil, err
	}
	y, err := Labels(labels, classes)
	if err != nil {
		return nil, err
	}
	return NewSplit(x, y, classes, testSize)
}
