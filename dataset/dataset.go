// Package dataset loads labelled examples into the column-per-example
// matrices the trainer expects and splits them into train and dev sets.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

var (
	ErrEmpty           = errors.New("dataset has no examples")
	ErrInconsistentRow = errors.New("inconsistent row")
	ErrTestSize        = errors.New("test size must be in [0, 1)")
	ErrNegativeLabel   = errors.New("negative class label")
	ErrNoTrainExamples = errors.New("test size leaves no training examples")
)

// Split holds features×m inputs and labels for training and evaluation.
// XDev and YDev are nil when the dev set is empty.
type Split struct {
	XTrain, YTrain *mat.Dense
	XDev, YDev     *mat.Dense
	// Classes is the number of label values; two classes use a single
	// label row.
	Classes int
}

// Loader reads source and holds out the trailing testSize fraction of the
// examples as the dev set.
type Loader interface {
	Load(source string, testSize float64) (*Split, error)
}

// samples collects examples one row at a time before they are laid out as
// columns.
type samples struct {
	features int
	data     []float64
	labels   []int
}

func (s *samples) add(row []float64, label int) {
	s.data = append(s.data, row...)
	s.labels = append(s.labels, label)
}

func (s *samples) len() int { return len(s.labels) }

// columns lays the n×features sample rows out as a features×n matrix.
func (s *samples) columns() (*mat.Dense, error) {
	return transpose(s.data, s.len(), s.features)
}

// transpose consumes data, a row-major rows×cols block, and returns its
// cols×rows transpose.
func transpose(data []float64, rows, cols int) (*mat.Dense, error) {
	if rows == 1 || cols == 1 {
		// vectors keep their element order
		return mat.NewDense(cols, rows, data), nil
	}
	t := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(rows, cols), tensor.WithBacking(data))
	if err := t.T(); err != nil {
		return nil, fmt.Errorf("failed to transpose: %w", err)
	}
	if err := t.Transpose(); err != nil {
		return nil, fmt.Errorf("failed to transpose: %w", err)
	}
	out, ok := t.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("unexpected tensor backing %T", t.Data())
	}
	return mat.NewDense(cols, rows, out), nil
}

// OneHot encodes labels as a classes×n matrix.
func OneHot(labels []int, classes int) (*mat.Dense, error) {
	n := len(labels)
	backing := make([]float64, n*classes)
	for i, label := range labels {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d out of range [0, %d)", label, classes)
		}
		backing[i*classes+label] = 1
	}
	return transpose(backing, n, classes)
}

// Labels encodes labels for a network with the matching output width: one
// 0/1 row for two classes, one-hot rows otherwise.
func Labels(labels []int, classes int) (*mat.Dense, error) {
	if classes > 2 {
		return OneHot(labels, classes)
	}
	row := make([]float64, len(labels))
	for i, label := range labels {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("label %d is not binary", label)
		}
		row[i] = float64(label)
	}
	return mat.NewDense(1, len(row), row), nil
}

func classCount(labels []int) (int, error) {
	top := 0
	for _, l := range labels {
		if l < 0 {
			return 0, fmt.Errorf("%w: %d", ErrNegativeLabel, l)
		}
		top = max(top, l)
	}
	return max(top+1, 2), nil
}

// NewSplit holds out the last round(testSize·m) columns of x and y.
func NewSplit(x, y *mat.Dense, classes int, testSize float64) (*Split, error) {
	if testSize < 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, fmt.Errorf("%w: got %v", ErrTestSize, testSize)
	}
	_, m := x.Dims()
	if _, ym := y.Dims(); ym != m {
		return nil, fmt.Errorf("%w: %d examples but %d labels", ErrInconsistentRow, m, ym)
	}
	dev := int(math.Round(testSize * float64(m)))
	train := m - dev
	if train == 0 {
		return nil, fmt.Errorf("%w: %d of %d held out", ErrNoTrainExamples, dev, m)
	}

	s := &Split{Classes: classes}
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	s.XTrain = mat.DenseCopyOf(x.Slice(0, xr, 0, train))
	s.YTrain = mat.DenseCopyOf(y.Slice(0, yr, 0, train))
	if dev > 0 {
		s.XDev = mat.DenseCopyOf(x.Slice(0, xr, train, m))
		s.YDev = mat.DenseCopyOf(y.Slice(0, yr, train, m))
	}
	return s, nil
}

func (s *samples) split(testSize float64, classes int) (*Split, error) {
	if s.len() == 0 {
		return nil, ErrEmpty
	}
	if classes == 0 {
		var err error
		if classes, err = classCount(s.labels); err != nil {
			return nil, err
		}
	}
	x, err := s.columns()
	if err != nil {
		return nil, err
	}
	y, err := Labels(s.labels, classes)
	if err != nil {
		return nil, err
	}
	return NewSplit(x, y, classes, testSize)
}
