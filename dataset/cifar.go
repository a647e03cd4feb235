package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ImageSize = 32 * 32 * 3
	LabelSize = 1
	Row       = LabelSize + ImageSize
	// CIFAR10Classes is the width of the one-hot label block.
	CIFAR10Classes = 10
)

// CIFAR10Loader reads a CIFAR-10 binary batch: each record is one label
// byte followed by the red, green and blue 32×32 planes. Pixels are scaled
// to [0, 1].
type CIFAR10Loader struct {
	// Limit caps the number of records read; 0 reads the whole file.
	Limit int
}

func (l CIFAR10Loader) Load(source string, testSize float64) (*Split, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	s := &samples{features: ImageSize}
	r := bufio.NewReader(file)
	record := make([]byte, Row)
	pixels := make([]float64, ImageSize)
	for l.Limit <= 0 || s.len() < l.Limit {
		_, err := io.ReadFull(r, record)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated record %d", ErrInconsistentRow, s.len()+1)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		label := int(record[0])
		if label >= CIFAR10Classes {
			return nil, fmt.Errorf("%w: record %d has label %d", ErrInconsistentRow, s.len()+1, label)
		}
		for i, b := range record[LabelSize:] {
			pixels[i] = float64(b) / 255.0
		}
		s.add(pixels, label)
	}
	return s.split(testSize, CIFAR10Classes)
}

// LabelNames reads the class names of batches.meta.txt, one per line.
func LabelNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var words []string
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return words, nil
}
