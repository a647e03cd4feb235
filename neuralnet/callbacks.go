package neuralnet

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Callback observes a training run.
type Callback interface {
	OnTrainBegin(model *Model)
	OnEpochEnd(epoch int, cost float64)
	OnTrainEnd(result *Result)
}

// BaseCallback provides empty implementations for Callback.
type BaseCallback struct{}

func (BaseCallback) OnTrainBegin(*Model)     {}
func (BaseCallback) OnEpochEnd(int, float64) {}
func (BaseCallback) OnTrainEnd(*Result)      {}

// CSVLogger writes the cost history to a CSV file, one row per epoch.
type CSVLogger struct {
	BaseCallback
	Filename string

	file   *os.File
	writer *csv.Writer
	err    error
}

func NewCSVLogger(filename string) *CSVLogger {
	return &CSVLogger{Filename: filename}
}

func (c *CSVLogger) OnTrainBegin(*Model) {
	file, err := os.Create(c.Filename)
	if err != nil {
		c.err = fmt.Errorf("csv logger: %w", err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.record([]string{"epoch", "cost"})
}

func (c *CSVLogger) OnEpochEnd(epoch int, cost float64) {
	if c.writer == nil {
		return
	}
	c.record([]string{strconv.Itoa(epoch), strconv.FormatFloat(cost, 'g', -1, 64)})
}

func (c *CSVLogger) OnTrainEnd(*Result) {
	if c.file == nil {
		return
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
	if err := c.file.Close(); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
	c.file = nil
	c.writer = nil
}

// Err reports the first failure seen while logging.
func (c *CSVLogger) Err() error {
	return c.err
}

func (c *CSVLogger) record(row []string) {
	if err := c.writer.Write(row); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
}
