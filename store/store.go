// Package store keeps a model on disk between training, export and
// prediction runs.
package store

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/simpledl/gon/neuralnet"
	"gonum.org/v1/gonum/mat"
)

// ErrNoModel is returned when saving or describing before a model exists.
var ErrNoModel = errors.New("no model")

// Snapshot is the gob-encoded form of a model. Biases are stored flat and
// restored as column vectors.
type Snapshot struct {
	Shape      []int
	Params     neuralnet.Params
	Layers     []LayerSnapshot
	Vectorizer neuralnet.Vectorizer
}

type LayerSnapshot struct {
	Rows, Cols int
	Weights    []float64
	Bias       []float64
	Activation string
}

// NewSnapshot captures model.
func NewSnapshot(model *neuralnet.Model) *Snapshot {
	s := &Snapshot{
		Shape:      append([]int(nil), model.Shape...),
		Params:     model.Params,
		Layers:     make([]LayerSnapshot, len(model.Layers)),
		Vectorizer: model.Vectorizer,
	}
	for i, l := range model.Layers {
		r, c := l.W.Dims()
		s.Layers[i] = LayerSnapshot{
			Rows:       r,
			Cols:       c,
			Weights:    mat.DenseCopyOf(l.W).RawMatrix().Data,
			Bias:       mat.Col(nil, 0, l.B),
			Activation: l.Activation.Kind().String(),
		}
	}
	return s
}

// Model rebuilds the network, validating every parameter against Shape.
func (s *Snapshot) Model() (*neuralnet.Model, error) {
	weights := make([]*mat.Dense, len(s.Layers))
	biases := make([]*mat.Dense, len(s.Layers))
	acts := make([]neuralnet.ActivationFunction, len(s.Layers))
	for i, l := range s.Layers {
		if l.Rows*l.Cols != len(l.Weights) || l.Rows == 0 || len(l.Bias) == 0 {
			return nil, fmt.Errorf("%w: layer %d holds %d weights for %dx%d",
				neuralnet.ErrParameterShape, i+1, len(l.Weights), l.Rows, l.Cols)
		}
		weights[i] = mat.NewDense(l.Rows, l.Cols, l.Weights)
		biases[i] = mat.NewDense(1, len(l.Bias), l.Bias)

		kind, err := neuralnet.ParseKind(l.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
		if acts[i], err = neuralnet.ActivationFor(kind); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
	}
	m, err := neuralnet.FromParameters(s.Shape, weights, biases, acts, s.Params)
	if err != nil {
		return nil, err
	}
	m.Vectorizer = s.Vectorizer
	return m, nil
}

// Encode writes model to w.
func Encode(w io.Writer, model *neuralnet.Model) error {
	if err := gob.NewEncoder(w).Encode(NewSnapshot(model)); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*neuralnet.Model, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return s.Model()
}

// Manager holds one model and the file it was last loaded from or saved to.
type Manager struct {
	// Path is the remembered model file; empty until the first Load or Save.
	Path string
	// Dir receives generated file names. Empty means the working directory.
	Dir string

	model *neuralnet.Model
}

// NewManager returns a manager, loading path when it is not empty.
func NewManager(path string) (*Manager, error) {
	m := &Manager{}
	if path == "" {
		return m, nil
	}
	if _, err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Create replaces the held model with a freshly initialized one.
func (m *Manager) Create(shape []int, activations []neuralnet.ActivationFunction, vectorizer neuralnet.Vectorizer, params neuralnet.Params, opts ...neuralnet.Option) (*neuralnet.Model, error) {
	opts = append(opts, neuralnet.WithVectorizer(vectorizer))
	model, err := neuralnet.NewModel(shape, activations, params, opts...)
	if err != nil {
		return nil, err
	}
	m.model = model
	return model, nil
}

// Update replaces the held model, typically with a training result.
func (m *Manager) Update(model *neuralnet.Model) {
	m.model = model
}

// Model returns the held model or nil.
func (m *Manager) Model() *neuralnet.Model {
	return m.model
}

// Save writes the held model and returns the path used. With a known Path,
// overwrite rewrites it in place and otherwise a new file name is generated
// while Path stays unchanged. Without a known Path a name is generated and
// remembered.
func (m *Manager) Save(overwrite bool) (string, error) {
	if m.model == nil {
		return "", ErrNoModel
	}
	var path string
	switch {
	case m.Path != "" && overwrite:
		path = m.Path
	case m.Path != "":
		path = m.generatePath()
	default:
		m.Path = m.generatePath()
		path = m.Path
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()
	if err := Encode(file, m.model); err != nil {
		return "", err
	}
	return path, file.Close()
}

// Load reads path, holds the model and remembers path.
func (m *Manager) Load(path string) (*neuralnet.Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	model, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.model = model
	m.Path = path
	return model, nil
}

// Shapes lists the name and dimensions of every parameter.
func (m *Manager) Shapes() (string, error) {
	if m.model == nil {
		return "", ErrNoModel
	}
	return m.model.Describe(), nil
}

func (m *Manager) generatePath() string {
	return filepath.Join(m.Dir, fmt.Sprintf("model_%s.gob", uuid.NewString()))
}
