package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simpledl/gon/neuralnet"
	"github.com/simpledl/gon/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var acts = []neuralnet.ActivationFunction{neuralnet.ReLU{}, neuralnet.Sigmoid{}}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m := &Manager{Dir: t.TempDir()}
	params := neuralnet.Params{Alpha: 0.05, Lambda: 0.7, Penalty: neuralnet.LayerPenalty}
	_, err := m.Create([]int{4, 3, 1}, acts, text.NewHashingVectorizer(4), params, neuralnet.WithSeed(3))
	require.NoError(t, err)
	return m
}

func requireSameModel(t *testing.T, want, got *neuralnet.Model) {
	t.Helper()
	assert.Equal(t, want.Shape, got.Shape)
	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, want.Vectorizer, got.Vectorizer)
	require.Len(t, got.Layers, len(want.Layers))
	for i := range want.Layers {
		assert.True(t, mat.Equal(want.Layers[i].W, got.Layers[i].W), "W%d", i+1)
		assert.True(t, mat.Equal(want.Layers[i].B, got.Layers[i].B), "B%d", i+1)
		assert.Equal(t, want.Layers[i].Activation.Kind(), got.Layers[i].Activation.Kind())
	}
}

func TestEncodeDecode(t *testing.T) {
	m := newManager(t)
	model := m.Model()
	model.Layers[0].B.Set(2, 0, -1.5)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, model))
	got, err := Decode(&buf)
	require.NoError(t, err)
	requireSameModel(t, model, got)

	r, c := got.Layers[0].B.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
}

func TestSaveGeneratesAndRemembersPath(t *testing.T) {
	m := newManager(t)
	path, err := m.Save(false)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	assert.Equal(t, m.Dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "model_"))
	assert.Equal(t, ".gob", filepath.Ext(path))

	loaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	requireSameModel(t, m.Model(), loaded.Model())
}

func TestSaveOverwrite(t *testing.T) {
	m := newManager(t)
	first, err := m.Save(false)
	require.NoError(t, err)

	second, err := m.Save(true)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := m.Save(false)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, first, m.Path)

	entries, err := os.ReadDir(m.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUpdate(t *testing.T) {
	m := newManager(t)
	next := m.Model().Clone()
	next.Layers[1].W.Set(0, 0, 42)
	m.Update(next)

	path, err := m.Save(false)
	require.NoError(t, err)
	var loaded Manager
	got, err := loaded.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Layers[1].W.At(0, 0))
}

func TestShapes(t *testing.T) {
	var empty Manager
	_, err := empty.Shapes()
	assert.ErrorIs(t, err, ErrNoModel)
	_, err = empty.Save(true)
	assert.ErrorIs(t, err, ErrNoModel)

	m := newManager(t)
	shapes, err := m.Shapes()
	require.NoError(t, err)
	assert.Equal(t, "[(W1, 3x4) (B1, 3x1) (W2, 1x3) (B2, 1x1)]", shapes)
}

func TestLoadErrors(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.gob")
	require.NoError(t, os.WriteFile(bad, []byte("not gob"), 0o644))
	_, err = NewManager(bad)
	assert.Error(t, err)
}

func TestSnapshotRejectsBadLayer(t *testing.T) {
	s := NewSnapshot(newManager(t).Model())
	s.Layers[0].Weights = s.Layers[0].Weights[:5]
	_, err := s.Model()
	assert.ErrorIs(t, err, neuralnet.ErrParameterShape)

	s = NewSnapshot(newManager(t).Model())
	s.Layers[1].Activation = "softsign"
	_, err = s.Model()
	assert.Error(t, err)

	s = NewSnapshot(newManager(t).Model())
	s.Layers[1].Bias = []float64{1, 2}
	_, err = s.Model()
	assert.ErrorIs(t, err, neuralnet.ErrParameterShape)
}
