package text

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/simpledl/gon/neuralnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, Tokenize("Hello, WORLD!  42"))
	assert.Empty(t, Tokenize(" ... "))
}

func TestHashingVectorizer(t *testing.T) {
	h := NewHashingVectorizer(16)
	assert.Equal(t, 16, h.Features())

	x, err := h.Transform([]string{"spam spam eggs", "Eggs SPAM spam", ""})
	require.NoError(t, err)
	r, c := x.Dims()
	assert.Equal(t, 16, r)
	assert.Equal(t, 3, c)

	// word order and case do not matter
	assert.Equal(t, mat.Col(nil, 0, x), mat.Col(nil, 1, x))
	assert.Equal(t, 3.0, floats.Sum(mat.Col(nil, 0, x)))
	assert.Equal(t, 0.0, floats.Sum(mat.Col(nil, 2, x)))

	h.Binary = true
	x, err = h.Transform([]string{"spam spam eggs"})
	require.NoError(t, err)
	assert.LessOrEqual(t, floats.Sum(mat.Col(nil, 0, x)), 2.0)
	assert.Equal(t, 1.0, floats.Max(mat.Col(nil, 0, x)))
}

func TestHashingVectorizerErrors(t *testing.T) {
	_, err := (&HashingVectorizer{}).Transform([]string{"a"})
	assert.ErrorIs(t, err, ErrNoFeatures)

	_, err = NewHashingVectorizer(4).Transform(nil)
	assert.Error(t, err)
}

func TestVectorizerGob(t *testing.T) {
	var v neuralnet.Vectorizer = &HashingVectorizer{Buckets: 8, Binary: true}

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(&v))
	var got neuralnet.Vectorizer
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))
	assert.Equal(t, v, got)
}

func TestTokenVectorizer(t *testing.T) {
	v := NewTokenVectorizer("", 32)
	assert.Equal(t, DefaultEncoding, v.Encoding)

	ids, err := v.Tokens("hello world")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	require.NotEmpty(t, ids)

	x, err := v.Transform([]string{"hello world", "hello world"})
	require.NoError(t, err)
	r, c := x.Dims()
	assert.Equal(t, 32, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, float64(len(ids)), floats.Sum(mat.Col(nil, 0, x)))
	assert.Equal(t, mat.Col(nil, 0, x), mat.Col(nil, 1, x))
}

func TestTokenVectorizerUnknownEncoding(t *testing.T) {
	v := NewTokenVectorizer("no_such_encoding", 8)
	_, err := v.Transform([]string{"a"})
	assert.Error(t, err)
}
