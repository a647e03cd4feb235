package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simpledl/gon/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}

func TestCSVLoaderBinary(t *testing.T) {
	path := writeFile(t, "toy.csv", []byte("f1,f2,label\n1,2,0\n3,4,1\n5,6,1\n7,8,0\n"))
	s, err := CSVLoader{LabelColumn: -1, Header: true}.Load(path, 0.25)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Classes)
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}}, rows(s.XTrain))
	assert.Equal(t, [][]float64{{0, 1, 1}}, rows(s.YTrain))
	assert.Equal(t, [][]float64{{7}, {8}}, rows(s.XDev))
	assert.Equal(t, [][]float64{{0}}, rows(s.YDev))
}

func TestCSVLoaderMultiClass(t *testing.T) {
	path := writeFile(t, "multi.csv", []byte("0,1.5,-1\n1,2.5,-2\n2,3.5,-3\n1,4.5,-4\n"))
	s, err := CSVLoader{LabelColumn: 0}.Load(path, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Classes)
	assert.Equal(t, [][]float64{{1.5, 2.5, 3.5, 4.5}, {-1, -2, -3, -4}}, rows(s.XTrain))
	assert.Equal(t, [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 1},
		{0, 0, 1, 0},
	}, rows(s.YTrain))
	assert.Nil(t, s.XDev)
	assert.Nil(t, s.YDev)
}

func TestCSVLoaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		testSize float64
		want     error
	}{
		{"ragged", "1,2,0\n3,1\n", 0, ErrInconsistentRow},
		{"empty", "a,b,label\n", 0, ErrEmpty},
		{"negative label", "1,2,-1\n", 0, ErrNegativeLabel},
		{"test size one", "1,2,0\n", 1, ErrTestSize},
		{"test size negative", "1,2,0\n", -0.1, ErrTestSize},
		{"all held out", "1,2,0\n", 0.9, ErrNoTrainExamples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", []byte(tt.data))
			_, err := CSVLoader{LabelColumn: -1, Header: tt.name == "empty"}.Load(path, tt.testSize)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	path := writeFile(t, "nan.csv", []byte("x,0\n"))
	_, err := CSVLoader{LabelColumn: -1}.Load(path, 0)
	assert.Error(t, err)

	_, err = CSVLoader{}.Load(filepath.Join(t.TempDir(), "missing.csv"), 0)
	assert.Error(t, err)
}

func TestTextLoader(t *testing.T) {
	path := writeFile(t, "docs.csv", []byte("text,label\n\"great, great film\",1\nawful film,0\nfine,1\n"))
	v := text.NewHashingVectorizer(8)
	s, err := TextLoader{Vectorizer: v, Header: true}.Load(path, 1.0/3)
	require.NoError(t, err)

	r, c := s.XTrain.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, [][]float64{{1, 0}}, rows(s.YTrain))
	assert.Equal(t, [][]float64{{1}}, rows(s.YDev))

	want, err := v.Transform([]string{"great, great film"})
	require.NoError(t, err)
	assert.Equal(t, mat.Col(nil, 0, want), mat.Col(nil, 0, s.XTrain))

	_, err = TextLoader{}.Load(path, 0)
	assert.Error(t, err)
}

func cifarRecord(label byte, seed int) []byte {
	rec := make([]byte, Row)
	rec[0] = label
	for i := 0; i < ImageSize; i++ {
		rec[LabelSize+i] = byte((seed + i) % 256)
	}
	return rec
}

func TestCIFAR10Loader(t *testing.T) {
	var data []byte
	data = append(data, cifarRecord(3, 0)...)
	data = append(data, cifarRecord(9, 1)...)
	data = append(data, cifarRecord(0, 2)...)
	path := writeFile(t, "data_batch_1.bin", data)

	s, err := CIFAR10Loader{}.Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, CIFAR10Classes, s.Classes)

	r, c := s.XTrain.Dims()
	assert.Equal(t, ImageSize, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.0, s.XTrain.At(0, 0))
	assert.Equal(t, 6/255.0, s.XTrain.At(5, 1))
	assert.Equal(t, 255/255.0, s.XTrain.At(253, 2))

	r, c = s.YTrain.Dims()
	assert.Equal(t, CIFAR10Classes, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 1.0, s.YTrain.At(3, 0))
	assert.Equal(t, 1.0, s.YTrain.At(9, 1))
	assert.Equal(t, 1.0, s.YTrain.At(0, 2))
	assert.Equal(t, 3.0, mat.Sum(s.YTrain))

	s, err = CIFAR10Loader{Limit: 2}.Load(path, 0.5)
	require.NoError(t, err)
	_, c = s.XTrain.Dims()
	assert.Equal(t, 1, c)
	_, c = s.XDev.Dims()
	assert.Equal(t, 1, c)
}

func TestCIFAR10LoaderErrors(t *testing.T) {
	truncated := writeFile(t, "short.bin", cifarRecord(1, 0)[:100])
	_, err := CIFAR10Loader{}.Load(truncated, 0)
	assert.ErrorIs(t, err, ErrInconsistentRow)

	badLabel := writeFile(t, "label.bin", cifarRecord(12, 0))
	_, err = CIFAR10Loader{}.Load(badLabel, 0)
	assert.ErrorIs(t, err, ErrInconsistentRow)

	empty := writeFile(t, "empty.bin", nil)
	_, err = CIFAR10Loader{}.Load(empty, 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLabelNames(t *testing.T) {
	path := writeFile(t, "batches.meta.txt", []byte("airplane\nautomobile\n\nbird\n"))
	names, err := LabelNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"airplane", "automobile", "bird"}, names)
}

func TestOneHot(t *testing.T) {
	y, err := OneHot([]int{2, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {0, 0}, {1, 0}}, rows(y))

	_, err = OneHot([]int{3}, 3)
	assert.Error(t, err)
}
