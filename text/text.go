// Package text turns documents into feature matrices with one document per
// column, the layout the networks train on.
package text

import (
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	"gonum.org/v1/gonum/mat"
)

// DefaultEncoding is the tiktoken encoding used when none is set.
const DefaultEncoding = "cl100k_base"

var ErrNoFeatures = errors.New("vectorizer has no features")

func init() {
	// models carry their vectorizer through gob as an interface value
	gob.Register(&HashingVectorizer{})
	gob.Register(&TokenVectorizer{})
}

// Tokenize lowercases doc and splits it on anything that is not a letter or
// a digit.
func Tokenize(doc string) []string {
	return strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashingVectorizer counts words into Buckets hashed rows.
type HashingVectorizer struct {
	Buckets int
	// Binary records presence instead of counts.
	Binary bool
}

func NewHashingVectorizer(buckets int) *HashingVectorizer {
	return &HashingVectorizer{Buckets: buckets}
}

func (h *HashingVectorizer) Features() int { return h.Buckets }

// Transform returns a Buckets×len(docs) matrix.
func (h *HashingVectorizer) Transform(docs []string) (*mat.Dense, error) {
	if h.Buckets <= 0 {
		return nil, ErrNoFeatures
	}
	return fill(h.Buckets, docs, func(doc string) []int {
		words := Tokenize(doc)
		rows := make([]int, len(words))
		for i, w := range words {
			f := fnv.New32a()
			f.Write([]byte(w))
			rows[i] = int(f.Sum32() % uint32(h.Buckets))
		}
		return rows
	}, h.Binary)
}

// TokenVectorizer counts BPE token ids from a tiktoken encoding into Buckets
// rows. The encoding is loaded on first use and fetched over the network if
// it is not cached.
type TokenVectorizer struct {
	Encoding string
	Buckets  int
	Binary   bool

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTokenVectorizer(encoding string, buckets int) *TokenVectorizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TokenVectorizer{Encoding: encoding, Buckets: buckets}
}

func (t *TokenVectorizer) Features() int { return t.Buckets }

func (t *TokenVectorizer) encoding() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		name := t.Encoding
		if name == "" {
			name = DefaultEncoding
		}
		t.enc, t.err = tiktoken.GetEncoding(name)
		if t.err != nil {
			t.err = fmt.Errorf("failed to load tiktoken encoding %q: %w", name, t.err)
		}
	})
	return t.enc, t.err
}

// Tokens returns the token ids of doc.
func (t *TokenVectorizer) Tokens(doc string) ([]int, error) {
	enc, err := t.encoding()
	if err != nil {
		return nil, err
	}
	return enc.Encode(doc, nil, nil), nil
}

// Transform returns a Buckets×len(docs) matrix.
func (t *TokenVectorizer) Transform(docs []string) (*mat.Dense, error) {
	if t.Buckets <= 0 {
		return nil, ErrNoFeatures
	}
	enc, err := t.encoding()
	if err != nil {
		return nil, err
	}
	return fill(t.Buckets, docs, func(doc string) []int {
		ids := enc.Encode(doc, nil, nil)
		for i, id := range ids {
			ids[i] = id % t.Buckets
		}
		return ids
	}, t.Binary)
}

func fill(features int, docs []string, rows func(string) []int, binary bool) (*mat.Dense, error) {
	if len(docs) == 0 {
		return nil, errors.New("no documents")
	}
	x := mat.NewDense(features, len(docs), nil)
	for j, doc := range docs {
		for _, r := range rows(doc) {
			if binary {
				x.Set(r, j, 1)
			} else {
				x.Set(r, j, x.At(r, j)+1)
			}
		}
	}
	return x, nil
}
