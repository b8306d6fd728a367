// Package hashembed provides an offline, deterministic embedding function
// based on feature hashing of word unigrams and bigrams. It is used when no
// embedding API is configured and in tests.
package hashembed

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// Model is the version tag stored alongside every vector this package produces.
	Model = "hash-v1"
	// DefaultDimensions matches the vector column width so both embedders share a schema.
	DefaultDimensions = 1536
)

// ErrEmptyText is returned for input with no indexable tokens.
var ErrEmptyText = errors.New("text has no indexable tokens")

// Embedder hashes tokens into a fixed-width count vector and L2-normalizes it.
// All components are non-negative, so cosine scores fall in [0,1].
type Embedder struct {
	dimensions int
}

// New returns an embedder producing vectors of the given width.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Model() string   { return Model }
func (e *Embedder) Dimensions() int { return e.dimensions }

// GenerateEmbedding embeds text. The same text always yields the same vector.
func (e *Embedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float64, e.dimensions)
	for i, tok := range tokens {
		vec[e.bucket(tok)]++
		if i > 0 {
			vec[e.bucket(tokens[i-1]+" "+tok)] += 0.5
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimensions)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (e *Embedder) bucket(s string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(e.dimensions))
}

// Tokenize lowercases text and splits it into letter/digit runs, dropping
// single-character tokens and common stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "your": true, "with": true, "this": true, "that": true, "from": true,
	"have": true, "has": true, "was": true, "were": true, "will": true, "can": true,
	"of": true, "to": true, "in": true, "on": true, "is": true, "it": true, "at": true,
	"be": true, "or": true, "an": true, "as": true, "by": true, "we": true, "my": true,
	"me": true, "do": true, "so": true, "if": true,
}
