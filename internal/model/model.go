// Package model loads externally-trained embedding models and applies them to
// expression matrices. A model is consumed as a black box: a directory with
// model.json (name, input/output dimensionality) and zstd-compressed
// little-endian float32 weight and bias arrays.
package model

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

// ErrInputDimension is returned when a matrix's column count does not match
// the encoder's input dimensionality.
var ErrInputDimension = errors.New("model: input dimensionality mismatch")

type modelMeta struct {
	Name      string `json:"name"`
	InputDim  int    `json:"input_dim"`
	OutputDim int    `json:"output_dim"`
}

// Encoder maps raw expression rows to low-dimensional embedding vectors.
type Encoder struct {
	name    string
	inDim   int
	outDim  int
	weights *mat.Dense // inDim x outDim
	bias    []float64  // outDim
}

// Load reads an encoder from a model directory.
func Load(dir string) (*Encoder, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "model.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read model.json: %w", err)
	}

	var meta modelMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse model.json: %w", err)
	}
	if meta.InputDim <= 0 || meta.OutputDim <= 0 {
		return nil, fmt.Errorf("invalid model dimensions %dx%d", meta.InputDim, meta.OutputDim)
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(filepath.Clean(dir))
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	w, err := readArray(decoder, filepath.Join(dir, "weights"), meta.InputDim*meta.OutputDim)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	b, err := readArray(decoder, filepath.Join(dir, "bias"), meta.OutputDim)
	if err != nil {
		return nil, fmt.Errorf("failed to load bias: %w", err)
	}

	return &Encoder{
		name:    meta.Name,
		inDim:   meta.InputDim,
		outDim:  meta.OutputDim,
		weights: mat.NewDense(meta.InputDim, meta.OutputDim, w),
		bias:    b,
	}, nil
}

func readArray(decoder *zstd.Decoder, path string, n int) ([]float64, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress failed: %w", err)
	}
	if len(raw) != n*4 {
		return nil, fmt.Errorf("array has %d bytes, want %d", len(raw), n*4)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return vals, nil
}

// Name returns the model name.
func (e *Encoder) Name() string { return e.name }

// InputDim returns the expected raw column count.
func (e *Encoder) InputDim() int { return e.inDim }

// OutputDim returns the embedding dimensionality.
func (e *Encoder) OutputDim() int { return e.outDim }

// Reduce maps a raw expression matrix to the embedding space: Y = X*W + b.
func (e *Encoder) Reduce(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != e.inDim {
		return nil, fmt.Errorf("%w: matrix has %d columns, model expects %d", ErrInputDimension, cols, e.inDim)
	}

	y := mat.NewDense(rows, e.outDim, nil)
	y.Mul(x, e.weights)
	for i := 0; i < rows; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += e.bias[j]
		}
	}
	return y, nil
}
