// Package data provides the cellstore container for expression matrices.
//
// A cellstore is a directory holding metadata.json (row/column counts, per-row
// labels, cell IDs and query groups) and the expression matrix as
// zstd-compressed little-endian float32 row chunks under x/c/<chunk>.
package data

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

const (
	// FormatVersion is written into metadata.json by the writer.
	FormatVersion = "1"

	// DefaultChunkRows is the default number of matrix rows per chunk.
	DefaultChunkRows = 512

	chunkCacheSize = 64
)

// Metadata describes a cellstore.
type Metadata struct {
	FormatVersion string   `json:"format_version"`
	DatasetName   string   `json:"dataset_name"`
	NCells        int      `json:"n_cells"`
	NGenes        int      `json:"n_genes"`
	ChunkRows     int      `json:"chunk_rows"`
	Genes         []string `json:"genes,omitempty"`
	Labels        []string `json:"labels,omitempty"`
	CellIDs       []string `json:"cell_ids,omitempty"`
	Groups        []string `json:"groups,omitempty"`
}

// Store provides read access to a cellstore directory.
type Store struct {
	basePath string
	meta     *Metadata
	decoder  *zstd.Decoder
	chunks   *lru.Cache[int, []float64]
}

// Open opens a cellstore for reading.
func Open(basePath string) (*Store, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	chunks, err := lru.New[int, []float64](chunkCacheSize)
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	s := &Store{
		basePath: basePath,
		decoder:  decoder,
		chunks:   chunks,
	}

	if err := s.loadMetadata(); err != nil {
		decoder.Close()
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	return s, nil
}

func (s *Store) loadMetadata() error {
	raw, err := os.ReadFile(filepath.Join(s.basePath, "metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read metadata.json: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("failed to parse metadata.json: %w", err)
	}

	if meta.NCells <= 0 || meta.NGenes <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", meta.NCells, meta.NGenes)
	}
	if meta.ChunkRows <= 0 {
		return fmt.Errorf("invalid chunk_rows %d", meta.ChunkRows)
	}
	for name, seq := range map[string][]string{
		"labels":   meta.Labels,
		"cell_ids": meta.CellIDs,
		"groups":   meta.Groups,
	} {
		if len(seq) != 0 && len(seq) != meta.NCells {
			return fmt.Errorf("%s length %d does not match n_cells %d", name, len(seq), meta.NCells)
		}
	}

	s.meta = &meta
	return nil
}

// Metadata returns the store metadata.
func (s *Store) Metadata() *Metadata {
	return s.meta
}

// Labels returns the per-row label sequence (may be empty for query stores).
func (s *Store) Labels() []string { return s.meta.Labels }

// CellIDs returns the per-row cell identifier sequence.
func (s *Store) CellIDs() []string { return s.meta.CellIDs }

// Groups returns the per-row query-group sequence (may be empty for
// database stores).
func (s *Store) Groups() []string { return s.meta.Groups }

// NumRows returns the number of matrix rows.
func (s *Store) NumRows() int { return s.meta.NCells }

// NumCols returns the number of matrix columns.
func (s *Store) NumCols() int { return s.meta.NGenes }

func (s *Store) numChunks() int {
	return (s.meta.NCells + s.meta.ChunkRows - 1) / s.meta.ChunkRows
}

// chunk loads, decompresses and decodes one row chunk, through the LRU cache.
func (s *Store) chunk(idx int) ([]float64, error) {
	if vals, ok := s.chunks.Get(idx); ok {
		return vals, nil
	}

	path := filepath.Join(s.basePath, "x", "c", fmt.Sprintf("%d", idx))
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %d: %w", idx, err)
	}

	raw, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress of chunk %d failed: %w", idx, err)
	}

	rows := s.meta.ChunkRows
	if last := s.meta.NCells - idx*s.meta.ChunkRows; last < rows {
		rows = last
	}
	want := rows * s.meta.NGenes * 4
	if len(raw) != want {
		return nil, fmt.Errorf("chunk %d has %d bytes, want %d", idx, len(raw), want)
	}

	vals := make([]float64, rows*s.meta.NGenes)
	for i := range vals {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		vals[i] = float64(math.Float32frombits(bits))
	}

	s.chunks.Add(idx, vals)
	return vals, nil
}

// Row returns a copy of matrix row i.
func (s *Store) Row(i int) ([]float64, error) {
	if i < 0 || i >= s.meta.NCells {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, s.meta.NCells)
	}

	vals, err := s.chunk(i / s.meta.ChunkRows)
	if err != nil {
		return nil, err
	}

	off := (i % s.meta.ChunkRows) * s.meta.NGenes
	row := make([]float64, s.meta.NGenes)
	copy(row, vals[off:off+s.meta.NGenes])
	return row, nil
}

// ExpressionMatrix loads the full matrix into a dense gonum matrix.
func (s *Store) ExpressionMatrix() (*mat.Dense, error) {
	x := mat.NewDense(s.meta.NCells, s.meta.NGenes, nil)

	row := 0
	for c := 0; c < s.numChunks(); c++ {
		vals, err := s.chunk(c)
		if err != nil {
			return nil, err
		}
		rows := len(vals) / s.meta.NGenes
		for r := 0; r < rows; r++ {
			x.SetRow(row, vals[r*s.meta.NGenes:(r+1)*s.meta.NGenes])
			row++
		}
	}

	if row != s.meta.NCells {
		return nil, fmt.Errorf("store has %d rows, metadata says %d", row, s.meta.NCells)
	}
	return x, nil
}

// Close releases the store's resources.
func (s *Store) Close() error {
	s.decoder.Close()
	s.chunks.Purge()
	return nil
}
