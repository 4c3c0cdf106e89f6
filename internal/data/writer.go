package data

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

// ErrExists is returned when the destination path exists and overwrite is
// disabled.
var ErrExists = errors.New("data: store path already exists")

// WriteOptions controls cellstore writes.
type WriteOptions struct {
	// ChunkRows sets rows per chunk; 0 means DefaultChunkRows.
	ChunkRows int
	// Overwrite removes a pre-existing destination before writing. When
	// false a pre-existing destination is an ErrExists error.
	Overwrite bool
}

// Write creates a cellstore at basePath from a metadata record and a dense
// matrix. meta's dimension fields and FormatVersion are filled in.
func Write(basePath string, meta *Metadata, x *mat.Dense, opts WriteOptions) error {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("data: refusing to write empty %dx%d matrix", rows, cols)
	}
	for name, seq := range map[string][]string{
		"labels":   meta.Labels,
		"cell_ids": meta.CellIDs,
		"groups":   meta.Groups,
	} {
		if len(seq) != 0 && len(seq) != rows {
			return fmt.Errorf("data: %s length %d does not match %d rows", name, len(seq), rows)
		}
	}

	if _, err := os.Stat(basePath); err == nil {
		if !opts.Overwrite {
			return fmt.Errorf("%w: %s", ErrExists, basePath)
		}
		if err := os.RemoveAll(basePath); err != nil {
			return fmt.Errorf("failed to remove existing store: %w", err)
		}
	}

	chunkRows := opts.ChunkRows
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}

	out := *meta
	out.FormatVersion = FormatVersion
	out.NCells = rows
	out.NGenes = cols
	out.ChunkRows = chunkRows

	chunkDir := filepath.Join(basePath, "x", "c")
	if err := os.MkdirAll(chunkDir, 0755); err != nil {
		return fmt.Errorf("failed to create store directories: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	for c := 0; c*chunkRows < rows; c++ {
		start := c * chunkRows
		end := start + chunkRows
		if end > rows {
			end = rows
		}

		raw := make([]byte, (end-start)*cols*4)
		for r := start; r < end; r++ {
			row := x.RawRowView(r)
			for j, v := range row {
				off := ((r-start)*cols + j) * 4
				binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(float32(v)))
			}
		}

		path := filepath.Join(chunkDir, fmt.Sprintf("%d", c))
		if err := os.WriteFile(path, encoder.EncodeAll(raw, nil), 0644); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", c, err)
		}
	}

	metaJSON, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(basePath, "metadata.json"), metaJSON, 0644); err != nil {
		return fmt.Errorf("failed to write metadata.json: %w", err)
	}

	return nil
}

// WriteSubset writes the rows whose cell ID appears in keepIDs to a new
// cellstore at destPath, preserving the original row order. Used to export
// the enriched query subset.
func (s *Store) WriteSubset(destPath string, keepIDs []string, opts WriteOptions) error {
	if len(s.meta.CellIDs) == 0 {
		return fmt.Errorf("data: store has no cell IDs, cannot subset")
	}

	keep := make(map[string]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}

	var rows []int
	for i, id := range s.meta.CellIDs {
		if keep[id] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("data: no rows match the %d requested cell IDs", len(keepIDs))
	}

	x := mat.NewDense(len(rows), s.meta.NGenes, nil)
	sub := Metadata{
		DatasetName: s.meta.DatasetName,
		Genes:       s.meta.Genes,
	}
	for out, in := range rows {
		row, err := s.Row(in)
		if err != nil {
			return err
		}
		x.SetRow(out, row)
		sub.CellIDs = append(sub.CellIDs, s.meta.CellIDs[in])
		if len(s.meta.Labels) != 0 {
			sub.Labels = append(sub.Labels, s.meta.Labels[in])
		}
		if len(s.meta.Groups) != 0 {
			sub.Groups = append(sub.Groups, s.meta.Groups[in])
		}
	}

	return Write(destPath, &sub, x, opts)
}
