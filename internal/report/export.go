package report

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/cellatlas/scquery/internal/analysis"
)

// ContingencyCSV writes a contingency table and its per-label p-values as a
// CSV with one row per label.
func (w *Writer) ContingencyCSV(name string, t analysis.Table, pvals []float64) error {
	if len(pvals) != len(t.Labels) {
		return fmt.Errorf("report: %d p-values for %d labels", len(pvals), len(t.Labels))
	}

	path, err := w.artifact(dirExports, name+".csv")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	control, disease := t.Fractions()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"label", "control_count", "disease_count", "control_fraction", "disease_fraction", "p_value"}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for i, l := range t.Labels {
		row := []string{
			l,
			strconv.FormatFloat(t.Control[i], 'f', -1, 64),
			strconv.FormatFloat(t.Disease[i], 'f', -1, 64),
			strconv.FormatFloat(control[i], 'g', -1, 64),
			strconv.FormatFloat(disease[i], 'g', -1, 64),
			strconv.FormatFloat(pvals[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ClassificationCSV writes the per-query classification records.
func (w *Writer) ClassificationCSV(records []analysis.Record) error {
	path, err := w.artifact(dirExports, "classifications.csv")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"query_id", "group", "predicted", "mean_top_distance", "target_a_count", "target_b_count"}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, rec := range records {
		row := []string{
			rec.QueryID,
			rec.Group,
			rec.Predicted,
			strconv.FormatFloat(rec.MeanTop, 'g', -1, 64),
			strconv.Itoa(rec.TargetCounts[0]),
			strconv.Itoa(rec.TargetCounts[1]),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteMatrix persists an embedding matrix as zstd-compressed little-endian
// float32 values prefixed with the two uint32 dimensions.
func (w *Writer) WriteMatrix(name string, x *mat.Dense) error {
	path, err := w.artifact(dirExports, name+".f32.zst")
	if err != nil {
		return err
	}

	rows, cols := x.Dims()
	buf := make([]byte, 8+rows*cols*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))
	off := 8
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(float32(x.At(i, j))))
			off += 4
		}
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	compressed := enc.EncodeAll(buf, nil)
	enc.Close()

	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadMatrix loads a matrix written by WriteMatrix.
func ReadMatrix(path string) (*mat.Dense, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	buf, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	if len(buf) < 8 {
		return nil, fmt.Errorf("matrix file %s truncated", path)
	}
	rows := int(binary.LittleEndian.Uint32(buf[0:4]))
	cols := int(binary.LittleEndian.Uint32(buf[4:8]))
	if len(buf) != 8+rows*cols*4 {
		return nil, fmt.Errorf("matrix file %s has %d payload bytes, want %d", path, len(buf)-8, rows*cols*4)
	}

	data := make([]float64, rows*cols)
	off := 8
	for i := range data {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])))
		off += 4
	}
	return mat.NewDense(rows, cols, data), nil
}
