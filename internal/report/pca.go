package report

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ProjectPCA projects a matrix onto its first two principal components for
// 2-D scatter plotting. Columns are mean-centered before projection.
func ProjectPCA(x *mat.Dense) ([][2]float64, error) {
	rows, cols := x.Dims()
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("report: matrix %dx%d too small for a 2-D projection", rows, cols)
	}

	centered := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		var mean float64
		for i := 0; i < rows; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			centered.Set(i, j, x.At(i, j)-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, fmt.Errorf("report: principal component decomposition failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, cols, 0, 2))

	out := make([][2]float64, rows)
	for i := 0; i < rows; i++ {
		out[i][0] = proj.At(i, 0)
		out[i][1] = proj.At(i, 1)
	}
	return out, nil
}
