package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultRankTolerance scales the largest singular value when counting rank.
const DefaultRankTolerance = 1e-9

// ControllabilityRank returns the rank of [B AB ... A^(n-1)B]. Singular values
// below tol times the largest one are treated as zero; tol <= 0 means
// DefaultRankTolerance.
func ControllabilityRank(a, b mat.Matrix, tol float64) (int, error) {
	n, c := a.Dims()
	if n != c {
		return 0, fmt.Errorf("%w: A is %dx%d", ErrNotSquare, n, c)
	}
	br, m := b.Dims()
	if br != n {
		return 0, fmt.Errorf("analysis: B has %d rows, A has %d", br, n)
	}
	if tol <= 0 {
		tol = DefaultRankTolerance
	}

	ctrb := mat.NewDense(n, n*m, nil)
	block := mat.DenseCopyOf(b)
	for k := 0; k < n; k++ {
		ctrb.Slice(0, n, k*m, (k+1)*m).(*mat.Dense).Copy(block)
		var next mat.Dense
		next.Mul(a, block)
		block = &next
	}

	var svd mat.SVD
	if !svd.Factorize(ctrb, mat.SVDNone) {
		return 0, fmt.Errorf("analysis: SVD failed")
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0, nil
	}
	rank := 0
	for _, s := range values {
		if s > tol*values[0] {
			rank++
		}
	}
	return rank, nil
}
