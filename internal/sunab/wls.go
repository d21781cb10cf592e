package sunab

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const rankTol = 1e-12

// WLSFit is the output of SolveWLS: point estimates and the residual-based
// covariance of the coefficient vector.
type WLSFit struct {
	Coefs         []float64
	Vcov          *mat.Dense
	Rank          int
	RankDeficient bool
}

// SolveWLS fits y on X with per-observation weights w by weighted least
// squares. The normal equations are solved directly; when the weighted
// cross-product is singular the fit falls back to an SVD pseudo-inverse and
// reports the design as rank deficient. w may be nil for unit weights.
func SolveWLS(X *mat.Dense, y, w []float64) (*WLSFit, error) {
	n, k := X.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("design has %d rows but outcome has %d values", n, len(y))
	}
	if w != nil && len(w) != n {
		return nil, fmt.Errorf("design has %d rows but weights has %d values", n, len(w))
	}

	// Scale rows by sqrt(w) so the weighted problem becomes ordinary least
	// squares on (Xw, yw).
	Xw := mat.NewDense(n, k, nil)
	yw := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 1.0
		if w != nil {
			s = math.Sqrt(w[i])
		}
		for j := 0; j < k; j++ {
			Xw.Set(i, j, s*X.At(i, j))
		}
		yw[i] = s * y[i]
	}

	xtx := mat.NewDense(k, k, nil)
	xtx.Mul(Xw.T(), Xw)
	xty := mat.NewVecDense(k, nil)
	xty.MulVec(Xw.T(), mat.NewVecDense(n, yw))

	coefs := make([]float64, k)
	xtxInv := mat.NewDense(k, k, nil)
	rank := k
	rankDeficient := false

	if err := xtxInv.Inverse(xtx); err == nil {
		beta := mat.NewVecDense(k, nil)
		beta.MulVec(xtxInv, xty)
		for j := 0; j < k; j++ {
			coefs[j] = beta.AtVec(j)
		}
	} else {
		// Singular cross-product: minimum-norm least squares through the
		// SVD pseudo-inverse.
		var svd mat.SVD
		if !svd.Factorize(Xw, mat.SVDFullU|mat.SVDFullV) {
			return nil, fmt.Errorf("weighted design is singular and SVD factorization failed")
		}
		rank = svd.Rank(rankTol)
		rankDeficient = true
		if rank > 0 {
			yMat := mat.NewDense(n, 1, yw)
			var beta mat.Dense
			svd.SolveTo(&beta, yMat, rank)
			for j := 0; j < k; j++ {
				coefs[j] = beta.At(j, 0)
			}
			pseudoInverse(xtxInv, &svd, rank, k)
		}
	}

	// Residual variance with a degrees-of-freedom correction on the
	// effective rank.
	rss := 0.0
	for i := 0; i < n; i++ {
		fitted := 0.0
		for j := 0; j < k; j++ {
			fitted += X.At(i, j) * coefs[j]
		}
		resid := y[i] - fitted
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		rss += wi * resid * resid
	}
	dof := n - rank
	if dof < 1 {
		dof = 1
	}
	sigma2 := rss / float64(dof)

	vcov := mat.NewDense(k, k, nil)
	vcov.Scale(sigma2, xtxInv)

	return &WLSFit{
		Coefs:         coefs,
		Vcov:          vcov,
		Rank:          rank,
		RankDeficient: rankDeficient || rank < k,
	}, nil
}

// pseudoInverse writes the Moore-Penrose inverse of X'X into dst using the
// SVD of the (row-scaled) design: V diag(1/s^2) V' over the leading rank
// components.
func pseudoInverse(dst *mat.Dense, svd *mat.SVD, rank, k int) {
	var v mat.Dense
	svd.VTo(&v)
	s := svd.Values(nil)

	scaled := mat.NewDense(k, rank, nil)
	for j := 0; j < rank; j++ {
		inv := 0.0
		if s[j] > rankTol {
			inv = 1.0 / (s[j] * s[j])
		}
		for i := 0; i < k; i++ {
			scaled.Set(i, j, v.At(i, j)*inv)
		}
	}
	vr := mat.NewDense(k, rank, nil)
	for j := 0; j < rank; j++ {
		for i := 0; i < k; i++ {
			vr.Set(i, j, v.At(i, j))
		}
	}
	dst.Mul(scaled, vr.T())
}
