package vanga

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLossGradientResetEachEval(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: true, Pred: 0, Count: 1}}}}
	loss := LogLoss{Groups: groups}

	grads := make([]float64, 1)
	f1 := loss.EvalFunAndGrad(grads, []float64{0})
	g1 := grads[0]

	// A second evaluation from the same point must reproduce identical
	// values — grads must be zeroed at the top of EvalFunAndGrad, not
	// accumulated across calls.
	f2 := loss.EvalFunAndGrad(grads, []float64{0})
	require.InDelta(t, f1, f2, 1e-12)
	require.InDelta(t, g1, grads[0], 1e-12)
}

func TestLogLossZeroAtConfidentCorrectPrediction(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: true, Pred: 0, Count: 1}}}}
	loss := LogLoss{Groups: groups}
	grads := make([]float64, 1)

	farPositive := loss.EvalFunAndGrad(grads, []float64{50})
	require.Less(t, farPositive, 1e-6)
}

func TestLogLossClampsExponentArgument(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: false, Pred: 1e9, Count: 1}}}}
	loss := LogLoss{Groups: groups}
	grads := make([]float64, 1)

	f := loss.EvalFunAndGrad(grads, []float64{0})
	require.False(t, math.IsNaN(f))
	require.False(t, math.IsInf(f, 0))
	require.False(t, math.IsNaN(grads[0]))
}

func TestLogLossCountZeroIsNoOp(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: true, Pred: 0, Count: 0}}}}
	loss := LogLoss{Groups: groups}
	grads := make([]float64, 1)

	f := loss.EvalFunAndGrad(grads, []float64{0})
	require.Equal(t, 0.0, f)
	require.Equal(t, 0.0, grads[0])
}

func TestSquareDeviationLossAtExactMatch(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: true, Pred: 50, Count: 1}}}}
	loss := SquareDeviationLoss{Groups: groups}
	grads := make([]float64, 1)

	f := loss.EvalFunAndGrad(grads, []float64{0})
	require.Less(t, f, 1e-6)
}

func TestPostQuadZeroInsideRadius(t *testing.T) {
	p := PostQuad{GrowAfter: 4.0}
	grads := make([]float64, 3)
	f := p.EvalFunAndGrad(grads, []float64{100, 1, 1})
	require.Equal(t, 0.0, f)
	for _, g := range grads {
		require.Equal(t, 0.0, g)
	}
}

func TestPostQuadIgnoresBiasCoordinate(t *testing.T) {
	p := PostQuad{GrowAfter: 1.0}
	grads := make([]float64, 3)
	// Bias (vars[0]) alone, however large, must never trigger or be
	// penalized — only the delta coordinates (vars[1:]) count toward the
	// norm.
	f := p.EvalFunAndGrad(grads, []float64{1000, 0, 0})
	require.Equal(t, 0.0, f)
	require.Equal(t, 0.0, grads[0])
}

func TestPostQuadPenalizesBeyondRadius(t *testing.T) {
	p := PostQuad{GrowAfter: 1.0}
	grads := make([]float64, 3)
	f := p.EvalFunAndGrad(grads, []float64{0, 3, 4})
	require.InDelta(t, 16.0, f, 1e-9) // norm=5, (5-1)^2 = 16
	require.Equal(t, 0.0, grads[0])
	require.NotEqual(t, 0.0, grads[1])
	require.NotEqual(t, 0.0, grads[2])
}

func TestSumLossAddsValuesAndGradients(t *testing.T) {
	groups := []VarGroup{{Mask: 0, Preds: []SectorPred{{Value: true, Pred: 0, Count: 1}}}}
	a := LogLoss{Groups: groups}
	b := PostQuad{GrowAfter: 0.01}

	gradsA := make([]float64, 2)
	fa := a.EvalFunAndGrad(gradsA, []float64{0, 5})
	gradsB := make([]float64, 2)
	fb := b.EvalFunAndGrad(gradsB, []float64{0, 5})

	sum := SumLoss{A: a, B: b}
	gradsSum := make([]float64, 2)
	fsum := sum.EvalFunAndGrad(gradsSum, []float64{0, 5})

	require.InDelta(t, fa+fb, fsum, 1e-9)
	require.InDelta(t, gradsA[0]+gradsB[0], gradsSum[0], 1e-9)
	require.InDelta(t, gradsA[1]+gradsB[1], gradsSum[1], 1e-9)
}

func TestScaledLossMultipliesValueAndGradient(t *testing.T) {
	inner := PostQuad{GrowAfter: 1.0}
	innerGrads := make([]float64, 3)
	innerVal := inner.EvalFunAndGrad(innerGrads, []float64{0, 3, 4})

	scaled := ScaledLoss{Coef: 2.5, Inner: PostQuad{GrowAfter: 1.0}}
	scaledGrads := make([]float64, 3)
	scaledVal := scaled.EvalFunAndGrad(scaledGrads, []float64{0, 3, 4})

	require.InDelta(t, innerVal*2.5, scaledVal, 1e-9)
	for i := range innerGrads {
		require.InDelta(t, innerGrads[i]*2.5, scaledGrads[i], 1e-9)
	}
}

func TestScaledLossZeroCoefIsInert(t *testing.T) {
	scaled := ScaledLoss{Coef: 0, Inner: PostQuad{GrowAfter: 1.0}}
	grads := make([]float64, 3)
	f := scaled.EvalFunAndGrad(grads, []float64{0, 3, 4})
	require.Equal(t, 0.0, f)
	for _, g := range grads {
		require.Equal(t, 0.0, g)
	}
}
