package vanga

import "math"

// Box-bound constants used by the optimizer to clamp candidate variable
// values between line-search steps.
const (
	logLossEPS    = 1e-7
	logLossExpMin = -10.0
	logLossExpMax = 10.0
)

// innerExpMin/innerExpMax bound the exponent argument evaluated *inside*
// a loss function, well outside the optimizer's box bounds above — they
// exist purely to keep math.Exp from overflowing on pathological inputs.
const (
	innerExpMin = -500.0
	innerExpMax = 500.0
)

// SectorPred is one aggregated (label, count) bucket inside a VarGroup:
// every row routed to the same sector shares the same truth value and
// accumulated pred, so the loss only needs to see it once with a count.
type SectorPred struct {
	Value bool
	Pred  float64
	Count uint64
}

// VarGroup bins a set of SectorPreds under the branch-variable bitmask
// that routes rows to them: bit i set means "variable i present" for
// every row in this sector.
type VarGroup struct {
	Mask  uint64
	Preds []SectorPred
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LossFunc evaluates a regularized objective and its gradient at a point.
// d_vars[0] is the free (bias) coordinate; d_vars[i+1] is the coefficient
// for branch variable i. Implementations must fill every slot of grads.
type LossFunc interface {
	EvalFunAndGrad(grads, vars []float64) float64
}

// groupPoint evaluates the linear combination of vars implied by a
// group's bitmask: the bias plus, for each branch variable, +var or -var
// depending on whether that variable's bit is set.
func groupPoint(mask uint64, vars []float64) float64 {
	x := vars[0]
	varNumber := len(vars) - 1
	for i := 0; i < varNumber; i++ {
		if mask&(uint64(1)<<uint(i)) != 0 {
			x += vars[i+1]
		} else {
			x -= vars[i+1]
		}
	}
	return x
}

func addSignedGrad(grads []float64, mask uint64, varNumber int, gradSum float64) {
	grads[0] += gradSum
	for i := 0; i < varNumber; i++ {
		if mask&(uint64(1)<<uint(i)) != 0 {
			grads[i+1] += gradSum
		} else {
			grads[i+1] -= gradSum
		}
	}
}

// LogLoss is the logistic regression loss: for a true label, -log(p);
// for a false label, -log(1-p), where p = sigmoid(group_x + label.pred).
type LogLoss struct {
	Groups []VarGroup
}

func (l LogLoss) EvalFunAndGrad(grads, vars []float64) float64 {
	varNumber := len(vars) - 1
	for i := range grads {
		grads[i] = 0
	}

	funVal := 0.0
	for _, group := range l.Groups {
		groupX := groupPoint(group.Mask, vars)

		gradSum := 0.0
		for _, p := range group.Preds {
			expArg := clamp(groupX+p.Pred, innerExpMin, innerExpMax)
			e := 1 + math.Exp(-expArg)

			value := 0.0
			if p.Value {
				value = 1.0
			}
			gradSum += (1 - e*value) * float64(p.Count) / e

			var funDelta float64
			if p.Value {
				funDelta = math.Log(e) * float64(p.Count)
			} else {
				funDelta = (expArg + math.Log(e)) * float64(p.Count)
			}
			funVal += funDelta
		}

		addSignedGrad(grads, group.Mask, varNumber, gradSum)
	}

	return funVal
}

// SquareDeviationLoss is (p - label)^2 accumulated over sectors, used as
// an alternate metric rather than the primary training objective.
type SquareDeviationLoss struct {
	Groups []VarGroup
}

func (l SquareDeviationLoss) EvalFunAndGrad(grads, vars []float64) float64 {
	varNumber := len(vars) - 1
	for i := range grads {
		grads[i] = 0
	}

	funVal := 0.0
	for _, group := range l.Groups {
		groupX := groupPoint(group.Mask, vars)

		gradSum := 0.0
		for _, p := range group.Preds {
			expArg := groupX + p.Pred
			e := 1 + math.Exp(-expArg)
			prob := 1 / e

			value := 0.0
			if p.Value {
				value = 1.0
			}
			gradSum += 2 * (prob - value) * (1 - prob) * float64(p.Count)
			funVal += (value - prob) * (value - prob) * float64(p.Count)
		}

		addSignedGrad(grads, group.Mask, varNumber, gradSum)
	}

	return funVal
}

// PostQuad penalizes the point for growing past growAfter in Euclidean
// norm, keeping branch coefficients from diverging without bound. Zero
// inside the radius, (|point|-growAfter)^2 outside it. The bias
// coordinate vars[0] is excluded from the norm and never penalized.
type PostQuad struct {
	GrowAfter float64
}

func (p PostQuad) EvalFunAndGrad(grads, vars []float64) float64 {
	deltas := vars[1:]
	norm := 0.0
	for _, v := range deltas {
		norm += v * v
	}

	grads[0] = 0
	growAfterQuad := p.GrowAfter * p.GrowAfter
	if norm <= growAfterQuad {
		for i := range grads[1:] {
			grads[i+1] = 0
		}
		return 0
	}

	normSqrt := math.Sqrt(norm)
	mul := 2 * (normSqrt - p.GrowAfter) / normSqrt
	for i, v := range deltas {
		grads[i+1] = v * mul
	}
	return (normSqrt - p.GrowAfter) * (normSqrt - p.GrowAfter)
}

// ScaledLoss multiplies an inner loss term's value and gradient by Coef,
// used to weight PostQuad by alpha inside a fused objective.
type ScaledLoss struct {
	Coef  float64
	Inner LossFunc
}

func (s ScaledLoss) EvalFunAndGrad(grads, vars []float64) float64 {
	f := s.Inner.EvalFunAndGrad(grads, vars)
	for i := range grads {
		grads[i] *= s.Coef
	}
	return f * s.Coef
}

// SumLoss composes two loss terms (e.g. LogLoss + alpha*PostQuad) into one
// objective whose value and gradient are the elementwise sum of both.
type SumLoss struct {
	A, B LossFunc
}

func (s SumLoss) EvalFunAndGrad(grads, vars []float64) float64 {
	gradsB := make([]float64, len(vars))
	fa := s.A.EvalFunAndGrad(grads, vars)
	fb := s.B.EvalFunAndGrad(gradsB, vars)
	for i := range grads {
		grads[i] += gradsB[i]
	}
	return fa + fb
}
