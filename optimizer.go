package vanga

import "math"

const (
	optMaxIterations  = 100
	optLineSearchTrials = 20
	optArmijoC1       = 1e-4
)

// reduceGradForStep zeroes every gradient coordinate except the one with
// the largest magnitude, for a single-coordinate "stepped" descent phase.
// minimizePoint has no such phase and does not call it.
func reduceGradForStep(grads []float64) {
	maxGrad := math.Abs(grads[0])
	maxIndex := 0
	for i := 1; i < len(grads); i++ {
		if abs := math.Abs(grads[i]); abs > maxGrad {
			maxGrad = abs
			maxIndex = i
		}
	}
	for i := range grads {
		if i != maxIndex {
			grads[i] = 0
		}
	}
}

// backtrackingLineSearch walks from xp along direction, halving the step
// until the Armijo sufficient-decrease condition holds or the trial
// budget is spent, clamping every trial point into [xMin, xMax] the way
// the optimizer's box bounds require. Returns the accepted point,
// its gradient, and its function value.
func backtrackingLineSearch(
	fun LossFunc,
	xp []float64,
	gp []float64,
	fp float64,
	direction []float64,
	stp float64,
	xMin, xMax float64,
) (x, g []float64, f float64) {
	n := len(xp)
	x = make([]float64, n)
	g = make([]float64, n)

	dirDot := 0.0
	for i := range gp {
		dirDot += gp[i] * direction[i]
	}

	curStp := stp
	for trial := 0; trial < optLineSearchTrials; trial++ {
		for i := range xp {
			x[i] = clamp(xp[i]+curStp*direction[i], xMin, xMax)
		}
		f = fun.EvalFunAndGrad(g, x)

		if f <= fp+optArmijoC1*curStp*dirDot || trial == optLineSearchTrials-1 {
			return x, g, f
		}
		curStp *= 0.5
	}
	return x, g, f
}

// minimizePoint descends fun from x0 by repeated steepest-descent direction
// plus backtracking line search, clamped to [xMin, xMax], until the
// combined function/gradient/step convergence test passes or the iteration
// budget is spent. Shared by regGradVarsMin (branch delta fitting) and
// fitBias (leaf-only delta fitting) in learner.go.
func minimizePoint(fun LossFunc, x0 []float64, xMin, xMax float64) []float64 {
	n := len(x0)
	vars := append([]float64(nil), x0...)
	grads := make([]float64, n)
	direction := make([]float64, n)
	diffVars := make([]float64, n)

	curF := fun.EvalFunAndGrad(grads, vars)

	for iteration := 0; iteration < optMaxIterations; iteration++ {
		gradQuadSum := 0.0
		for _, gr := range grads {
			gradQuadSum += gr * gr
		}

		var newVars, newGrads []float64
		var newF float64

		if gradQuadSum > 1e-7 {
			for i, gr := range grads {
				direction[i] = -gr
			}
			coef := 1.0 / math.Sqrt(gradQuadSum)
			newVars, newGrads, newF = backtrackingLineSearch(fun, vars, grads, curF, direction, coef, xMin, xMax)
		} else {
			newVars = append([]float64(nil), vars...)
			newGrads = append([]float64(nil), grads...)
			newF = curF
		}

		gradQuadSum = 0.0
		for _, gr := range newGrads {
			gradQuadSum += gr * gr
		}

		varDiff := 0.0
		for i := range vars {
			diffVars[i] = vars[i] - newVars[i]
			varDiff += diffVars[i] * diffVars[i]
		}

		diff := math.Abs(newF - curF)

		vars = newVars
		grads = newGrads
		curF = newF

		if diff < 1e-6 && gradQuadSum < 1e-3 && varDiff < 1e-3 {
			break
		}
	}

	return vars
}

// regGradVarsMin finds the point minimizing fun, writing the result back
// into yes_res/no_res the way a single branch's delta_prob pair is
// derived from an optimized coordinate: yes_res[i]/no_res[i] become
// +delta/-delta for branch variable i, and both accumulate the shared
// bias term. yes_res and no_res are read on entry as the current deltas
// (the starting point) and overwritten with the optimized deltas.
func regGradVarsMin(yesRes, noRes []float64, fun LossFunc) {
	varNumber := len(yesRes)
	if varNumber == 0 || len(noRes) != varNumber {
		return
	}

	dVars := make([]float64, varNumber+1)
	for i := 0; i < varNumber; i++ {
		avg := (noRes[i] + yesRes[i]) / 2
		dVars[0] += avg
		dVars[i+1] = yesRes[i] - avg
	}

	dVars = minimizePoint(fun, dVars, logLossExpMin, logLossExpMax)

	for i := 0; i < varNumber; i++ {
		if math.Abs(dVars[i+1]) > 0.001 {
			yesRes[i] = dVars[i+1]
			noRes[i] = -dVars[i+1]
		} else {
			yesRes[i] = 0
			noRes[i] = 0
		}
	}
	yesRes[0] += dVars[0]
	noRes[0] += dVars[0]
}
