package vanga

import "math/rand"

// BinaryLabel pairs a ground-truth value with pred, the logit accumulated
// from the ensemble trained so far.
type BinaryLabel struct {
	Value bool
	Pred  float64
}

// Add combines two labels for collector aggregation only (never used to
// combine two real training rows): logical OR of the truth fields, sum of
// the pred fields.
func (l BinaryLabel) Add(other BinaryLabel) BinaryLabel {
	return BinaryLabel{Value: l.Value || other.Value, Pred: l.Pred + other.Pred}
}

// ToFloat returns 1.0 for a true label, 0.0 otherwise.
func (l BinaryLabel) ToFloat() float64 {
	if l.Value {
		return 1.0
	}
	return 0.0
}

// LabelAdapter produces a new label for a row between boosting iterations.
// Implementations must be pure functions of (row, label) — the boosting
// loop never mutates a Row or an existing label in place.
type LabelAdapter interface {
	Adapt(row *Row, label BinaryLabel) BinaryLabel
}

// PredictorAddAdapter threads the current ensemble's prediction into a
// label's pred field: pred' = pred + predictor.Predict(row). This is the
// per-iteration update the boosting loop applies to every bag between
// `train` calls.
type PredictorAddAdapter struct {
	Predictor Predictor
}

func (a PredictorAddAdapter) Adapt(row *Row, label BinaryLabel) BinaryLabel {
	out := label
	if a.Predictor != nil {
		out.Pred = label.Pred + a.Predictor.Predict(row)
	}
	return out
}

// AnnealingAdapter perturbs pred by up to +/-0.2*U[0,1] per row, nudging
// true labels down and false labels up so a subsequent split has room to
// re-separate them. Deterministic only when constructed with a seeded
// *rand.Rand.
type AnnealingAdapter struct {
	Rand *rand.Rand
}

func (a AnnealingAdapter) Adapt(_ *Row, label BinaryLabel) BinaryLabel {
	var u float64
	if a.Rand != nil {
		u = a.Rand.Float64()
	} else {
		u = rand.Float64()
	}

	out := label
	delta := 0.2 * u
	if label.Value {
		out.Pred -= delta
	} else {
		out.Pred += delta
	}
	return out
}
