package vanga_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	vanga "github.com/yoori/vanga-sub000"
)

func TestBinaryLabelAdd(t *testing.T) {
	a := vanga.BinaryLabel{Value: true, Pred: 1.0}
	b := vanga.BinaryLabel{Value: false, Pred: 2.5}

	sum := a.Add(b)
	require.True(t, sum.Value)
	require.InDelta(t, 3.5, sum.Pred, 1e-12)
}

func TestBinaryLabelToFloat(t *testing.T) {
	require.Equal(t, 1.0, vanga.BinaryLabel{Value: true}.ToFloat())
	require.Equal(t, 0.0, vanga.BinaryLabel{Value: false}.ToFloat())
}

type constPredictor struct{ delta float64 }

func (c constPredictor) Predict(*vanga.Row) float64 { return c.delta }

func TestPredictorAddAdapter(t *testing.T) {
	row := vanga.NewRow([]vanga.Feature{{ID: 1, Value: 1}})
	adapter := vanga.PredictorAddAdapter{Predictor: constPredictor{delta: 0.75}}

	out := adapter.Adapt(row, vanga.BinaryLabel{Value: true, Pred: 0.25})
	require.True(t, out.Value)
	require.InDelta(t, 1.0, out.Pred, 1e-12)
}

func TestPredictorAddAdapterNilPredictor(t *testing.T) {
	adapter := vanga.PredictorAddAdapter{}
	row := vanga.NewRow(nil)
	out := adapter.Adapt(row, vanga.BinaryLabel{Value: false, Pred: 0.5})
	require.InDelta(t, 0.5, out.Pred, 1e-12)
}

func TestAnnealingAdapterBoundedPerturbation(t *testing.T) {
	adapter := vanga.AnnealingAdapter{Rand: rand.New(rand.NewSource(42))}
	row := vanga.NewRow(nil)

	label := vanga.BinaryLabel{Value: true, Pred: 1.0}
	out := adapter.Adapt(row, label)
	require.True(t, out.Pred <= label.Pred)
	require.True(t, out.Pred >= label.Pred-0.2)

	label = vanga.BinaryLabel{Value: false, Pred: 1.0}
	out = adapter.Adapt(row, label)
	require.True(t, out.Pred >= label.Pred)
	require.True(t, out.Pred <= label.Pred+0.2)
}

func TestAnnealingAdapterDeterministicWithSeed(t *testing.T) {
	row := vanga.NewRow(nil)
	label := vanga.BinaryLabel{Value: true, Pred: 0.0}

	a1 := vanga.AnnealingAdapter{Rand: rand.New(rand.NewSource(7))}
	a2 := vanga.AnnealingAdapter{Rand: rand.New(rand.NewSource(7))}

	require.Equal(t, a1.Adapt(row, label), a2.Adapt(row, label))
}
