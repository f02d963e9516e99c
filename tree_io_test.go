package vanga_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	vanga "github.com/yoori/vanga-sub000"
)

func sampleTree() *vanga.DecisionTree {
	return &vanga.DecisionTree{
		TreeID:    1,
		DeltaProb: 0,
		Branches: []vanga.Branch{{
			FeatureID: 7,
			YesTree:   &vanga.DecisionTree{TreeID: 2, DeltaProb: 1.2345678},
			NoTree:    &vanga.DecisionTree{TreeID: 3, DeltaProb: -0.5},
		}},
	}
}

func TestDecisionTreeSaveLoadRoundTrip(t *testing.T) {
	tree := sampleTree()

	var buf strings.Builder
	require.NoError(t, vanga.SaveDecisionTree(&buf, tree))

	loaded, err := vanga.LoadDecisionTree(strings.NewReader(buf.String()))
	require.NoError(t, err)

	for _, row := range []*vanga.Row{mkRow(7), mkRow(5), mkRow()} {
		require.InDelta(t, tree.Predict(row), loaded.Predict(row), 1e-6)
	}
}

func TestDecisionTreeSaveLoadSaveIsFixedPoint(t *testing.T) {
	tree := sampleTree()

	var buf1 strings.Builder
	require.NoError(t, vanga.SaveDecisionTree(&buf1, tree))

	loaded, err := vanga.LoadDecisionTree(strings.NewReader(buf1.String()))
	require.NoError(t, err)

	var buf2 strings.Builder
	require.NoError(t, vanga.SaveDecisionTree(&buf2, loaded))

	require.Equal(t, buf1.String(), buf2.String())
}

func TestPredictorSetSaveLoadRoundTrip(t *testing.T) {
	set := &vanga.PredictorSet{Predictors: []vanga.Predictor{
		&vanga.DecisionTree{TreeID: 1, DeltaProb: 0.1},
		&vanga.DecisionTree{TreeID: 2, DeltaProb: -0.2},
	}}

	var buf strings.Builder
	require.NoError(t, vanga.SavePredictorSet(&buf, set))

	loaded, err := vanga.LoadPredictor(strings.NewReader(buf.String()))
	require.NoError(t, err)

	loadedSet, ok := loaded.(*vanga.PredictorSet)
	require.True(t, ok)
	require.Len(t, loadedSet.Predictors, 2)

	row := mkRow(1)
	require.InDelta(t, set.Predict(row), loadedSet.Predict(row), 1e-6)
}

// TestSavePredictorSetWritesCountLine: the union-sum grammar is a header
// line, a count line, then that many dtree blocks concatenated with no
// blank-line separator.
func TestSavePredictorSetWritesCountLine(t *testing.T) {
	set := &vanga.PredictorSet{Predictors: []vanga.Predictor{
		&vanga.DecisionTree{TreeID: 1, DeltaProb: 0.1},
		&vanga.DecisionTree{TreeID: 2, DeltaProb: -0.2},
		&vanga.DecisionTree{TreeID: 3, DeltaProb: 0.3},
	}}

	var buf strings.Builder
	require.NoError(t, vanga.SavePredictorSet(&buf, set))

	lines := strings.Split(buf.String(), "\n")
	require.Equal(t, "union-sum", lines[0])
	require.Equal(t, "3", lines[1])
	// No blank separator line between blocks (the trailing "" from the
	// final newline is expected and excluded).
	require.NotContains(t, lines[2:len(lines)-1], "")
}

func TestLoadPredictorRejectsTruncatedUnionSum(t *testing.T) {
	_, err := vanga.LoadPredictor(strings.NewReader("union-sum\n2\ndtree\n1\t0.0\t\n"))
	require.Error(t, err)
}

func TestLoadPredictorRejectsBadUnionSumCount(t *testing.T) {
	_, err := vanga.LoadPredictor(strings.NewReader("union-sum\nnotanumber\ndtree\n1\t0.0\t\n"))
	require.Error(t, err)
	var parseErr *vanga.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLoadPredictorRejectsUnknownHeader(t *testing.T) {
	_, err := vanga.LoadPredictor(strings.NewReader("bogus-header\n1\t0.0\t\n"))
	require.ErrorIs(t, err, vanga.ErrInvalidModelType)
}

func TestLoadPredictorRejectsEmptyInput(t *testing.T) {
	_, err := vanga.LoadPredictor(strings.NewReader(""))
	require.ErrorIs(t, err, vanga.ErrInvalidModelType)
}

func TestLoadPredictorRejectsUnresolvedBranchReference(t *testing.T) {
	input := "dtree\n1\t0.0000000\t7:99:0\n"
	_, err := vanga.LoadPredictor(strings.NewReader(input))
	require.ErrorIs(t, err, vanga.ErrUnresolvedReference)
}

func TestLoadPredictorRejectsBadTreeID(t *testing.T) {
	input := "dtree\nabc\t0.0\t\n"
	_, err := vanga.LoadPredictor(strings.NewReader(input))
	require.Error(t, err)
	var parseErr *vanga.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLoadDecisionTreeRejectsUnionFile(t *testing.T) {
	set := &vanga.PredictorSet{Predictors: []vanga.Predictor{&vanga.DecisionTree{TreeID: 1}}}
	var buf strings.Builder
	require.NoError(t, vanga.SavePredictorSet(&buf, set))

	_, err := vanga.LoadDecisionTree(strings.NewReader(buf.String()))
	require.ErrorIs(t, err, vanga.ErrInvalidModelType)
}
