package vanga_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	vanga "github.com/yoori/vanga-sub000"
)

func TestLoadSVMParsesLabelsAndFeatures(t *testing.T) {
	input := "1 1:1 3:1\n0,0.5 2:1\n\n1 1:1\n"
	svm, err := vanga.LoadSVM(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, svm.Size())

	entries := svm.Rows()
	var sawPred bool
	for _, e := range entries {
		if !e.Label.Value && e.Label.Pred == 0.5 {
			sawPred = true
		}
	}
	require.True(t, sawPred)
}

func TestLoadSVMRejectsMalformedLine(t *testing.T) {
	_, err := vanga.LoadSVM(strings.NewReader("1 1:1\nbogus 2:1\n"))
	require.Error(t, err)

	var parseErr *vanga.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 2, parseErr.Line)
}

func TestLoadSVMRejectsMalformedFeatureToken(t *testing.T) {
	_, err := vanga.LoadSVM(strings.NewReader("1 1-1\n"))
	require.Error(t, err)
	var parseErr *vanga.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLoadSVMLimitStopsAtRowCount(t *testing.T) {
	input := "1 1:1\n1 2:1\n1 3:1\n"
	svm, err := vanga.LoadSVMLimit(strings.NewReader(input), 2)
	require.NoError(t, err)
	require.Equal(t, 2, svm.Size())
}

func TestSaveLoadSVMRoundTrip(t *testing.T) {
	original, err := vanga.LoadSVM(strings.NewReader("1 1:1 2:1\n0 3:1\n"))
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, vanga.SaveSVM(&buf, original))

	reloaded, err := vanga.LoadSVM(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Equal(t, original.Size(), reloaded.Size())

	var buf2 strings.Builder
	require.NoError(t, vanga.SaveSVM(&buf2, reloaded))
	require.Equal(t, buf.String(), buf2.String())
}
