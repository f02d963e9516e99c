package vanga

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFeatureIndexCollectsEveryFeature(t *testing.T) {
	svm := NewSVM()
	svm.AddRow(NewRow([]Feature{{ID: 1, Value: 1}}), BinaryLabel{Value: true})
	svm.AddRow(NewRow([]Feature{{ID: 2, Value: 1}}), BinaryLabel{Value: false})
	svm.AddRow(NewRow([]Feature{{ID: 1, Value: 1}, {ID: 2, Value: 1}}), BinaryLabel{Value: true})

	idx := BuildFeatureIndex(svm)
	require.Equal(t, []uint32{1, 2}, idx.Features)
	require.Equal(t, 2, idx.FeatureRows[1].Size())
	require.Equal(t, 2, idx.FeatureRows[2].Size())
}

func TestBagSplitMatchesByFeature(t *testing.T) {
	svm := NewSVM()
	rowA := NewRow([]Feature{{ID: 7}})
	rowB := NewRow([]Feature{{ID: 9}})
	rowC := NewRow([]Feature{{ID: 7}, {ID: 9}})
	svm.AddRow(rowA, BinaryLabel{Value: true})
	svm.AddRow(rowB, BinaryLabel{Value: false})
	svm.AddRow(rowC, BinaryLabel{Value: true})

	bag := NewBag(svm)
	yes, no := bag.Split(bag.Working, 7)

	require.Equal(t, 2, yes.Size())
	require.Equal(t, 1, no.Size())

	wantYes := svm.ByFeature(7, true)
	require.Equal(t, wantYes.Size(), yes.Size())
}

func TestBagSplitOnNodeSubsetDoesNotRescanBag(t *testing.T) {
	svm := NewSVM()
	for i := 0; i < 50; i++ {
		svm.AddRow(NewRow([]Feature{{ID: 1}, {ID: 2}}), BinaryLabel{Value: true})
	}
	for i := 0; i < 50; i++ {
		svm.AddRow(NewRow([]Feature{{ID: 2}}), BinaryLabel{Value: false})
	}
	bag := NewBag(svm)

	// Partition once on feature 1, then split the "yes" subset again on
	// feature 2 — Split must work against the reduced node dataset, not
	// just the bag's full Working set.
	yes1, _ := bag.Split(bag.Working, 1)
	require.Equal(t, 50, yes1.Size())

	yes2, no2 := bag.Split(yes1, 2)
	require.Equal(t, 50, yes2.Size())
	require.Equal(t, 0, no2.Size())
}

func TestBagSplitUnknownFeatureReturnsAllAsNo(t *testing.T) {
	svm := NewSVM()
	svm.AddRow(NewRow([]Feature{{ID: 1}}), BinaryLabel{Value: true})
	bag := NewBag(svm)

	yes, no := bag.Split(bag.Working, 999)
	require.Equal(t, 0, yes.Size())
	require.Equal(t, 1, no.Size())
}
