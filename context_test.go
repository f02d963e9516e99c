package vanga

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextLearnerRejectsEmptyContext(t *testing.T) {
	ctx := &Context{}
	cfg := TrainConfig{MaxAddDepth: 2, GrowAfter: 1}
	_, err := ctx.Learner(cfg, nil, nil, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScoreFeatureCacheHitSkipsRecompute(t *testing.T) {
	svm := NewSVM()
	for i := 0; i < 20; i++ {
		svm.AddRow(NewRow([]Feature{{ID: 7}}), BinaryLabel{Value: true})
	}
	for i := 0; i < 20; i++ {
		svm.AddRow(NewRow([]Feature{{ID: 9}}), BinaryLabel{Value: false})
	}

	cfg := TrainConfig{MaxAddDepth: 2, GrowAfter: 4.0, Rand: rand.New(rand.NewSource(1))}
	learner, err := NewLearner(cfg, nil, nil)
	require.NoError(t, err)

	lc := &LearnContext{ctx: NewContext([]*SVM{svm}), learner: learner, digCache: make(map[digCacheKey]digCacheEntry)}
	rows, labels := flattenSVM(svm)
	leafDelta := learner.fitBias(labels, 0)

	gain1, ok1 := lc.scoreFeature(0, svm, rows, labels, 0, leafDelta, 7)
	require.True(t, ok1)
	require.Len(t, lc.digCache, 1)

	// A second call with the identical (bagIndex, svm, featureID) key must
	// be served from the cache, not recomputed — same numeric result and
	// no growth in cache size.
	gain2, ok2 := lc.scoreFeature(0, svm, rows, labels, 0, leafDelta, 7)
	require.True(t, ok2)
	require.Equal(t, gain1, gain2)
	require.Len(t, lc.digCache, 1)

	_, _ = lc.scoreFeature(0, svm, rows, labels, 0, leafDelta, 9)
	require.Len(t, lc.digCache, 2)
}
