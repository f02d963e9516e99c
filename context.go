package vanga

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Context holds every bag a tree learner may draw on: bag 0 is the primary
// training bag a tree is actually grown against, bags 1..N are held out and
// consulted only to discount a chosen split's gain (see LearnContext.Train
// and TrainConfig.GainCheckBags).
type Context struct {
	Bags []*Bag
}

// NewContext indexes each of svms and returns the resulting Context. Order
// matters: svms[0] is the primary training bag.
func NewContext(svms []*SVM) *Context {
	ctx := &Context{Bags: make([]*Bag, len(svms))}
	for i, svm := range svms {
		ctx.Bags[i] = NewBag(svm)
	}
	return ctx
}

// digCacheKey identifies one (bag, row-subset, candidate feature) scoring
// call. It keys on the row-subset's *SVM pointer rather than an allocated
// tree-node id: this learner grows each tree in one shot (rather than
// incrementally resuming a held LearnTreeHolder across repeated Train
// calls), so a node id is allocated exactly once and a node-id key would
// never be looked up twice. A key built from a node's used-feature
// signature would instead collide, since a split's yes-child and no-child
// inherit the identical parent used-set despite holding disjoint rows.
// Pointer identity of the row-subset has no such collision and is exact.
type digCacheKey struct {
	bagIndex  int
	svm       *SVM
	featureID uint32
}

type digCacheEntry struct {
	gain float64
	ok   bool
}

// SplitReport records one committed split's gain accounting: the raw gain
// measured on the primary bag, and the gain actually reported after
// hold-out-bag regret discounting (see LearnContext.regretCheck). The two
// can differ only when hold-out bags are in play (GainCheckBags > 0 and the
// Context has extra bags) and at least one of them has rows at that node.
type SplitReport struct {
	TreeID         uint64
	FeatureID      uint32
	Depth          int
	RawGain        float64
	DiscountedGain float64
}

// LearnContext binds a Context to a Learner for one Train call. base, when
// non-nil, seeds the grown tree's root with base.DeltaProb as its starting
// basePred offset — this learner sums independent whole trees via
// PredictorSet rather than resuming a single shared LearnTreeHolder node by
// node, so base is honored only as that scalar offset, not as a partially
// grown tree to keep extending (see DESIGN.md).
type LearnContext struct {
	ctx     *Context
	learner *Learner
	base    *DecisionTree

	mu       sync.Mutex
	digCache map[digCacheKey]digCacheEntry
	reports  []SplitReport
}

// Learner builds a LearnContext over c using cfg, optionally seeded from
// base's root delta, running candidate evaluation and sibling subtree
// growth through runner (nil = sequential), logging via logger (nil =
// silent).
func (c *Context) Learner(cfg TrainConfig, base *DecisionTree, runner TaskRunner, logger *logrus.Logger) (*LearnContext, error) {
	if len(c.Bags) == 0 {
		return nil, fmt.Errorf("%w: context has no bags", ErrInvalidConfig)
	}
	learner, err := NewLearner(cfg, runner, logger)
	if err != nil {
		return nil, err
	}
	return &LearnContext{ctx: c, learner: learner, base: base, digCache: make(map[digCacheKey]digCacheEntry)}, nil
}

// Train grows one new additive tree against the primary bag (c.Bags[0]),
// discounting each candidate split's gain against up to
// Config.GainCheckBags of the remaining bags before accepting it.
func (lc *LearnContext) Train() *DecisionTree {
	basePred := 0.0
	if lc.base != nil {
		basePred = lc.base.DeltaProb
	}

	holdoutCount := lc.learner.Config.GainCheckBags
	if max := len(lc.ctx.Bags) - 1; holdoutCount > max {
		holdoutCount = max
	}

	primaryBag := lc.ctx.Bags[0]
	holdoutBags := lc.ctx.Bags[1 : 1+holdoutCount]
	holdoutSVMs := make([]*SVM, len(holdoutBags))
	for i, b := range holdoutBags {
		holdoutSVMs[i] = b.Working
	}

	lc.mu.Lock()
	lc.reports = nil
	lc.mu.Unlock()

	used := make(map[uint32]bool)
	return lc.growNode(primaryBag, primaryBag.Working, holdoutBags, holdoutSVMs, basePred, used, 0)
}

// SplitReports returns the gain accounting for every split this
// LearnContext's most recent Train call committed, in the order accepted.
func (lc *LearnContext) SplitReports() []SplitReport {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]SplitReport, len(lc.reports))
	copy(out, lc.reports)
	return out
}

func (lc *LearnContext) recordSplit(r SplitReport) {
	lc.mu.Lock()
	lc.reports = append(lc.reports, r)
	lc.mu.Unlock()
}

// scoreFeature evaluates featureID's split gain against (bagIndex, svm),
// consulting and populating the DigCache so the same (bag, row-subset,
// feature) triple is never scored twice within one Train call.
func (lc *LearnContext) scoreFeature(bagIndex int, svm *SVM, rows []*Row, labels []BinaryLabel, basePred, leafDelta float64, featureID uint32) (gain float64, ok bool) {
	key := digCacheKey{bagIndex: bagIndex, svm: svm, featureID: featureID}

	lc.mu.Lock()
	if cached, hit := lc.digCache[key]; hit {
		lc.mu.Unlock()
		return cached.gain, cached.ok
	}
	lc.mu.Unlock()

	gain, ok = lc.learner.evalSplitGain(rows, labels, basePred, leafDelta, featureID)

	lc.mu.Lock()
	lc.digCache[key] = digCacheEntry{gain: gain, ok: ok}
	lc.mu.Unlock()
	return gain, ok
}
