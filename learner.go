package vanga

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FeatureSelectionStrategy picks which of several positive-gain candidate
// features a node actually branches on.
type FeatureSelectionStrategy int

const (
	// SelectBestGain always branches on the single highest-gain candidate.
	SelectBestGain FeatureSelectionStrategy = iota
	// SelectTop3Random draws uniformly from the top 3 candidates by gain,
	// trading a little immediate gain for ensemble diversity across trees.
	SelectTop3Random
)

// TrainConfig controls how Learner.Train grows one additive tree.
type TrainConfig struct {
	// MaxAddDepth bounds how many branch levels a tree may grow.
	MaxAddDepth int
	// CheckDepth is how many extra levels a candidate split is grown out
	// to, on a trial basis, before its gain is trusted — look-ahead that
	// catches splits that only pay off once a descendant also splits.
	CheckDepth int
	// Alpha weights the PostQuad growth-penalty term in the fused
	// objective minimized at every candidate split (F = Logloss +
	// Alpha*PostQuad(GrowAfter)). Must be >= 0; 0 disables the penalty.
	Alpha float64
	// GrowAfter is the PostQuad regularizer radius: delta vectors are only
	// penalized once their Euclidean norm exceeds this.
	GrowAfter float64
	// Strategy selects among positive-gain candidates at each node.
	Strategy FeatureSelectionStrategy
	// AllowNegativeGain, when true, lets a node split even if doing so
	// does not reduce loss (gain <= 0); the check applies with or without
	// look-ahead.
	AllowNegativeGain bool
	// GainCheckBags is the number of additional hold-out bags (beyond the
	// primary training bag) a chosen split's gain is re-evaluated against
	// before being accepted. Only takes effect when the LearnContext it
	// runs under actually has that many extra bags (see Context.Learner);
	// 0 disables the check.
	GainCheckBags int
	// Rand drives TOP3_RANDOM selection. A nil value is replaced by a
	// freshly seeded source in NewLearner.
	Rand *rand.Rand
}

func (c TrainConfig) validate() error {
	if c.MaxAddDepth <= 0 {
		return fmt.Errorf("%w: max add depth must be > 0", ErrInvalidConfig)
	}
	if c.CheckDepth < 0 {
		return fmt.Errorf("%w: check depth must be >= 0", ErrInvalidConfig)
	}
	if c.CheckDepth > c.MaxAddDepth {
		return fmt.Errorf("%w: check depth must not exceed max add depth", ErrInvalidConfig)
	}
	if c.CheckDepth > 64 {
		return fmt.Errorf("%w: check depth must not exceed 64", ErrInvalidConfig)
	}
	if c.GainCheckBags < 0 {
		return fmt.Errorf("%w: gain check bags must be >= 0", ErrInvalidConfig)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("%w: alpha must be >= 0", ErrInvalidConfig)
	}
	if c.GrowAfter <= 0 {
		return fmt.Errorf("%w: grow after must be positive", ErrInvalidConfig)
	}
	return nil
}

// postQuadTerm builds the alpha-weighted PostQuad term used in every fused
// split-scoring objective. fitBias (a pure leaf-bias fit with no delta
// coordinates) never actually invokes the penalty, since PostQuad only
// looks at vars[1:].
func (l *Learner) postQuadTerm() LossFunc {
	return ScaledLoss{Coef: l.Config.Alpha, Inner: PostQuad{GrowAfter: l.Config.GrowAfter}}
}

// Learner holds the configuration and shared run state (tree id allocation,
// run id, logging, concurrency) behind growing trees; it never owns a
// dataset itself — a LearnContext binds it to a Context's bags for the
// duration of one Train call.
type Learner struct {
	Config     TrainConfig
	Runner     TaskRunner
	Logger     *logrus.Logger
	runID      string
	nextTreeID uint64
}

// NewLearner validates cfg and returns a ready Learner. runner may be nil,
// in which case sibling subtrees are grown sequentially. logger may be nil,
// in which case the learner runs silently.
func NewLearner(cfg TrainConfig, runner TaskRunner, logger *logrus.Logger) (*Learner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	return &Learner{Config: cfg, Runner: runner, Logger: logger, runID: uuid.NewString(), nextTreeID: 1}, nil
}

// logf emits a structured entry tagged with this learner's run id, a no-op
// when Logger is nil.
func (l *Learner) logf(fields logrus.Fields, format string, args ...any) {
	if l.Logger == nil {
		return
	}
	l.Logger.WithFields(fields).WithField("run_id", l.runID).Infof(format, args...)
}

func (l *Learner) allocTreeID() uint64 {
	id := l.nextTreeID
	l.nextTreeID++
	return id
}

func pointwiseLogLoss(value bool, pred float64) float64 {
	expArg := clamp(pred, innerExpMin, innerExpMax)
	e := 1 + math.Exp(-expArg)
	if value {
		return math.Log(e)
	}
	return expArg + math.Log(e)
}

// fitBias finds the single delta minimizing regularized logloss over rows
// whose current total prediction (ensemble pred plus every ancestor's
// committed delta) is basePred, binning them through a SplitCollector with
// delta=basePred so every SectorPred already carries the row's true total
// prediction.
func (l *Learner) fitBias(labels []BinaryLabel, basePred float64) float64 {
	sc := NewSplitCollector(0, basePred)
	defer sc.Release()
	for _, lb := range labels {
		sc.Add(0, lb)
	}

	loss := SumLoss{A: LogLoss{Groups: sc.Groups()}, B: l.postQuadTerm()}
	x := minimizePoint(loss, []float64{0}, logLossExpMin, logLossExpMax)
	return x[0]
}

// splitCandidate is one proposed branch feature, evaluated against the
// node's full row set.
type splitCandidate struct {
	featureID uint32
	gain      float64
}

// evalSplitGain bins rows by featureID through a SplitCollector (the same
// binning path used for multi-way splits, specialized to k=1 here), jointly
// fits a shared bias plus a yes/no-side variable for featureID (the same
// regGradVarsMin used for branch delta fitting elsewhere), then measures
// the raw logloss reduction that split buys relative to a single leaf bias
// fit. Returns ok=false if featureID does not separate rows (all yes or
// all no).
func (l *Learner) evalSplitGain(rows []*Row, labels []BinaryLabel, basePred, leafDelta float64, featureID uint32) (gain float64, ok bool) {
	sc := NewSplitCollector(1, basePred)
	defer sc.Release()
	sc.CollectRows(rows, labels, []uint32{featureID})

	yesPreds, noPreds := sc.Sector(1), sc.Sector(0)
	if len(yesPreds) == 0 || len(noPreds) == 0 {
		return 0, false
	}

	loss := SumLoss{A: LogLoss{Groups: sc.Groups()}, B: l.postQuadTerm()}
	yesRes, noRes := []float64{0}, []float64{0}
	regGradVarsMin(yesRes, noRes, loss)

	baseLoss := 0.0
	for _, lb := range labels {
		baseLoss += pointwiseLogLoss(lb.Value, lb.Pred+basePred+leafDelta)
	}

	splitLoss := 0.0
	for _, sp := range yesPreds {
		splitLoss += pointwiseLogLoss(sp.Value, sp.Pred+yesRes[0])
	}
	for _, sp := range noPreds {
		splitLoss += pointwiseLogLoss(sp.Value, sp.Pred+noRes[0])
	}

	return baseLoss - splitLoss, true
}

func cloneUsed(used map[uint32]bool) map[uint32]bool {
	out := make(map[uint32]bool, len(used)+1)
	for k, v := range used {
		out[k] = v
	}
	return out
}

// candidateFeatureIDs returns every feature present in rows, sorted and
// excluding ids already consumed by an ancestor split. rows here is always
// a node's already-partitioned subset (never the full bag), so scanning it
// directly is unavoidable — which features the node still has is a
// property of that subset, not of the bag-wide FeatureIndex.
func candidateFeatureIDs(rows []*Row, used map[uint32]bool) []uint32 {
	seen := make(map[uint32]bool)
	var ids []uint32
	for _, row := range rows {
		for _, f := range row.Features() {
			if !used[f.ID] && !seen[f.ID] {
				seen[f.ID] = true
				ids = append(ids, f.ID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Train grows one new additive tree against svm, whose row labels already
// hold the ensemble's accumulated prediction for each row. It is a
// single-bag convenience wrapper around Context/LearnContext: with only one
// bag in play, GainCheckBags has no hold-out bag to discount against and
// is a no-op (use Context.Learner directly with multiple bags to exercise
// it).
func (l *Learner) Train(svm *SVM) *DecisionTree {
	lc := &LearnContext{ctx: NewContext([]*SVM{svm}), learner: l, digCache: make(map[digCacheKey]digCacheEntry)}
	return lc.Train()
}

func flattenSVM(svm *SVM) (rows []*Row, labels []BinaryLabel) {
	for _, g := range svm.Groups {
		for _, row := range g.Rows {
			rows = append(rows, row)
			labels = append(labels, g.Label)
		}
	}
	return rows, labels
}

// growNode fits this node's own leaf delta, then decides whether to
// consume one more candidate feature as a branch. basePred is the sum of
// every ancestor's committed delta along the path that reached this node;
// a node that splits contributes 0 of its own (its fitted delta only
// informs feature selection), so basePred is unchanged for both children.
// primarySVM is the node's row subset within bag; holdoutBags/holdoutSVMs
// are the parallel subsets within each hold-out bag still in play, reduced
// by the same sequence of chosen features as primarySVM at every level.
func (lc *LearnContext) growNode(bag *Bag, primarySVM *SVM, holdoutBags []*Bag, holdoutSVMs []*SVM, basePred float64, used map[uint32]bool, depth int) *DecisionTree {
	l := lc.learner
	node := NewDecisionTree(l.allocTreeID())
	rows, labels := flattenSVM(primarySVM)
	leafDelta := l.fitBias(labels, basePred)

	if depth >= l.Config.MaxAddDepth || len(rows) == 0 {
		node.DeltaProb = leafDelta
		return node
	}

	candidates := candidateFeatureIDs(rows, used)
	if len(candidates) == 0 {
		node.DeltaProb = leafDelta
		return node
	}

	results := lc.evalCandidates(0, primarySVM, rows, labels, basePred, leafDelta, candidates)
	if len(results) == 0 {
		node.DeltaProb = leafDelta
		return node
	}

	sort.Slice(results, func(i, j int) bool { return results[i].gain > results[j].gain })

	chosen, accepted := l.selectCandidate(results)
	if !accepted {
		node.DeltaProb = leafDelta
		return node
	}

	if l.Config.CheckDepth > 0 {
		chosen = lc.lookAhead(bag, primarySVM, rows, labels, basePred, leafDelta, used, depth, results)
	}

	if !l.Config.AllowNegativeGain && chosen.gain <= 0 {
		node.DeltaProb = leafDelta
		return node
	}

	reportedGain := chosen.gain
	if len(holdoutBags) > 0 {
		discounted, accept := lc.regretCheck(holdoutBags, holdoutSVMs, basePred, chosen.featureID, chosen.gain)
		reportedGain = discounted
		if !accept {
			node.DeltaProb = leafDelta
			return node
		}
	}

	lc.recordSplit(SplitReport{
		TreeID: node.TreeID, FeatureID: chosen.featureID, Depth: depth,
		RawGain: chosen.gain, DiscountedGain: reportedGain,
	})

	l.logf(logrus.Fields{
		"tree_id": node.TreeID, "feature_id": chosen.featureID, "gain": reportedGain,
		"raw_gain": chosen.gain, "depth": depth, "rows": len(rows),
	}, "accepted split")

	yesSVM, noSVM := bag.Split(primarySVM, chosen.featureID)
	childUsed := cloneUsed(used)
	childUsed[chosen.featureID] = true

	yesHoldout := make([]*SVM, len(holdoutSVMs))
	noHoldout := make([]*SVM, len(holdoutSVMs))
	for i, hb := range holdoutBags {
		yesHoldout[i], noHoldout[i] = hb.Split(holdoutSVMs[i], chosen.featureID)
	}

	var yesTree, noTree *DecisionTree
	if l.Runner != nil {
		yesFuture := l.Runner.Submit(func(ctx context.Context) error {
			yesTree = lc.growNode(bag, yesSVM, holdoutBags, yesHoldout, basePred, childUsed, depth+1)
			return nil
		})
		noFuture := l.Runner.Submit(func(ctx context.Context) error {
			noTree = lc.growNode(bag, noSVM, holdoutBags, noHoldout, basePred, childUsed, depth+1)
			return nil
		})
		_ = yesFuture.Wait()
		_ = noFuture.Wait()
	} else {
		yesTree = lc.growNode(bag, yesSVM, holdoutBags, yesHoldout, basePred, childUsed, depth+1)
		noTree = lc.growNode(bag, noSVM, holdoutBags, noHoldout, basePred, childUsed, depth+1)
	}

	node.DeltaProb = 0
	node.Branches = []Branch{{FeatureID: chosen.featureID, YesTree: yesTree, NoTree: noTree}}
	return node
}

// evalCandidates scores every candidate feature against (bagIndex, svm),
// fanning out across l.Runner when available, routing each score through
// the DigCache so a repeated (bag, row-subset, feature) triple within this
// LearnContext is never recomputed. Look-ahead trial growth runs under its
// own LearnContext and cache, and every Bag.Split returns new *SVM values,
// so trial scores are not shared with the committed growth.
func (lc *LearnContext) evalCandidates(bagIndex int, svm *SVM, rows []*Row, labels []BinaryLabel, basePred, leafDelta float64, candidates []uint32) []splitCandidate {
	l := lc.learner
	results := make([]splitCandidate, len(candidates))
	ok := make([]bool, len(candidates))

	score := func(i int, fid uint32) {
		gain, got := lc.scoreFeature(bagIndex, svm, rows, labels, basePred, leafDelta, fid)
		results[i] = splitCandidate{featureID: fid, gain: gain}
		ok[i] = got
	}

	if l.Runner != nil && len(candidates) > 1 {
		futures := make([]Future, len(candidates))
		for i, fid := range candidates {
			i, fid := i, fid
			futures[i] = l.Runner.Submit(func(ctx context.Context) error {
				score(i, fid)
				return nil
			})
		}
		for _, f := range futures {
			_ = f.Wait()
		}
	} else {
		for i, fid := range candidates {
			score(i, fid)
		}
	}

	out := make([]splitCandidate, 0, len(candidates))
	for i, got := range ok {
		if got {
			out = append(out, results[i])
		}
	}
	return out
}

// selectCandidate picks among gain-sorted (descending) results per the
// configured strategy.
func (l *Learner) selectCandidate(results []splitCandidate) (splitCandidate, bool) {
	if len(results) == 0 {
		return splitCandidate{}, false
	}
	switch l.Config.Strategy {
	case SelectTop3Random:
		n := len(results)
		if n > 3 {
			n = 3
		}
		return results[l.Config.Rand.Intn(n)], true
	default:
		return results[0], true
	}
}

// lookAhead re-ranks the top candidates (bounded to 3, to keep the trial
// cost proportional to the look-ahead depth rather than the full feature
// count) by tentatively growing each one's subtree CheckDepth extra levels
// and comparing the resulting total logloss, catching splits whose payoff
// only shows up once a descendant also branches. The returned candidate's
// gain is replaced with this joint before/after comparison — an
// interaction split (XOR-shaped) typically shows ~zero single-level gain,
// so the accept/reject threshold in growNode must see the look-ahead gain,
// not the naive one, or a genuinely good deep split never gets accepted.
// Trial growth never consults hold-out bags (GainCheckBags is disabled on
// the trial config) — it exists only to re-rank candidates, not to commit
// anything, so regret discounting would just be wasted work.
func (lc *LearnContext) lookAhead(bag *Bag, svm *SVM, rows []*Row, labels []BinaryLabel, basePred, leafDelta float64, used map[uint32]bool, depth int, results []splitCandidate) splitCandidate {
	l := lc.learner
	poolSize := len(results)
	if poolSize > 3 {
		poolSize = 3
	}

	trialDepth := depth + 1 + l.Config.CheckDepth
	if trialDepth > l.Config.MaxAddDepth {
		trialDepth = l.Config.MaxAddDepth
	}

	baseLoss := 0.0
	for i := range rows {
		baseLoss += pointwiseLogLoss(labels[i].Value, labels[i].Pred+basePred+leafDelta)
	}

	best := results[0]
	bestLoss := math.Inf(1)

	trialConfig := l.Config
	trialConfig.CheckDepth = 0
	trialConfig.GainCheckBags = 0
	trialConfig.MaxAddDepth = trialDepth
	trialLearner := &Learner{Config: trialConfig, nextTreeID: l.nextTreeID}
	trialLC := &LearnContext{ctx: lc.ctx, learner: trialLearner, digCache: make(map[digCacheKey]digCacheEntry)}

	for _, cand := range results[:poolSize] {
		yesSVM, noSVM := bag.Split(svm, cand.featureID)
		yesRows, yesLabels := flattenSVM(yesSVM)
		noRows, noLabels := flattenSVM(noSVM)
		childUsed := cloneUsed(used)
		childUsed[cand.featureID] = true

		yesTrial := trialLC.growNode(bag, yesSVM, nil, nil, basePred, childUsed, depth+1)
		noTrial := trialLC.growNode(bag, noSVM, nil, nil, basePred, childUsed, depth+1)

		totalLoss := 0.0
		for i, row := range yesRows {
			totalLoss += pointwiseLogLoss(yesLabels[i].Value, yesLabels[i].Pred+basePred+yesTrial.Predict(row))
		}
		for i, row := range noRows {
			totalLoss += pointwiseLogLoss(noLabels[i].Value, noLabels[i].Pred+basePred+noTrial.Predict(row))
		}

		if totalLoss < bestLoss {
			bestLoss = totalLoss
			best = cand
		}
	}

	best.gain = baseLoss - bestLoss
	return best
}

// regretCheck re-scores featureID independently against each hold-out
// bag's node-local dataset (the same row subset the primary side reached
// by applying the identical sequence of chosen features) and reports the
// average hold-out gain as the discounted gain. This is the genuine-data
// analogue of "regret = fit gain on the training bag minus fit gain on
// hold-out bags, discount the reported gain by the regret": since the
// regret is rawGain - avg(holdoutGain), discounting rawGain by it leaves
// exactly avg(holdoutGain). A split that overfits the training bag shows a
// high raw gain but a low (or negative) average hold-out gain here; one
// with no usable hold-out data at all (every hold-out bag's subset is
// empty at this node) falls back to accepting on rawGain, since there's
// nothing to discount against.
func (lc *LearnContext) regretCheck(holdoutBags []*Bag, holdoutSVMs []*SVM, basePred float64, featureID uint32, rawGain float64) (discountedGain float64, accept bool) {
	l := lc.learner
	total, n := 0.0, 0
	for i, svm := range holdoutSVMs {
		if svm == nil || svm.Size() == 0 {
			continue
		}
		rows, labels := flattenSVM(svm)
		leafDelta := l.fitBias(labels, basePred)
		gain, ok := lc.scoreFeature(i+1, svm, rows, labels, basePred, leafDelta, featureID)
		if ok {
			total += gain
			n++
		}
	}
	if n == 0 {
		return rawGain, true
	}
	discounted := total / float64(n)
	return discounted, discounted > 0
}

// TrainEnsemble grows rounds additive trees, feeding each tree's predictions
// back into the next round's residual via PredictorAddAdapter before
// growing the next tree, and returns the resulting sum-of-trees predictor.
func (l *Learner) TrainEnsemble(svm *SVM, rounds int) *PredictorSet {
	set := &PredictorSet{}
	current := svm
	for i := 0; i < rounds; i++ {
		tree := l.Train(current)
		set.Predictors = append(set.Predictors, tree)
		current = current.CopyWithAdapter(PredictorAddAdapter{Predictor: tree})

		l.logf(logrus.Fields{
			"round": i, "tree_id": tree.TreeID, "nodes": tree.NodeCount(), "rows": current.Size(),
		}, "boosting round complete")
	}
	return set
}
