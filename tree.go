package vanga

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
)

// Predictor produces a logit contribution for a row. DecisionTree and
// PredictorSet both implement it, so a union model can hold either a
// single tree or a sum of trees without the caller caring which.
type Predictor interface {
	Predict(row *Row) float64
}

// Branch routes a row to YesTree when FeatureID is present in the row,
// to NoTree otherwise. Either subtree may be nil, contributing 0.
type Branch struct {
	FeatureID uint32
	YesTree   *DecisionTree
	NoTree    *DecisionTree
}

// DecisionTree is one additive term of the ensemble: a shallow recursive
// split structure whose leaves and internal nodes all carry a
// delta-logit contribution that's summed along the path a row takes.
type DecisionTree struct {
	TreeID    uint64
	DeltaProb float64
	Branches  []Branch
}

// NewDecisionTree returns a single-node (leaf) tree with zero contribution.
func NewDecisionTree(treeID uint64) *DecisionTree {
	return &DecisionTree{TreeID: treeID}
}

// Predict sums this node's delta with whichever child branch row matches,
// recursively, following every branch. A node may hold more than one
// branch (a loaded model can list several); the learner in this package
// grows exactly one branch per internal node.
func (t *DecisionTree) Predict(row *Row) float64 {
	res := t.DeltaProb
	for _, b := range t.Branches {
		if row.Has(b.FeatureID) {
			if b.YesTree != nil {
				res += b.YesTree.Predict(row)
			}
		} else if b.NoTree != nil {
			res += b.NoTree.Predict(row)
		}
	}
	return res
}

// Filter returns a pruned copy of the tree: any sub-tree whose empirical
// cover on svm (the count of svm's rows that route into it) falls below
// minCover is dropped, collapsing that side of the branch to a no-op.
func (t *DecisionTree) Filter(minCover int, svm *SVM) *DecisionTree {
	rows, _ := flattenSVM(svm)
	return t.filterRows(minCover, rows)
}

func (t *DecisionTree) filterRows(minCover int, rows []*Row) *DecisionTree {
	out := &DecisionTree{TreeID: t.TreeID, DeltaProb: t.DeltaProb}
	for _, b := range t.Branches {
		var yesRows, noRows []*Row
		for _, r := range rows {
			if r.Has(b.FeatureID) {
				yesRows = append(yesRows, r)
			} else {
				noRows = append(noRows, r)
			}
		}

		nb := Branch{FeatureID: b.FeatureID}
		if b.YesTree != nil && len(yesRows) >= minCover {
			nb.YesTree = b.YesTree.filterRows(minCover, yesRows)
		}
		if b.NoTree != nil && len(noRows) >= minCover {
			nb.NoTree = b.NoTree.filterRows(minCover, noRows)
		}
		out.Branches = append(out.Branches, nb)
	}
	return out
}

// Copy returns a deep, independent clone of the tree.
func (t *DecisionTree) Copy() *DecisionTree {
	out := &DecisionTree{TreeID: t.TreeID, DeltaProb: t.DeltaProb}
	for _, b := range t.Branches {
		nb := Branch{FeatureID: b.FeatureID}
		if b.YesTree != nil {
			nb.YesTree = b.YesTree.Copy()
		}
		if b.NoTree != nil {
			nb.NoTree = b.NoTree.Copy()
		}
		out.Branches = append(out.Branches, nb)
	}
	return out
}

// NodeCount returns the number of DecisionTree nodes reachable from t,
// including t itself.
func (t *DecisionTree) NodeCount() int {
	n := 1
	for _, b := range t.Branches {
		if b.YesTree != nil {
			n += b.YesTree.NodeCount()
		}
		if b.NoTree != nil {
			n += b.NoTree.NodeCount()
		}
	}
	return n
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// PrettyPrint writes a human-readable dump of the tree to w: every node
// shows its id, delta and the resulting probability against base, every
// branch shows the feature it tests. dict optionally maps feature ids to
// display names; a nil dict falls back to printing the bare id.
func (t *DecisionTree) PrettyPrint(w io.Writer, prefix string, dict map[uint32]string, base float64) {
	sign := ""
	if t.DeltaProb > 0 {
		sign = "+"
	}
	fmt.Fprintf(w, "%s{%d}: %s%v = %v(p = %v)\n",
		prefix, t.TreeID, sign, t.DeltaProb, base+t.DeltaProb, sigmoid(base+t.DeltaProb))

	for _, b := range t.Branches {
		fmt.Fprintf(w, "%s+   feature #%s\n", prefix, featureLabel(b.FeatureID, dict))
		childPrefix := prefix + "+   >   "
		if b.YesTree != nil {
			fmt.Fprintf(w, "%s  yes =>\n", prefix)
			b.YesTree.PrettyPrint(w, childPrefix, dict, base)
		}
		if b.NoTree != nil {
			fmt.Fprintf(w, "%s  no =>\n", prefix)
			b.NoTree.PrettyPrint(w, childPrefix, dict, base)
		}
	}
}

// featureLabel renders a feature id using dict[id] when present, falling
// back to the plain numeric id otherwise.
func featureLabel(id uint32, dict map[uint32]string) string {
	if dict != nil {
		if name, ok := dict[id]; ok {
			return fmt.Sprintf("%d(%s)", id, name)
		}
	}
	return fmt.Sprintf("%d", id)
}

// PredictorSet sums the contribution of every member predictor — the
// on-disk "union"/"union-sum" form of a boosted ensemble, as opposed to a
// single "dtree".
type PredictorSet struct {
	Predictors []Predictor
}

func (s *PredictorSet) Predict(row *Row) float64 {
	sum := 0.0
	for _, p := range s.Predictors {
		sum += p.Predict(row)
	}
	return sum
}

// PredictBatch evaluates every row concurrently across nThreads workers
// (0 = runtime.NumCPU(), 1 = single-threaded): rows are split into
// contiguous spans, one goroutine per span. Kept as a plain WaitGroup
// fan-out rather than a TaskRunner since Predict cannot fail.
func (s *PredictorSet) PredictBatch(rows []*Row, nThreads int) []float64 {
	out := make([]float64, len(rows))
	if len(rows) == 0 {
		return out
	}

	if nThreads == 0 {
		nThreads = runtime.NumCPU()
	}

	if nThreads == 1 || len(rows) <= nThreads {
		for i, row := range rows {
			out[i] = s.Predict(row)
		}
		return out
	}

	var wg sync.WaitGroup
	rowsPerThread := (len(rows) + nThreads - 1) / nThreads

	for start := 0; start < len(rows); start += rowsPerThread {
		end := start + rowsPerThread
		if end > len(rows) {
			end = len(rows)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = s.Predict(rows[i])
			}
		}(start, end)
	}

	wg.Wait()
	return out
}
