package vanga

import "sort"

// FeatureIndex is the per-bag "fill_feature_rows" table: every feature id
// occurring in at least one row of the bag, sorted ascending, paired with
// the sub-dataset of rows that carry it. It is built once per bag and
// reused by every node grown against that bag, so partitioning a node's
// row set by a candidate feature never has to rescan the bag from
// scratch — it looks the feature up and intersects by row identity.
type FeatureIndex struct {
	Features    []uint32
	FeatureRows map[uint32]*SVM
}

// BuildFeatureIndex scans bag once and returns the FeatureIndex consulted
// by every split considered against it.
func BuildFeatureIndex(bag *SVM) *FeatureIndex {
	seen := make(map[uint32]bool)
	var ids []uint32
	for _, g := range bag.Groups {
		for _, row := range g.Rows {
			for _, f := range row.Features() {
				if !seen[f.ID] {
					seen[f.ID] = true
					ids = append(ids, f.ID)
				}
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	idx := &FeatureIndex{Features: ids, FeatureRows: make(map[uint32]*SVM, len(ids))}
	for _, id := range ids {
		idx.FeatureRows[id] = bag.ByFeature(id, true)
	}
	return idx
}

// Bag pairs one training dataset with its precomputed FeatureIndex. Working
// is the full bag dataset; node-local subsets are produced by Split and
// never rebuild the index.
type Bag struct {
	Index   *FeatureIndex
	Working *SVM
}

// NewBag indexes svm and returns the Bag ready for node partitioning.
func NewBag(svm *SVM) *Bag {
	return &Bag{Index: BuildFeatureIndex(svm), Working: svm}
}

// Split partitions node (a subset of rows already reachable from b.Working)
// into the rows that carry featureID and those that don't, without
// rescanning node's rows feature-by-feature: the "yes" side is node
// intersected by identity against the bag-wide feature_rows entry, and the
// "no" side is whatever's left.
func (b *Bag) Split(node *SVM, featureID uint32) (yes, no *SVM) {
	bagRows, ok := b.Index.FeatureRows[featureID]
	if !ok {
		return NewSVM(), node
	}
	return node.Cross(bagRows)
}
