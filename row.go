package vanga

import "sort"

// Feature is a (feature-id, value) pair. In practice values are 0 or 1 for
// binary indicators; the learner branches only on presence of the id, but
// non-binary values are preserved through load/save.
type Feature struct {
	ID    uint32
	Value uint32
}

// Row is an immutable, ordered sequence of Features with strictly
// ascending, unique ids. Rows are created once by the dataset loader and
// shared (via a plain Go slice, GC-managed) across every SVM view that
// contains them — by_feature/cross derive new SVMs that reference the same
// underlying Rows rather than copying them.
type Row struct {
	features []Feature
}

// NewRow builds a Row from features, sorting them by id. Caller-supplied
// duplicate ids are rejected by keeping the first occurrence.
func NewRow(features []Feature) *Row {
	cp := make([]Feature, len(features))
	copy(cp, features)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })

	out := cp[:0]
	var lastID uint32
	haveLast := false
	for _, f := range cp {
		if haveLast && f.ID == lastID {
			continue
		}
		out = append(out, f)
		lastID = f.ID
		haveLast = true
	}
	return &Row{features: out}
}

// Get returns whether feature_id is present in the row and, if so, its
// value. Implemented as binary search over the sorted backing array.
func (r *Row) Get(featureID uint32) (present bool, value uint32) {
	features := r.features
	i := sort.Search(len(features), func(i int) bool { return features[i].ID >= featureID })
	if i < len(features) && features[i].ID == featureID {
		return true, features[i].Value
	}
	return false, 0
}

// Has reports whether the row carries featureID at all. Any present
// feature counts, regardless of its stored value — splits branch on
// presence, never on magnitude.
func (r *Row) Has(featureID uint32) bool {
	present, _ := r.Get(featureID)
	return present
}

// Features returns the row's sorted, ascending feature list. The returned
// slice must not be mutated by the caller.
func (r *Row) Features() []Feature {
	return r.features
}
