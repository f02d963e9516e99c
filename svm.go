package vanga

// PredictGroup is a set of rows sharing one label state.
type PredictGroup struct {
	Label BinaryLabel
	Rows  []*Row
}

// SVM is an ordered collection of PredictGroups; the same Row may appear in
// at most one group per SVM. Zero value is a usable empty dataset.
type SVM struct {
	Groups []*PredictGroup
}

// NewSVM returns an empty dataset.
func NewSVM() *SVM {
	return &SVM{}
}

// AddRow appends row to the group whose label equals label exactly,
// creating the group if none matches. Does not deduplicate rows.
func (s *SVM) AddRow(row *Row, label BinaryLabel) {
	for _, g := range s.Groups {
		if g.Label == label {
			g.Rows = append(g.Rows, row)
			return
		}
	}
	s.Groups = append(s.Groups, &PredictGroup{Label: label, Rows: []*Row{row}})
}

// Size returns the total row count across all groups.
func (s *SVM) Size() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Rows)
	}
	return n
}

// LabelSumFloat sums BinaryLabel.ToFloat() over every row in the dataset.
func (s *SVM) LabelSumFloat() float64 {
	sum := 0.0
	for _, g := range s.Groups {
		sum += g.Label.ToFloat() * float64(len(g.Rows))
	}
	return sum
}

// Copy returns a shallow copy: new Groups and Rows slices, same underlying
// *Row pointers (rows are immutable, so sharing them is safe).
func (s *SVM) Copy() *SVM {
	out := &SVM{Groups: make([]*PredictGroup, 0, len(s.Groups))}
	for _, g := range s.Groups {
		rows := make([]*Row, len(g.Rows))
		copy(rows, g.Rows)
		out.Groups = append(out.Groups, &PredictGroup{Label: g.Label, Rows: rows})
	}
	return out
}

// CopyWithAdapter rebuilds the dataset applying adapter to every row's
// label, re-grouping rows whose post-adapt label now coincides. This is
// the mechanism behind both "add the ensemble's current prediction to
// pred" (PredictorAddAdapter) and "perturb pred for exploration"
// (AnnealingAdapter).
func (s *SVM) CopyWithAdapter(adapter LabelAdapter) *SVM {
	out := NewSVM()
	for _, g := range s.Groups {
		for _, row := range g.Rows {
			out.AddRow(row, adapter.Adapt(row, g.Label))
		}
	}
	return out
}

// ByFeature returns a new SVM containing exactly the rows (with group
// identity preserved) for which feature_id is present (yes=true) or absent
// (yes=false).
func (s *SVM) ByFeature(featureID uint32, yes bool) *SVM {
	out := NewSVM()
	for _, g := range s.Groups {
		var kept []*Row
		for _, row := range g.Rows {
			if row.Has(featureID) == yes {
				kept = append(kept, row)
			}
		}
		if len(kept) > 0 {
			out.Groups = append(out.Groups, &PredictGroup{Label: g.Label, Rows: kept})
		}
	}
	return out
}

// Cross splits this dataset's rows by pointer-identity membership in
// other: intersection holds rows present in both, leftOnly holds the rest
// of this dataset's rows. Group identity is preserved in both outputs.
func (s *SVM) Cross(other *SVM) (intersection, leftOnly *SVM) {
	present := make(map[*Row]struct{})
	for _, g := range other.Groups {
		for _, row := range g.Rows {
			present[row] = struct{}{}
		}
	}

	intersection, leftOnly = NewSVM(), NewSVM()
	for _, g := range s.Groups {
		var inRows, outRows []*Row
		for _, row := range g.Rows {
			if _, ok := present[row]; ok {
				inRows = append(inRows, row)
			} else {
				outRows = append(outRows, row)
			}
		}
		if len(inRows) > 0 {
			intersection.Groups = append(intersection.Groups, &PredictGroup{Label: g.Label, Rows: inRows})
		}
		if len(outRows) > 0 {
			leftOnly.Groups = append(leftOnly.Groups, &PredictGroup{Label: g.Label, Rows: outRows})
		}
	}
	return intersection, leftOnly
}

// SplitInto yields n datasets by round-robin assignment of rows, while
// preserving each source group's label on the corresponding subset. Used
// to build training bags.
func (s *SVM) SplitInto(n int) []*SVM {
	out := make([]*SVM, n)
	for i := range out {
		out[i] = NewSVM()
	}
	if n <= 0 {
		return out
	}

	i := 0
	for _, g := range s.Groups {
		buckets := make([][]*Row, n)
		for _, row := range g.Rows {
			buckets[i%n] = append(buckets[i%n], row)
			i++
		}
		for bi, rows := range buckets {
			if len(rows) > 0 {
				out[bi].Groups = append(out[bi].Groups, &PredictGroup{Label: g.Label, Rows: rows})
			}
		}
	}
	return out
}

// Rows returns every row in the dataset paired with its group's label, in
// group order. Convenience for callers that don't need group structure.
func (s *SVM) Rows() []struct {
	Row   *Row
	Label BinaryLabel
} {
	var out []struct {
		Row   *Row
		Label BinaryLabel
	}
	for _, g := range s.Groups {
		for _, row := range g.Rows {
			out = append(out, struct {
				Row   *Row
				Label BinaryLabel
			}{row, g.Label})
		}
	}
	return out
}
