package vanga

import "sync"

// sectorBufferPool recycles the per-sector SectorPred slices a
// SplitCollector allocates while evaluating a candidate split, avoiding
// a fresh allocation burst on every node the tree learner considers.
var sectorBufferPool = sync.Pool{
	New: func() any {
		buf := make([]SectorPred, 0, 1024)
		return &buf
	},
}

func getSectorBuffer() []SectorPred {
	buf := sectorBufferPool.Get().(*[]SectorPred)
	return (*buf)[:0]
}

func putSectorBuffer(buf []SectorPred) {
	buf = buf[:0]
	sectorBufferPool.Put(&buf)
}

// SplitCollector bins rows into up to 2^k sectors keyed by the bitmask of
// which of k proposed branch features each row carries, so the loss
// function can evaluate all 2^k candidate combinations of a multi-way
// split in one pass over the pooled buffers instead of one pass per
// feature.
type SplitCollector struct {
	varsNumber int
	delta      float64
	sectors    [][]SectorPred
}

// NewSplitCollector allocates (from the pool) the 2^varsNumber sector
// buffers used to bin rows for a split evaluation over varsNumber proposed
// branch variables. delta is the background logit offset (the ensemble's
// accumulated prediction plus any ancestor delta already committed along
// the path) added to every row's label.Pred as it's binned, so the loss
// evaluated over the collected sectors reflects the row's true current
// total prediction rather than just its original dataset label.Pred.
func NewSplitCollector(varsNumber int, delta float64) *SplitCollector {
	sectorCount := 1 << uint(varsNumber)
	sc := &SplitCollector{
		varsNumber: varsNumber,
		delta:      delta,
		sectors:    make([][]SectorPred, sectorCount),
	}
	for i := range sc.sectors {
		sc.sectors[i] = getSectorBuffer()
	}
	return sc
}

// Add records one row's label into the sector identified by mask (bit i
// set means the row carries proposed variable i), offsetting its
// prediction by this collector's delta.
func (sc *SplitCollector) Add(mask uint64, label BinaryLabel) {
	sc.sectors[mask] = append(sc.sectors[mask], SectorPred{Value: label.Value, Pred: label.Pred + sc.delta, Count: 1})
}

// CollectRows bins every row of rows (with parallel labels) by testing
// featureIDs[i] presence for bit i of the sector mask.
func (sc *SplitCollector) CollectRows(rows []*Row, labels []BinaryLabel, featureIDs []uint32) {
	for i, row := range rows {
		var mask uint64
		for bit, fid := range featureIDs {
			if row.Has(fid) {
				mask |= uint64(1) << uint(bit)
			}
		}
		sc.Add(mask, labels[i])
	}
}

// Sector returns the raw predictions binned under mask, without the
// VarGroup wrapping Groups applies. Used where a caller needs a specific
// sector's rows directly (e.g. the yes/no sides of a single-feature split)
// rather than iterating every populated mask.
func (sc *SplitCollector) Sector(mask uint64) []SectorPred {
	return sc.sectors[mask]
}

// Groups returns the non-empty sectors as VarGroups, ready to hand to a
// LossFunc.
func (sc *SplitCollector) Groups() []VarGroup {
	groups := make([]VarGroup, 0, len(sc.sectors))
	for mask, preds := range sc.sectors {
		if len(preds) > 0 {
			groups = append(groups, VarGroup{Mask: uint64(mask), Preds: preds})
		}
	}
	return groups
}

// Release returns every sector buffer to the pool. Callers must not use
// the collector afterward.
func (sc *SplitCollector) Release() {
	for i, buf := range sc.sectors {
		putSectorBuffer(buf)
		sc.sectors[i] = nil
	}
}
