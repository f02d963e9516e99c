package vanga

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Model file section headers. A "dtree" file holds one tree; a
// "union-sum" (or its legacy alias "union") file holds a PredictorSet: a
// count line giving the number of member trees, then that many nested
// "dtree" blocks concatenated.
const (
	dtreeModelHead     = "dtree"
	unionSumModelHead  = "union-sum"
	unionSumModelHead2 = "union"
)

// SaveDecisionTree writes t in the "dtree" text format: a header line,
// then one tab-separated line per node (tree_id, delta_prob, branches),
// branches pipe-joined as feature_id:yes_id:no_id with 0 meaning "no
// child". delta_prob is printed with fixed 7-digit precision, matching
// the reference writer.
func SaveDecisionTree(w io.Writer, t *DecisionTree) error {
	if _, err := fmt.Fprintln(w, dtreeModelHead); err != nil {
		return err
	}
	return saveDTreeNode(w, t)
}

func saveDTreeNode(w io.Writer, t *DecisionTree) error {
	branchParts := make([]string, len(t.Branches))
	for i, b := range t.Branches {
		yesID, noID := uint64(0), uint64(0)
		if b.YesTree != nil {
			yesID = b.YesTree.TreeID
		}
		if b.NoTree != nil {
			noID = b.NoTree.TreeID
		}
		branchParts[i] = fmt.Sprintf("%d:%d:%d", b.FeatureID, yesID, noID)
	}

	if _, err := fmt.Fprintf(w, "%d\t%.7f\t%s\n", t.TreeID, t.DeltaProb, strings.Join(branchParts, "|")); err != nil {
		return err
	}

	for _, b := range t.Branches {
		if b.YesTree != nil {
			if err := saveDTreeNode(w, b.YesTree); err != nil {
				return err
			}
		}
		if b.NoTree != nil {
			if err := saveDTreeNode(w, b.NoTree); err != nil {
				return err
			}
		}
	}
	return nil
}

// SavePredictorSet writes set in the "union-sum" text format: a header
// line, a count line giving len(set.Predictors), then that many
// self-contained "dtree" blocks concatenated.
func SavePredictorSet(w io.Writer, set *PredictorSet) error {
	if _, err := fmt.Fprintln(w, unionSumModelHead); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, len(set.Predictors)); err != nil {
		return err
	}
	for _, p := range set.Predictors {
		t, ok := p.(*DecisionTree)
		if !ok {
			return newModelError(nil, "union-sum member is not a dtree")
		}
		if err := SaveDecisionTree(w, t); err != nil {
			return err
		}
	}
	return nil
}

// lineReader wraps bufio.Scanner with a one-line pushback, needed because
// the union-sum format concatenates dtree blocks with no separator: the
// node-line reader has to peek at the line following a block to recognize
// the next block's "dtree" header without consuming it.
type lineReader struct {
	sc      *bufio.Scanner
	current string
	pushed  bool
}

func newLineReader(r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineReader{sc: sc}
}

func (lr *lineReader) Scan() bool {
	if lr.pushed {
		lr.pushed = false
		return true
	}
	if !lr.sc.Scan() {
		return false
	}
	lr.current = lr.sc.Text()
	return true
}

func (lr *lineReader) Text() string {
	return lr.current
}

func (lr *lineReader) Err() error {
	return lr.sc.Err()
}

// push replays the most recently scanned line again on the next
// Scan/Text call.
func (lr *lineReader) push() {
	lr.pushed = true
}

// dtreeLoadNode mirrors a single raw parsed line before branch ids are
// resolved into pointers.
type dtreeLoadNode struct {
	treeID    uint64
	deltaProb float64
	branches  []rawBranch
}

type rawBranch struct {
	featureID uint32
	yesID     uint64
	noID      uint64
}

// loadDTreeNodes reads tab-separated node lines from r until a blank line,
// the next block's "dtree" header (pushed back, not consumed), or EOF,
// resolves branch tree-id references against each other, and returns the
// root (the first node line encountered).
func loadDTreeNodes(r *lineReader, lineNo *int) (*DecisionTree, error) {
	nodes := make(map[uint64]*dtreeLoadNode)
	var order []uint64

	for r.Scan() {
		*lineNo++
		line := r.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if trimmed == dtreeModelHead {
			r.push()
			*lineNo--
			break
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			return nil, &ParseError{Line: *lineNo, Reason: "expected tree_id<TAB>delta_prob[<TAB>branches]"}
		}

		treeID, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: *lineNo, Reason: "invalid tree id: " + fields[0]}
		}

		deltaProb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &ParseError{Line: *lineNo, Reason: "invalid delta prob: " + fields[1]}
		}

		node := &dtreeLoadNode{treeID: treeID, deltaProb: deltaProb}

		if len(fields) == 3 && fields[2] != "" {
			for _, branchStr := range strings.Split(fields[2], "|") {
				parts := strings.Split(branchStr, ":")
				if len(parts) != 3 {
					return nil, &ParseError{Line: *lineNo, Reason: "malformed branch: " + branchStr}
				}

				featureID, err := strconv.ParseUint(parts[0], 10, 32)
				if err != nil {
					return nil, &ParseError{Line: *lineNo, Reason: "invalid feature id: " + parts[0]}
				}
				yesID, err := strconv.ParseUint(parts[1], 10, 64)
				if err != nil {
					return nil, &ParseError{Line: *lineNo, Reason: "invalid yes tree id: " + parts[1]}
				}
				noID, err := strconv.ParseUint(parts[2], 10, 64)
				if err != nil {
					return nil, &ParseError{Line: *lineNo, Reason: "invalid no tree id: " + parts[2]}
				}

				node.branches = append(node.branches, rawBranch{
					featureID: uint32(featureID), yesID: yesID, noID: noID,
				})
			}
		}

		nodes[treeID] = node
		order = append(order, treeID)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, newModelError(nil, "dtree block has no nodes")
	}

	resolved := make(map[uint64]*DecisionTree, len(nodes))
	for id, n := range nodes {
		resolved[id] = &DecisionTree{TreeID: id, DeltaProb: n.deltaProb}
	}
	for id, n := range nodes {
		tree := resolved[id]
		for _, rb := range n.branches {
			branch := Branch{FeatureID: rb.featureID}
			if rb.yesID != 0 {
				yesTree, ok := resolved[rb.yesID]
				if !ok {
					return nil, newModelError(ErrUnresolvedReference, fmt.Sprintf("yes tree id %d", rb.yesID))
				}
				branch.YesTree = yesTree
			}
			if rb.noID != 0 {
				noTree, ok := resolved[rb.noID]
				if !ok {
					return nil, newModelError(ErrUnresolvedReference, fmt.Sprintf("no tree id %d", rb.noID))
				}
				branch.NoTree = noTree
			}
			tree.Branches = append(tree.Branches, branch)
		}
	}

	return resolved[order[0]], nil
}

// LoadPredictor reads a model file (either a "dtree" or a "union"/
// "union-sum" file) and returns the corresponding Predictor.
func LoadPredictor(src io.Reader) (Predictor, error) {
	r := newLineReader(src)

	lineNo := 0
	if !r.Scan() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, newModelError(ErrInvalidModelType, "empty model file")
	}
	lineNo++
	head := strings.TrimSpace(r.Text())

	switch head {
	case dtreeModelHead:
		return loadDTreeNodes(r, &lineNo)
	case unionSumModelHead, unionSumModelHead2:
		if !r.Scan() {
			if err := r.Err(); err != nil {
				return nil, err
			}
			return nil, newModelError(nil, "union-sum file missing count line")
		}
		lineNo++
		count, err := strconv.Atoi(strings.TrimSpace(r.Text()))
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: "invalid union-sum member count"}
		}

		set := &PredictorSet{Predictors: make([]Predictor, 0, count)}
		for i := 0; i < count; i++ {
			if !r.Scan() {
				if err := r.Err(); err != nil {
					return nil, err
				}
				return nil, newModelError(nil, fmt.Sprintf("union-sum declared %d members, found %d", count, i))
			}
			lineNo++
			line := strings.TrimSpace(r.Text())
			if line != dtreeModelHead {
				return nil, newModelError(ErrInvalidModelType, "expected nested 'dtree' block, got: "+line)
			}
			t, err := loadDTreeNodes(r, &lineNo)
			if err != nil {
				return nil, err
			}
			set.Predictors = append(set.Predictors, t)
		}
		return set, nil
	default:
		return nil, newModelError(ErrInvalidModelType, "unrecognized header: "+head)
	}
}

// LoadDecisionTree reads a "dtree" model file and returns its single tree,
// failing if the file is actually a union.
func LoadDecisionTree(r io.Reader) (*DecisionTree, error) {
	p, err := LoadPredictor(r)
	if err != nil {
		return nil, err
	}
	t, ok := p.(*DecisionTree)
	if !ok {
		return nil, newModelError(ErrInvalidModelType, "model file is a union, not a single dtree")
	}
	return t, nil
}
