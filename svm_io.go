package vanga

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadSVM reads an SVM-light-style dataset: one row per line as
// "<label> feature_id:value feature_id:value ...". label is "0" or "1",
// optionally followed by ",<pred>" to seed a nonzero starting logit
// (useful for resuming training); rows are grouped in LoadSVM by a linear
// scan over the exact (value, pred) pair, so most loads produce exactly
// two groups.
func LoadSVM(r io.Reader) (*SVM, error) {
	return LoadSVMLimit(r, 0)
}

// LoadSVMLimit is LoadSVM with a cap on the number of data rows read; blank
// lines don't count against the limit. limit <= 0 means unbounded.
func LoadSVMLimit(r io.Reader, limit int) (*SVM, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	svm := NewSVM()
	lineNo := 0
	rowsRead := 0

	for scanner.Scan() {
		lineNo++
		if limit > 0 && rowsRead >= limit {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		label, err := parseSVMLabel(fields[0])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}

		features := make([]Feature, 0, len(fields)-1)
		for _, tok := range fields[1:] {
			idStr, valStr, found := strings.Cut(tok, ":")
			if !found {
				return nil, &ParseError{Line: lineNo, Reason: "malformed feature token: " + tok}
			}

			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: "invalid feature id: " + idStr}
			}

			val, err := strconv.ParseUint(valStr, 10, 32)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: "invalid feature value: " + valStr}
			}

			features = append(features, Feature{ID: uint32(id), Value: uint32(val)})
		}

		svm.AddRow(NewRow(features), label)
		rowsRead++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return svm, nil
}

func parseSVMLabel(tok string) (BinaryLabel, error) {
	valuePart, predPart, hasPred := strings.Cut(tok, ",")

	var value bool
	switch valuePart {
	case "1":
		value = true
	case "0":
		value = false
	default:
		return BinaryLabel{}, fmt.Errorf("invalid label value: %q", valuePart)
	}

	pred := 0.0
	if hasPred {
		p, err := strconv.ParseFloat(predPart, 64)
		if err != nil {
			return BinaryLabel{}, fmt.Errorf("invalid label pred: %q", predPart)
		}
		pred = p
	}

	return BinaryLabel{Value: value, Pred: pred}, nil
}

// SaveSVM writes svm back out in the LoadSVM format. pred is always
// written (as ",0" when zero) so round-tripping is exact.
func SaveSVM(w io.Writer, svm *SVM) error {
	bw := bufio.NewWriter(w)

	for _, g := range svm.Groups {
		labelTok := "0"
		if g.Label.Value {
			labelTok = "1"
		}
		labelTok = fmt.Sprintf("%s,%v", labelTok, g.Label.Pred)

		for _, row := range g.Rows {
			if _, err := bw.WriteString(labelTok); err != nil {
				return err
			}
			for _, f := range row.Features() {
				if _, err := fmt.Fprintf(bw, " %d:%d", f.ID, f.Value); err != nil {
					return err
				}
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}
