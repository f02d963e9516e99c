// Command vanga trains, evaluates and inspects decision-tree ensemble
// models over sparse binary feature datasets.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	vanga "github.com/yoori/vanga-sub000"
)

var (
	positiveColor = color.New(color.FgGreen)
	negativeColor = color.New(color.FgRed)
)

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vanga",
		Short: "Train and evaluate additive decision-tree ensembles",
	}
	root.AddCommand(newTrainCmd())
	root.AddCommand(newPredictCmd())
	root.AddCommand(newShowCmd())
	return root
}

func newTrainCmd() *cobra.Command {
	var (
		dataPath    string
		outPath     string
		rounds      int
		maxAddDepth int
		checkDepth  int
		alpha       float64
		growAfter   float64
		top3Random  bool
		concurrency int
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Grow an additive ensemble against a labeled dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			svm, err := vanga.LoadSVMFile(dataPath)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			strategy := vanga.SelectBestGain
			if top3Random {
				strategy = vanga.SelectTop3Random
			}

			cfg := vanga.TrainConfig{
				MaxAddDepth: maxAddDepth,
				CheckDepth:  checkDepth,
				Alpha:       alpha,
				GrowAfter:   growAfter,
				Strategy:    strategy,
				Rand:        rand.New(rand.NewSource(1)),
			}

			set, err := vanga.Train(svm, cfg, rounds, concurrency, newLogger(verbose))
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			if err := vanga.SavePredictorFile(set, outPath); err != nil {
				return fmt.Errorf("save model: %w", err)
			}

			fmt.Printf("wrote %d trees to %s\n", len(set.Predictors), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the SVM-light-style training dataset (required)")
	cmd.Flags().StringVar(&outPath, "out", "model.txt", "path to write the trained model")
	cmd.Flags().IntVar(&rounds, "rounds", 10, "number of additive trees to grow")
	cmd.Flags().IntVar(&maxAddDepth, "max-depth", 3, "maximum branch depth per tree")
	cmd.Flags().IntVar(&checkDepth, "check-depth", 0, "look-ahead depth used to confirm a candidate split")
	cmd.Flags().Float64Var(&alpha, "alpha", 1.0, "weight applied to the growth-penalty term in the fused objective")
	cmd.Flags().Float64Var(&growAfter, "grow-after", 4.0, "regularizer radius past which delta vectors are penalized")
	cmd.Flags().BoolVar(&top3Random, "top3-random", false, "pick each split randomly among the top 3 candidates instead of the best one")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max goroutines for sibling subtree growth (0 = sequential)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log split and round progress")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newPredictCmd() *cobra.Command {
	var (
		modelPath   string
		dataPath    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a dataset with a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			predictor, err := vanga.LoadPredictorFile(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			svm, err := vanga.LoadSVMFile(dataPath)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			set, ok := predictor.(*vanga.PredictorSet)
			if !ok {
				set = &vanga.PredictorSet{Predictors: []vanga.Predictor{predictor}}
			}

			entries := svm.Rows()
			rows := make([]*vanga.Row, len(entries))
			for i, entry := range entries {
				rows[i] = entry.Row
			}

			for _, score := range set.PredictBatch(rows, concurrency) {
				fmt.Println(score)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "path to a trained model file (required)")
	cmd.Flags().StringVar(&dataPath, "data", "", "path to the dataset to score (required)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count for batch prediction (0 = NumCPU)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newShowCmd() *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Pretty-print a model's tree structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			predictor, err := vanga.LoadPredictorFile(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			switch p := predictor.(type) {
			case *vanga.DecisionTree:
				printTree(p)
			case *vanga.PredictorSet:
				for i, member := range p.Predictors {
					t, ok := member.(*vanga.DecisionTree)
					if !ok {
						continue
					}
					fmt.Printf("--- tree %d ---\n", i)
					printTree(t)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "path to a trained model file (required)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

// printTree writes t via DecisionTree.PrettyPrint, colorizing each node
// line green when its delta raised the prediction, red when it lowered it.
func printTree(t *vanga.DecisionTree) {
	var buf fmtBuffer
	t.PrettyPrint(&buf, "", nil, 0)
	for _, line := range buf.lines {
		if delta := deltaSign(line); delta > 0 {
			positiveColor.Println(line)
		} else if delta < 0 {
			negativeColor.Println(line)
		} else {
			fmt.Println(line)
		}
	}
}

// deltaSign returns +1/-1/0 by sniffing the leading "+"/"-" a PrettyPrint
// node line carries right after its "{id}: " prefix.
func deltaSign(line string) int {
	idx := indexByte(line, ':')
	if idx < 0 || idx+2 >= len(line) {
		return 0
	}
	switch line[idx+2] {
	case '+':
		return 1
	case '-':
		return -1
	default:
		return 0
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// fmtBuffer accumulates PrettyPrint's io.Writer output as whole lines so
// show can colorize line-by-line.
type fmtBuffer struct {
	lines []string
	cur   []byte
}

func (b *fmtBuffer) Write(p []byte) (int, error) {
	for _, c := range p {
		if c == '\n' {
			b.lines = append(b.lines, string(b.cur))
			b.cur = nil
			continue
		}
		b.cur = append(b.cur, c)
	}
	return len(p), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
