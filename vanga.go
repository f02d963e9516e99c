package vanga

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// LoadSVMFile reads a dataset from the file at path in the format documented
// by LoadSVM.
func LoadSVMFile(path string) (*SVM, error) {
	return LoadSVMFileLimit(path, 0)
}

// LoadSVMFileLimit is LoadSVMFile with a cap on the number of rows read; see
// LoadSVMLimit.
func LoadSVMFileLimit(path string, limit int) (*SVM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSVMLimit(f, limit)
}

// SaveSVMFile writes svm to the file at path in the format documented by
// SaveSVM, creating or truncating it.
func SaveSVMFile(svm *SVM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return SaveSVM(f, svm)
}

// LoadPredictorFile reads a "dtree" or "union"/"union-sum" model file from
// path.
func LoadPredictorFile(path string) (Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPredictor(f)
}

// SavePredictorFile writes predictor to path as the matching model format:
// a *DecisionTree is written as "dtree", a *PredictorSet as "union-sum".
func SavePredictorFile(predictor Predictor, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch p := predictor.(type) {
	case *DecisionTree:
		return SaveDecisionTree(f, p)
	case *PredictorSet:
		return SavePredictorSet(f, p)
	default:
		return newModelError(ErrInvalidModelType, "unsupported predictor implementation")
	}
}

// Train grows an additive ensemble of rounds shallow decision trees against
// svm by repeated logistic-regression-on-sectors fitting (see TrainConfig),
// logging progress to logger if non-nil and fanning sibling-subtree growth
// out across maxConcurrency goroutines (0 = sequential).
func Train(svm *SVM, cfg TrainConfig, rounds int, maxConcurrency int, logger *logrus.Logger) (*PredictorSet, error) {
	var runner TaskRunner
	if maxConcurrency > 0 {
		runner = NewTaskRunner(context.Background(), maxConcurrency)
	}

	learner, err := NewLearner(cfg, runner, logger)
	if err != nil {
		return nil, err
	}

	return learner.TrainEnsemble(svm, rounds), nil
}
