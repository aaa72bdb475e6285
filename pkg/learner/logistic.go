// Package learner implements the pluggable local-training contract
// consumed by the client protocol loop: a logistic regression model with
// a bias term, trained by full-batch gradient descent.
package learner

import (
	"fmt"
	"math"
)

// Logistic is a local logistic regression model with an implicit bias
// column. Dim is always Features+1.
type Logistic struct {
	features int
	weights  []float64
}

// New creates a learner over the given number of features, with a zero
// weight vector of length features+1.
func New(features int) *Logistic {
	return &Logistic{
		features: features,
		weights:  make([]float64, features+1),
	}
}

// Dim returns the model's weight vector length, F+1.
func (l *Logistic) Dim() int {
	return l.features + 1
}

// Weights returns a copy of the current weight vector.
func (l *Logistic) Weights() []float64 {
	out := make([]float64, len(l.weights))
	copy(out, l.weights)
	return out
}

// SetWeights replaces the internal weight vector. It rejects vectors whose
// length does not match Dim().
func (l *Logistic) SetWeights(w []float64) error {
	if len(w) != l.Dim() {
		return fmt.Errorf("learner: weight length %d does not match dimension %d", len(w), l.Dim())
	}
	l.weights = append([]float64(nil), w...)
	return nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// addBias appends a constant 1 column to X, returning rows of length
// features+1.
func addBias(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		biased := make([]float64, len(row)+1)
		copy(biased, row)
		biased[len(row)] = 1
		out[i] = biased
	}
	return out
}

func dot(row, w []float64) float64 {
	var sum float64
	for i, v := range row {
		sum += v * w[i]
	}
	return sum
}

// Predict returns the 0/1 class for each row of X, thresholding the
// sigmoid of the biased linear combination at 0.5.
func (l *Logistic) Predict(x [][]float64) []int {
	biased := addBias(x)
	out := make([]int, len(biased))
	for i, row := range biased {
		p := sigmoid(dot(row, l.weights))
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

// Accuracy scores Predict(x) against y, the fraction of exact matches.
func (l *Logistic) Accuracy(x [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	preds := l.Predict(x)
	correct := 0
	for i, p := range preds {
		if p == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// UpdateLocal runs epochs full-batch gradient-descent steps on the
// logistic loss starting from the current weights w0, and returns
// delta = w_final - w0. The internal weights are left at w_final.
//
// gradient = (X_b^T . (sigmoid(X_b . w) - y)) / n
func (l *Logistic) UpdateLocal(x [][]float64, y []int, epochs int, lr float64) []float64 {
	w0 := l.Weights()
	biased := addBias(x)
	weight := append([]float64(nil), w0...)
	n := len(x)

	for e := 0; e < epochs; e++ {
		grad := make([]float64, l.Dim())
		for i, row := range biased {
			p := sigmoid(dot(row, weight))
			errTerm := p - float64(y[i])
			for j, v := range row {
				grad[j] += v * errTerm
			}
		}
		if n > 0 {
			for j := range grad {
				grad[j] /= float64(n)
			}
		}
		for j := range weight {
			weight[j] -= lr * grad[j]
		}
	}

	delta := make([]float64, l.Dim())
	for i := range weight {
		delta[i] = weight[i] - w0[i]
	}
	l.weights = weight
	return delta
}
