package client

import (
	"math"
	"math/rand"
)

// Dataset is a synthetic local training set: n rows of features by
// featureCount columns, with binary labels.
type Dataset struct {
	X [][]float64
	Y []int
}

// GenerateDataset builds a synthetic logistic-regression dataset, grounded
// on the original client dataset generator (client/data.py): gaussian
// features, a random gaussian weight vector used only to bias label
// prevalence, then outlier injection on roughly 2% of rows so no client's
// data is perfectly separable.
func GenerateDataset(n, featureCount int, seed int64, prevalence float64) Dataset {
	rng := rand.New(rand.NewSource(seed))

	x := make([][]float64, n)
	for i := range x {
		row := make([]float64, featureCount)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
	}

	weight := make([]float64, featureCount)
	for j := range weight {
		weight[j] = rng.NormFloat64() * 0.7
	}

	y := make([]int, n)
	for i := range x {
		logValue := dot(x[i], weight)
		p := prevalence * sigmoid(logValue)
		if rng.Float64() < p {
			y[i] = 1
		}
	}

	outliers := int(float64(n) * 0.02)
	for k := 0; k < outliers; k++ {
		row := rng.Intn(n)
		col := rng.Intn(featureCount)
		x[row][col] += 3 + rng.Float64()*3
		y[row] = 1
	}

	return Dataset{X: x, Y: y}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
