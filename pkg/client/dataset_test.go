package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDatasetShape(t *testing.T) {
	ds := GenerateDataset(200, 5, 42, 0.12)
	require.Len(t, ds.X, 200)
	require.Len(t, ds.Y, 200)
	for _, row := range ds.X {
		assert.Len(t, row, 5)
	}
}

func TestGenerateDatasetDeterministicWithSeed(t *testing.T) {
	a := GenerateDataset(50, 3, 7, 0.12)
	b := GenerateDataset(50, 3, 7, 0.12)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Y, b.Y)
}

func TestGenerateDatasetDifferentSeedsDiffer(t *testing.T) {
	a := GenerateDataset(50, 3, 1, 0.12)
	b := GenerateDataset(50, 3, 2, 0.12)
	assert.NotEqual(t, a.X, b.X)
}

func TestGenerateDatasetHasBothLabels(t *testing.T) {
	ds := GenerateDataset(500, 4, 99, 0.12)
	seenZero, seenOne := false, false
	for _, y := range ds.Y {
		if y == 0 {
			seenZero = true
		} else {
			seenOne = true
		}
	}
	assert.True(t, seenZero)
	assert.True(t, seenOne)
}
