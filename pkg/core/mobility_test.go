package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictMobility(t *testing.T) {
	assert.InDelta(t, 1.10515, PredictMobility(1810.91734/2, 2), 1e-4)
	assert.InDelta(t, 0.93141, PredictMobility(626.8246, 2), 1e-4)
}

func TestPredictMobilityIncreasesWithMZ(t *testing.T) {
	prev := PredictMobility(400, 2)
	for mz := 450.0; mz <= 1000; mz += 50 {
		cur := PredictMobility(mz, 2)
		assert.Greater(t, cur, prev, "mz %.0f", mz)
		prev = cur
	}
}
