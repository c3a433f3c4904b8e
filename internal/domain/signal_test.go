package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierStrong, TierFor(0.05))
	assert.Equal(t, TierStrong, TierFor(0.04))
	assert.Equal(t, TierMedium, TierFor(0.03))
	assert.Equal(t, TierSmall, TierFor(0.015))
	assert.Equal(t, TierProbe, TierFor(0.002))
	assert.Equal(t, TierNoTrade, TierFor(0))
}

func TestSignalSet_ExecutableExposure(t *testing.T) {
	set := SignalSet{
		Executable: []Signal{{Exposure: 0.03}, {Exposure: 0.02}},
		Outlook:    []Signal{{Exposure: 0.04}}, // no cuenta
	}
	assert.InDelta(t, 0.05, set.ExecutableExposure(), 1e-9)
	assert.Equal(t, 3, set.Total())
}

func TestEstimate_Valid(t *testing.T) {
	assert.True(t, Estimate{Probability: 0.5, Confidence: 70}.Valid())
	assert.False(t, Estimate{Probability: 0, Confidence: 70}.Valid())
	assert.False(t, Estimate{Probability: 1, Confidence: 70}.Valid())
	assert.False(t, Estimate{Probability: 0.5, Confidence: 120}.Valid())
}
