package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHaversineDistance(t *testing.T) {
	assert.InDelta(t, 0, CalculateHaversineDistance(-6.2, 106.8, -6.2, 106.8), 0.001)

	// one degree of latitude is roughly 111.19 km
	d := CalculateHaversineDistance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 50)
}

func TestWithinRadius(t *testing.T) {
	assert.True(t, WithinRadius(-6.2001, 106.8, -6.2, 106.8, 50))
	assert.False(t, WithinRadius(-6.21, 106.8, -6.2, 106.8, 50))
}
