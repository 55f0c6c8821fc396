package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var toronto = orb.Point{-79.38, 43.65}

func TestBuffer_KilometersUniformRadius(t *testing.T) {
	for _, r := range []float64{0.1, 1, 5} {
		poly, err := Buffer(toronto, r, Kilometers, DefaultSteps)
		require.NoError(t, err)
		require.Len(t, poly, 1)

		ring := poly[0]
		assert.True(t, ring.Closed(), "ring must be closed")
		assert.Len(t, ring, DefaultSteps+1)

		for _, v := range ring {
			d := orbgeo.DistanceHaversine(toronto, v) / 1000
			assert.InDelta(t, r, d, r*1e-3, "vertex %v off radius %v", v, r)
		}
		assert.True(t, Contains(poly, toronto))
	}
}

func TestBuffer_DegreesUniformRadius(t *testing.T) {
	for _, r := range []float64{0.1, 1, 5} {
		poly, err := Buffer(toronto, r, Degrees, 32)
		require.NoError(t, err)
		ring := poly[0]
		assert.True(t, ring.Closed())
		for _, v := range ring {
			assert.InDelta(t, r, planar.Distance(toronto, v), 1e-9)
		}
	}
}

func TestBuffer_ExteriorRingIsCounterClockwise(t *testing.T) {
	poly, err := Buffer(toronto, 1, Kilometers, 16)
	require.NoError(t, err)
	assert.Equal(t, orb.CCW, poly[0].Orientation())
}

func TestBuffer_RejectsNonPositiveRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Buffer(toronto, r, Kilometers, 16)
		assert.Error(t, err, "radius %v", r)
	}
}

func TestWithin_KeepsInputOrder(t *testing.T) {
	poly, err := Buffer(toronto, 0.5, Kilometers, DefaultSteps)
	require.NoError(t, err)

	pts := []orb.Point{
		{10, 10},
		{-79.381, 43.651},
		{-79.38, 43.65},
		{-79.5, 43.65},
	}
	assert.Equal(t, []int{1, 2}, Within(poly, pts))
	assert.Empty(t, Within(nil, pts))
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("KM")
	require.NoError(t, err)
	assert.Equal(t, Kilometers, u)

	u, err = ParseUnit("degrees")
	require.NoError(t, err)
	assert.Equal(t, Degrees, u)

	_, err = ParseUnit("furlongs")
	assert.Error(t, err)
}
