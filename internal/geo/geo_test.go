package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verilink/pkg/domain"
)

func TestDistance(t *testing.T) {
	bangalore := Coordinates{Lat: 12.9716, Lon: 77.5946}

	t.Run("zero for identical points", func(t *testing.T) {
		assert.Zero(t, Distance(bangalore, bangalore))
	})

	t.Run("symmetric", func(t *testing.T) {
		other := Coordinates{Lat: 12.9770, Lon: 77.6033}
		assert.InDelta(t, Distance(bangalore, other), Distance(other, bangalore), 0.0001)
	})

	t.Run("roughly 600m for a 0.0054 degree latitude shift", func(t *testing.T) {
		other := Coordinates{Lat: 12.9770, Lon: 77.5946}
		d := Distance(bangalore, other)
		assert.InDelta(t, 600, d, 10)
	})

	t.Run("known city pair", func(t *testing.T) {
		mumbai := Coordinates{Lat: 19.0760, Lon: 72.8777}
		d := Distance(bangalore, mumbai)
		// Bangalore to Mumbai is about 840km as the crow flies.
		assert.InDelta(t, 840_000, d, 15_000)
	})
}

func TestValidate(t *testing.T) {
	property := &Coordinates{Lat: 12.9716, Lon: 77.5946}

	t.Run("within tolerance", func(t *testing.T) {
		captured := &Coordinates{Lat: 12.97205, Lon: 77.5946} // ~50m north
		result := Validate(captured, property, DefaultToleranceMeters)
		assert.True(t, result.IsValid)
		assert.True(t, result.WithinTolerance)
		require.NotNil(t, result.DistanceMeters)
		assert.InDelta(t, 50, *result.DistanceMeters, 5)
	})

	t.Run("outside tolerance", func(t *testing.T) {
		captured := &Coordinates{Lat: 12.9770, Lon: 77.5946} // ~600m north
		result := Validate(captured, property, DefaultToleranceMeters)
		assert.True(t, result.IsValid)
		assert.False(t, result.WithinTolerance)
		require.NotNil(t, result.DistanceMeters)
		assert.Greater(t, *result.DistanceMeters, DefaultToleranceMeters)
		assert.NotEmpty(t, result.Message)
	})

	t.Run("exactly on the property", func(t *testing.T) {
		result := Validate(property, property, DefaultToleranceMeters)
		assert.True(t, result.WithinTolerance)
	})

	t.Run("missing capture location is a hard failure", func(t *testing.T) {
		result := Validate(nil, property, DefaultToleranceMeters)
		assert.False(t, result.IsValid)
		assert.False(t, result.WithinTolerance)
		assert.Nil(t, result.DistanceMeters)
	})

	t.Run("no expected location skips the check", func(t *testing.T) {
		captured := &Coordinates{Lat: 51.5074, Lon: -0.1278}
		result := Validate(captured, nil, DefaultToleranceMeters)
		assert.True(t, result.IsValid)
		assert.True(t, result.WithinTolerance)
	})
}

func TestRequired(t *testing.T) {
	assert.True(t, Required(id.PolicyTypeHomeInsurance))
	assert.False(t, Required(id.PolicyTypeAutoInsurance))
	assert.False(t, Required(id.PolicyTypeCreditCard))
}
