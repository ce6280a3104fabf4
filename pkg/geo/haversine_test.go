package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	lyon := Point{Lat: 45.7640, Lng: 4.8357}

	// Paris–Lyon is about 392 km as the crow flies.
	d := DistanceMeters(paris, lyon)
	assert.InDelta(t, 392000, d, 5000)

	assert.Zero(t, DistanceMeters(paris, paris))
}

func TestWithinRadius(t *testing.T) {
	venue := Point{Lat: 45.5017, Lng: -73.5673}
	// ~111m north of the venue.
	nearby := Point{Lat: 45.5027, Lng: -73.5673}
	// ~10km away.
	farAway := Point{Lat: 45.5917, Lng: -73.5673}

	assert.True(t, WithinRadius(venue, nearby, 500))
	assert.False(t, WithinRadius(venue, farAway, 500))
	assert.True(t, WithinRadius(venue, venue, 0))
}
