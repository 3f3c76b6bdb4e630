package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGeohashKnownCities(t *testing.T) {
	cases := []struct {
		name      string
		score     uint64
		latitude  float64
		longitude float64
	}{
		{"Bangkok", 3962257306574459, 13.722000686932997, 100.52520006895065},
		{"Beijing", 4069885364908765, 39.9075003315814, 116.39719873666763},
		{"London", 2163557714755072, 51.50740077990134, -0.12779921293258667},
		{"New York", 1791873974549446, 40.712798986951505, -74.00600105524063},
	}

	for _, c := range cases {
		got := DecodeGeohash(c.score)
		assert.InDelta(t, c.latitude, got.Latitude, 1e-6, c.name)
		assert.InDelta(t, c.longitude, got.Longitude, 1e-6, c.name)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	score := EncodeGeohash(-122.4194, 37.7749) // San Francisco
	got := DecodeGeohash(score)
	assert.InDelta(t, 37.7749, got.Latitude, 1e-5)
	assert.InDelta(t, -122.4194, got.Longitude, 1e-5)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Nashville to Los Angeles.
	origin := Coordinates{Latitude: 36.12, Longitude: -86.67}
	dest := Coordinates{Latitude: 33.94, Longitude: -118.4}
	d := Haversine(origin, dest)
	assert.InDelta(t, 2887258.85, d, 10.0)
}

func TestValidateGeoCoordinatesRejectsOutOfRange(t *testing.T) {
	assert.Error(t, ValidateGeoCoordinates(200, 0))
	assert.Error(t, ValidateGeoCoordinates(0, 95))
	assert.Error(t, ValidateGeoCoordinates(math.NaN(), 0))
	assert.NoError(t, ValidateGeoCoordinates(0, 0))
}

func TestGeoAddPosDist(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GeoAdd("geo", "sf", -122.4194, 37.7749)
	require.NoError(t, err)
	_, err = s.GeoAdd("geo", "nyc", -74.006, 40.7128)
	require.NoError(t, err)

	pos, ok, err := s.GeoPos("geo", "sf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 37.7749, pos.Latitude, 1e-4)

	dist, ok, err := s.GeoDist("geo", "sf", "nyc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, dist, 4_000_000.0)
	assert.Less(t, dist, 4_200_000.0)
}

func TestGeoSearchRadius(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GeoAdd("geo", "near", -122.42, 37.77)
	require.NoError(t, err)
	_, err = s.GeoAdd("geo", "far", -74.0, 40.71)
	require.NoError(t, err)

	results, err := s.GeoSearch("geo", -122.4194, 37.7749, 10000)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Member)
}
