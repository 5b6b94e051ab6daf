package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_KnownCities(t *testing.T) {
	tests := []struct {
		in         string
		wantName   string
		wantRegion string
	}{
		{"Abidjan", "Abidjan", "CI"},
		{"abidjan", "Abidjan", "CI"},
		{"BOUAKÉ", "Bouaké", "CI"},
		{"bouake", "Bouaké", "CI"},
		{"San-Pédro", "San-Pédro", "CI"},
		{"Grand Bassam", "Grand-Bassam", "CI"},
		{"  yamoussoukro  ", "Yamoussoukro", "CI"},
	}
	for _, tt := range tests {
		c := Resolve(tt.in)
		assert.Equal(t, tt.wantName, c.Name, tt.in)
		assert.Equal(t, tt.wantRegion, c.Region, tt.in)
	}
}

func TestResolve_UnknownFallsBackToDefault(t *testing.T) {
	c := Resolve("Atlantis")
	assert.Equal(t, DefaultCity.Name, c.Name)
	assert.Equal(t, "Abidjan", c.Name)
}

func TestHaversineMeters_ZeroDistance(t *testing.T) {
	d := HaversineMeters(5.3364, -4.0267, 5.3364, -4.0267)
	assert.InDelta(t, 0, d, 0.001)
}

func TestHaversineMeters_KnownDistance(t *testing.T) {
	// Abidjan to Yamoussoukro is roughly 212 km as the crow flies.
	d := HaversineMeters(5.3600, -4.0083, 6.8276, -5.2893)
	assert.InDelta(t, 212_000, d, 10_000)
}

func TestHaversineMeters_Symmetry(t *testing.T) {
	a := HaversineMeters(5.36, -4.0, 7.69, -5.03)
	b := HaversineMeters(7.69, -5.03, 5.36, -4.0)
	assert.InDelta(t, a, b, 0.0001)
}
