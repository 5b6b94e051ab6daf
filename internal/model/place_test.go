package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func validPlace() ImportedPlace {
	return ImportedPlace{
		ID:         "internal-1",
		PlaceID:    "ChIJabc123",
		Name:       "Chez Ambroise",
		Address:    "Rue des Jardins, Abidjan",
		Latitude:   f64(5.3364),
		Longitude:  f64(-4.0267),
		Source:     SourceProvider,
		Status:     StatusImported,
		ImportedAt: time.Now().UTC(),
	}
}

func TestValidate_OK(t *testing.T) {
	p := validPlace()
	require.NoError(t, p.Validate())
}

func TestValidate_Errors(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name   string
		mutate func(*ImportedPlace)
	}{
		{"missing place_id", func(p *ImportedPlace) { p.PlaceID = "" }},
		{"missing name", func(p *ImportedPlace) { p.Name = "" }},
		{"latitude too large", func(p *ImportedPlace) { p.Latitude = f64(90.5) }},
		{"latitude too small", func(p *ImportedPlace) { p.Latitude = f64(-91) }},
		{"longitude out of range", func(p *ImportedPlace) { p.Longitude = f64(181) }},
		{"rating out of range", func(p *ImportedPlace) { p.Rating = f64(5.5) }},
		{"claimed without claim fields", func(p *ImportedPlace) { p.Status = StatusClaimed }},
		{"imported with claim fields", func(p *ImportedPlace) { p.ClaimedAt = &now }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlace()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestClaimed(t *testing.T) {
	p := validPlace()
	assert.False(t, p.Claimed())

	now := time.Now().UTC()
	for _, st := range []PlaceStatus{StatusClaimed, StatusPendingVerification, StatusVerified, StatusRejected} {
		p.Status = st
		p.ClaimedAt = &now
		assert.True(t, p.Claimed(), string(st))
	}
}

func TestClearClaim(t *testing.T) {
	now := time.Now().UTC()
	p := validPlace()
	p.Status = StatusClaimed
	p.OwnerRef = "owner-1"
	p.ClaimedAt = &now
	p.ClaimEmail = "owner@example.com"
	p.ClaimJustification = "I run this restaurant"

	p.ClearClaim()

	assert.Equal(t, StatusImported, p.Status)
	assert.Empty(t, p.OwnerRef)
	assert.Nil(t, p.ClaimedAt)
	assert.Empty(t, p.ClaimEmail)
	require.NoError(t, p.Validate())
}
