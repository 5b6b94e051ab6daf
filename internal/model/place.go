package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// PlaceStatus represents where an imported place sits in the claim lifecycle.
type PlaceStatus string

const (
	StatusImported            PlaceStatus = "imported"
	StatusClaimed             PlaceStatus = "claimed"
	StatusPendingVerification PlaceStatus = "pending_verification"
	StatusVerified            PlaceStatus = "verified"
	StatusRejected            PlaceStatus = "rejected"
)

// PlaceSource describes how a record entered the catalog.
type PlaceSource string

const (
	SourceProvider PlaceSource = "provider"
	SourceManual   PlaceSource = "manual"
	SourceImported PlaceSource = "imported"
)

// ImportedPlace is the canonical record for a point of interest pulled from
// the external places provider. PlaceID is the provider-assigned id and the
// natural key for upserts; ID is our own.
type ImportedPlace struct {
	ID      string `json:"id"`
	PlaceID string `json:"place_id"`

	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	// Nullable: the provider omits geometry for some records.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Website   string   `json:"website,omitempty"`

	Types      []string `json:"types,omitempty"`
	Categories []string `json:"categories,omitempty"`

	Rating      *float64 `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`

	PhotoRefs []string `json:"photo_refs,omitempty"`
	PhotoURLs []string `json:"photo_urls,omitempty"`

	BusinessStatus string `json:"business_status,omitempty"`
	PriceLevel     *int   `json:"price_level,omitempty"`

	Source        PlaceSource `json:"source"`
	Status        PlaceStatus `json:"status"`
	ImportedAt    time.Time   `json:"imported_at"`
	LastCheckedAt *time.Time  `json:"last_checked_at,omitempty"`

	// Populated only while the record is in the claimed family of states.
	OwnerRef           string     `json:"owner_ref,omitempty"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	ClaimEmail         string     `json:"claim_email,omitempty"`
	ClaimPhone         string     `json:"claim_phone,omitempty"`
	ClaimJustification string     `json:"claim_justification,omitempty"`

	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifierRef       string     `json:"verifier_ref,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Claimed reports whether the record is in any claimed-family state.
func (p *ImportedPlace) Claimed() bool {
	switch p.Status {
	case StatusClaimed, StatusPendingVerification, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// HasCoordinates reports whether both latitude and longitude are set.
func (p *ImportedPlace) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Validate checks the structural invariants on the record.
func (p *ImportedPlace) Validate() error {
	if p.PlaceID == "" {
		return eris.New("model: place_id is required")
	}
	if p.Name == "" {
		return eris.New("model: name is required")
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return eris.Errorf("model: latitude %f out of range", *p.Latitude)
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return eris.Errorf("model: longitude %f out of range", *p.Longitude)
	}
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		return eris.Errorf("model: rating %f out of range", *p.Rating)
	}
	if p.Claimed() && p.ClaimedAt == nil {
		return eris.Errorf("model: status %s requires claim fields", p.Status)
	}
	if !p.Claimed() && p.ClaimedAt != nil {
		return eris.Errorf("model: status %s must not carry claim fields", p.Status)
	}
	return nil
}

// ClearClaim resets the record to the unclaimed state, dropping all claim
// and verification fields. Used by claim cancellation.
func (p *ImportedPlace) ClearClaim() {
	p.Status = StatusImported
	p.OwnerRef = ""
	p.ClaimedAt = nil
	p.ClaimEmail = ""
	p.ClaimPhone = ""
	p.ClaimJustification = ""
	p.VerifiedAt = nil
	p.VerifierRef = ""
	p.VerificationNotes = ""
}
