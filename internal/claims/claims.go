// Package claims manages the ownership claim and verification lifecycle for
// imported places: imported → claimed → verified or rejected, with
// cancellation back to imported allowed any time before verification.
package claims

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/model"
	"github.com/sells-group/places-cli/internal/store"
)

// Typed failures for claim operations. These are thrown to the caller
// rather than collected: a double-claim or illegal transition is a
// user-facing mistake that must not be silently absorbed.
var (
	ErrNotFound       = eris.New("claims: place not found")
	ErrAlreadyClaimed = eris.New("claims: place already claimed")
	ErrInvalidState   = eris.New("claims: invalid state transition")
)

// ClaimRequest carries the claim-submission payload.
type ClaimRequest struct {
	PlaceID       string `json:"place_id"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`
	Justification string `json:"justification"`
	OwnerRef      string `json:"owner_ref,omitempty"`
}

// ClaimReceipt acknowledges an accepted claim.
type ClaimReceipt struct {
	Accepted             bool   `json:"accepted"`
	ClaimID              string `json:"claim_id"`
	RequiresVerification bool   `json:"requires_verification"`
}

// Event is one entry in a record's reconstructed history.
type Event struct {
	Type      string    `json:"type"` // imported, claimed, verified, rejected
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Stats aggregates claim counts across the catalog.
type Stats struct {
	Claimed  int `json:"claimed"`
	Pending  int `json:"pending_verification"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
}

// Manager serializes claim lifecycle operations over the store. The mutex
// orders operations issued through this manager; the store's conditional
// status update backstops writers elsewhere.
type Manager struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time
}

// NewManager creates a claim lifecycle manager.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Claim transitions an unclaimed record to claimed. Records in any
// claimed-family state fail with ErrAlreadyClaimed; in particular there is
// no re-claim path out of rejected, rejection is a terminal adjudication.
func (m *Manager) Claim(ctx context.Context, req ClaimRequest) (*ClaimReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetByPlaceID(ctx, req.PlaceID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Wrapf(ErrNotFound, "place_id %s", req.PlaceID)
	}
	if p.Status != model.StatusImported {
		return nil, eris.Wrapf(ErrAlreadyClaimed, "place_id %s has status %s", req.PlaceID, p.Status)
	}

	now := m.now()
	p.Status = model.StatusClaimed
	p.OwnerRef = req.OwnerRef
	p.ClaimedAt = &now
	p.ClaimEmail = req.ContactEmail
	p.ClaimPhone = req.ContactPhone
	p.ClaimJustification = req.Justification

	if err := m.store.UpdateClaimState(ctx, p, model.StatusImported); err != nil {
		return nil, err
	}

	zap.L().Info("place claimed",
		zap.String("place_id", req.PlaceID),
		zap.String("owner_ref", req.OwnerRef),
	)

	return &ClaimReceipt{
		Accepted:             true,
		ClaimID:              uuid.NewString(),
		RequiresVerification: true,
	}, nil
}

// Verify resolves a pending claim to verified or rejected.
func (m *Manager) Verify(ctx context.Context, placeID string, outcome model.PlaceStatus, notes, verifierRef string) error {
	if outcome != model.StatusVerified && outcome != model.StatusRejected {
		return eris.Wrapf(ErrInvalidState, "outcome %s is not a verification result", outcome)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetByPlaceID(ctx, placeID)
	if err != nil {
		return err
	}
	if p == nil {
		return eris.Wrapf(ErrNotFound, "place_id %s", placeID)
	}
	if p.Status != model.StatusClaimed && p.Status != model.StatusPendingVerification {
		return eris.Wrapf(ErrInvalidState, "cannot verify place_id %s in status %s", placeID, p.Status)
	}

	prev := p.Status
	now := m.now()
	p.Status = outcome
	p.VerifiedAt = &now
	p.VerifierRef = verifierRef
	p.VerificationNotes = notes

	if err := m.store.UpdateClaimState(ctx, p, prev); err != nil {
		return err
	}

	zap.L().Info("claim adjudicated",
		zap.String("place_id", placeID),
		zap.String("outcome", string(outcome)),
		zap.String("verifier_ref", verifierRef),
	)
	return nil
}

// CancelClaim releases a claim held by ownerRef, resetting the record to
// imported. Verified records cannot be released.
func (m *Manager) CancelClaim(ctx context.Context, placeID, ownerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetByPlaceID(ctx, placeID)
	if err != nil {
		return err
	}
	if p == nil || !p.Claimed() || p.OwnerRef != ownerRef {
		return eris.Wrapf(ErrNotFound, "place_id %s not claimed by %s", placeID, ownerRef)
	}
	if p.Status == model.StatusVerified {
		return eris.Wrapf(ErrInvalidState, "cannot cancel verified claim on place_id %s", placeID)
	}

	prev := p.Status
	p.ClearClaim()

	if err := m.store.UpdateClaimState(ctx, p, prev); err != nil {
		return err
	}

	zap.L().Info("claim cancelled",
		zap.String("place_id", placeID),
		zap.String("owner_ref", ownerRef),
	)
	return nil
}

// History reconstructs the record's event list from its stored timestamps.
// Best-effort: there is no separate event log, so cancelled claims leave no
// trace and only the latest claim cycle is visible.
func (m *Manager) History(ctx context.Context, placeID string) ([]Event, error) {
	p, err := m.store.GetByPlaceID(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Wrapf(ErrNotFound, "place_id %s", placeID)
	}

	events := []Event{{Type: "imported", Timestamp: p.ImportedAt}}
	if p.ClaimedAt != nil {
		events = append(events, Event{
			Type:      "claimed",
			Timestamp: *p.ClaimedAt,
			Actor:     p.OwnerRef,
			Notes:     p.ClaimJustification,
		})
	}
	if p.VerifiedAt != nil {
		typ := "verified"
		if p.Status == model.StatusRejected {
			typ = "rejected"
		}
		events = append(events, Event{
			Type:      typ,
			Timestamp: *p.VerifiedAt,
			Actor:     p.VerifierRef,
			Notes:     p.VerificationNotes,
		})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events, nil
}

// CollectStats counts records per lifecycle state with filtered store scans.
func (m *Manager) CollectStats(ctx context.Context) (*Stats, error) {
	var s Stats
	counts := []struct {
		status model.PlaceStatus
		dst    *int
	}{
		{model.StatusClaimed, &s.Claimed},
		{model.StatusPendingVerification, &s.Pending},
		{model.StatusVerified, &s.Verified},
		{model.StatusRejected, &s.Rejected},
	}
	for _, c := range counts {
		n, err := m.store.CountPlaces(ctx, store.PlaceFilter{Status: c.status})
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return &s, nil
}
