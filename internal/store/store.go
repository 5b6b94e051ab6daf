package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/places-cli/internal/model"
)

// ErrConcurrentUpdate is returned by conditional updates when the record's
// status no longer matches the expected value, i.e. another writer got there
// first.
var ErrConcurrentUpdate = eris.New("store: status precondition failed")

// PlaceFilter specifies criteria for counting places.
type PlaceFilter struct {
	Status         model.PlaceStatus `json:"status,omitempty"`
	Source         model.PlaceSource `json:"source,omitempty"`
	ImportedAfter  *time.Time        `json:"imported_after,omitempty"`
	ImportedBefore *time.Time        `json:"imported_before,omitempty"`
}

// Store defines the persistence interface for the places pipeline.
type Store interface {
	// UpsertPlace inserts the record or, when a record with the same
	// place_id exists, refreshes its descriptive and reputation fields in a
	// single atomic statement. Identity, provenance, and claim fields of an
	// existing record are preserved. Returns true when a new record was
	// created.
	UpsertPlace(ctx context.Context, p *model.ImportedPlace) (bool, error)

	// GetByPlaceID returns the record for the external id, or nil when the
	// id is unknown.
	GetByPlaceID(ctx context.Context, placeID string) (*model.ImportedPlace, error)

	// UpdateClaimState writes the status plus claim and verification fields,
	// conditional on the record still having the expected status. Returns
	// ErrConcurrentUpdate when the precondition fails.
	UpdateClaimState(ctx context.Context, p *model.ImportedPlace, expect model.PlaceStatus) error

	// CountPlaces counts records matching the filter.
	CountPlaces(ctx context.Context, f PlaceFilter) (int, error)

	// ListPlaces returns all records. Full scan; used by dedupe and cleanup.
	ListPlaces(ctx context.Context) ([]model.ImportedPlace, error)

	// DeleteUnclaimedBefore removes records still in the imported status
	// whose import timestamp is older than the cutoff. Returns the number
	// of deleted rows.
	DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
