package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/places-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	id                  TEXT PRIMARY KEY,
	place_id            TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	address             TEXT NOT NULL DEFAULT '',
	latitude            REAL,
	longitude           REAL,
	phone               TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	types               TEXT NOT NULL DEFAULT '[]',
	categories          TEXT NOT NULL DEFAULT '[]',
	rating              REAL,
	rating_count        INTEGER NOT NULL DEFAULT 0,
	photo_refs          TEXT NOT NULL DEFAULT '[]',
	photo_urls          TEXT NOT NULL DEFAULT '[]',
	business_status     TEXT NOT NULL DEFAULT '',
	price_level         INTEGER,
	source              TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'imported',
	imported_at         DATETIME NOT NULL,
	last_checked_at     DATETIME,
	owner_ref           TEXT NOT NULL DEFAULT '',
	claimed_at          DATETIME,
	claim_email         TEXT NOT NULL DEFAULT '',
	claim_phone         TEXT NOT NULL DEFAULT '',
	claim_justification TEXT NOT NULL DEFAULT '',
	verified_at         DATETIME,
	verifier_ref        TEXT NOT NULL DEFAULT '',
	verification_notes  TEXT NOT NULL DEFAULT '',
	metadata            TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_places_status ON places(status);
CREATE INDEX IF NOT EXISTS idx_places_imported_at ON places(imported_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// placeColumns is the column list shared by every SELECT over places.
const placeColumns = `id, place_id, name, address, latitude, longitude, phone, website,
	types, categories, rating, rating_count, photo_refs, photo_urls,
	business_status, price_level, source, status, imported_at, last_checked_at,
	owner_ref, claimed_at, claim_email, claim_phone, claim_justification,
	verified_at, verifier_ref, verification_notes, metadata`

// UpsertPlace inserts the record, or refreshes the descriptive and reputation
// fields of an existing record with the same place_id. The existing record's
// id, source, status, imported_at, and claim fields are left untouched.
func (s *SQLiteStore) UpsertPlace(ctx context.Context, p *model.ImportedPlace) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM places WHERE place_id = ?`, p.PlaceID).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.ImportedAt.IsZero() {
			p.ImportedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO places (
				id, place_id, name, address, latitude, longitude, phone, website,
				types, categories, rating, rating_count, photo_refs, photo_urls,
				business_status, price_level, source, status, imported_at,
				last_checked_at, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.PlaceID, p.Name, p.Address, ptrF(p.Latitude), ptrF(p.Longitude),
			p.Phone, p.Website, jsonStr(p.Types), jsonStr(p.Categories),
			ptrF(p.Rating), p.RatingCount, jsonStr(p.PhotoRefs), jsonStr(p.PhotoURLs),
			p.BusinessStatus, ptrI(p.PriceLevel), string(p.Source), string(p.Status),
			p.ImportedAt, ptrT(p.LastCheckedAt), jsonMap(p.Metadata),
		)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: insert place")
		}
		if err := tx.Commit(); err != nil {
			return false, eris.Wrap(err, "sqlite: commit insert")
		}
		return true, nil

	case err != nil:
		return false, eris.Wrap(err, "sqlite: lookup place")
	}

	p.ID = existingID
	_, err = tx.ExecContext(ctx, `
		UPDATE places SET
			name = ?, address = ?, latitude = ?, longitude = ?, phone = ?,
			website = ?, types = ?, categories = ?, rating = ?, rating_count = ?,
			photo_refs = ?, photo_urls = ?, business_status = ?, price_level = ?,
			last_checked_at = ?, metadata = ?
		WHERE place_id = ?`,
		p.Name, p.Address, ptrF(p.Latitude), ptrF(p.Longitude), p.Phone,
		p.Website, jsonStr(p.Types), jsonStr(p.Categories), ptrF(p.Rating),
		p.RatingCount, jsonStr(p.PhotoRefs), jsonStr(p.PhotoURLs),
		p.BusinessStatus, ptrI(p.PriceLevel), ptrT(p.LastCheckedAt),
		jsonMap(p.Metadata), p.PlaceID,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: update place")
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit update")
	}
	return false, nil
}

// GetByPlaceID returns the record for the external id, or nil when missing.
func (s *SQLiteStore) GetByPlaceID(ctx context.Context, placeID string) (*model.ImportedPlace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+placeColumns+` FROM places WHERE place_id = ?`, placeID)
	p, err := scanPlace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get place")
	}
	return p, nil
}

// UpdateClaimState writes the claim lifecycle fields conditional on status.
func (s *SQLiteStore) UpdateClaimState(ctx context.Context, p *model.ImportedPlace, expect model.PlaceStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE places SET
			status = ?, owner_ref = ?, claimed_at = ?, claim_email = ?,
			claim_phone = ?, claim_justification = ?, verified_at = ?,
			verifier_ref = ?, verification_notes = ?
		WHERE place_id = ? AND status = ?`,
		string(p.Status), p.OwnerRef, ptrT(p.ClaimedAt), p.ClaimEmail,
		p.ClaimPhone, p.ClaimJustification, ptrT(p.VerifiedAt),
		p.VerifierRef, p.VerificationNotes, p.PlaceID, string(expect),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update claim state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// CountPlaces counts records matching the filter.
func (s *SQLiteStore) CountPlaces(ctx context.Context, f PlaceFilter) (int, error) {
	query := `SELECT COUNT(*) FROM places WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(f.Source))
	}
	if f.ImportedAfter != nil {
		query += ` AND imported_at >= ?`
		args = append(args, *f.ImportedAfter)
	}
	if f.ImportedBefore != nil {
		query += ` AND imported_at < ?`
		args = append(args, *f.ImportedBefore)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count places")
	}
	return n, nil
}

// ListPlaces returns every record in the catalog.
func (s *SQLiteStore) ListPlaces(ctx context.Context) ([]model.ImportedPlace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+placeColumns+` FROM places ORDER BY imported_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ImportedPlace
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate places")
}

// DeleteUnclaimedBefore removes unclaimed records older than the cutoff.
func (s *SQLiteStore) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM places WHERE status = ? AND imported_at < ?`,
		string(model.StatusImported), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete unclaimed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanPlace.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlace(sc scanner) (*model.ImportedPlace, error) {
	var (
		p                              model.ImportedPlace
		lat, lng, rating               sql.NullFloat64
		priceLevel                     sql.NullInt64
		lastChecked, claimed, verified sql.NullTime
		types, cats, refs, urls, meta  string
		source, status                 string
	)

	err := sc.Scan(
		&p.ID, &p.PlaceID, &p.Name, &p.Address, &lat, &lng, &p.Phone, &p.Website,
		&types, &cats, &rating, &p.RatingCount, &refs, &urls,
		&p.BusinessStatus, &priceLevel, &source, &status, &p.ImportedAt, &lastChecked,
		&p.OwnerRef, &claimed, &p.ClaimEmail, &p.ClaimPhone, &p.ClaimJustification,
		&verified, &p.VerifierRef, &p.VerificationNotes, &meta,
	)
	if err != nil {
		return nil, err
	}

	p.Source = model.PlaceSource(source)
	p.Status = model.PlaceStatus(status)
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lng.Valid {
		p.Longitude = &lng.Float64
	}
	if rating.Valid {
		p.Rating = &rating.Float64
	}
	if priceLevel.Valid {
		v := int(priceLevel.Int64)
		p.PriceLevel = &v
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastCheckedAt = &t
	}
	if claimed.Valid {
		t := claimed.Time
		p.ClaimedAt = &t
	}
	if verified.Valid {
		t := verified.Time
		p.VerifiedAt = &t
	}
	cols := []struct {
		raw string
		dst any
	}{
		{types, &p.Types},
		{cats, &p.Categories},
		{refs, &p.PhotoRefs},
		{urls, &p.PhotoURLs},
		{meta, &p.Metadata},
	}
	for _, c := range cols {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func jsonStr(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonMap(v map[string]any) string {
	if v == nil {
		v = map[string]any{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func ptrF(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptrI(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func ptrT(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
