package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/places-cli/internal/db"
	"github.com/sells-group/places-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Besides the plain lat/lng
// columns it maintains a PostGIS point column so proximity queries can run
// in SQL.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS places (
	id                  TEXT PRIMARY KEY,
	place_id            TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	address             TEXT NOT NULL DEFAULT '',
	latitude            DOUBLE PRECISION,
	longitude           DOUBLE PRECISION,
	phone               TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	types               JSONB NOT NULL DEFAULT '[]',
	categories          JSONB NOT NULL DEFAULT '[]',
	rating              DOUBLE PRECISION,
	rating_count        INTEGER NOT NULL DEFAULT 0,
	photo_refs          JSONB NOT NULL DEFAULT '[]',
	photo_urls          JSONB NOT NULL DEFAULT '[]',
	business_status     TEXT NOT NULL DEFAULT '',
	price_level         INTEGER,
	source              TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'imported',
	imported_at         TIMESTAMPTZ NOT NULL,
	last_checked_at     TIMESTAMPTZ,
	owner_ref           TEXT NOT NULL DEFAULT '',
	claimed_at          TIMESTAMPTZ,
	claim_email         TEXT NOT NULL DEFAULT '',
	claim_phone         TEXT NOT NULL DEFAULT '',
	claim_justification TEXT NOT NULL DEFAULT '',
	verified_at         TIMESTAMPTZ,
	verifier_ref        TEXT NOT NULL DEFAULT '',
	verification_notes  TEXT NOT NULL DEFAULT '',
	metadata            JSONB NOT NULL DEFAULT '{}',
	geom                geometry(Point, 4326)
);

CREATE INDEX IF NOT EXISTS idx_places_status ON places(status);
CREATE INDEX IF NOT EXISTS idx_places_imported_at ON places(imported_at);
CREATE INDEX IF NOT EXISTS idx_places_geom ON places USING GIST(geom);
`

// Migrate creates the schema. Requires PostGIS.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pointEWKB encodes the record's coordinates as an EWKB point with SRID 4326,
// or nil when the record has no geometry.
func pointEWKB(p *model.ImportedPlace) ([]byte, error) {
	if !p.HasCoordinates() {
		return nil, nil
	}
	g := geom.NewPointFlat(geom.XY, []float64{*p.Longitude, *p.Latitude}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}

// UpsertPlace inserts or refreshes the record, keyed by place_id. Identity,
// provenance, and claim fields of an existing row are preserved.
func (s *PostgresStore) UpsertPlace(ctx context.Context, p *model.ImportedPlace) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ImportedAt.IsZero() {
		p.ImportedAt = time.Now().UTC()
	}

	point, err := pointEWKB(p)
	if err != nil {
		return false, err
	}

	var (
		id       string
		inserted bool
	)
	err = s.pool.QueryRow(ctx, `
		INSERT INTO places (
			id, place_id, name, address, latitude, longitude, phone, website,
			types, categories, rating, rating_count, photo_refs, photo_urls,
			business_status, price_level, source, status, imported_at,
			last_checked_at, metadata, geom
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, ST_GeomFromEWKB($22)
		)
		ON CONFLICT (place_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			types = EXCLUDED.types,
			categories = EXCLUDED.categories,
			rating = EXCLUDED.rating,
			rating_count = EXCLUDED.rating_count,
			photo_refs = EXCLUDED.photo_refs,
			photo_urls = EXCLUDED.photo_urls,
			business_status = EXCLUDED.business_status,
			price_level = EXCLUDED.price_level,
			last_checked_at = EXCLUDED.last_checked_at,
			metadata = EXCLUDED.metadata,
			geom = EXCLUDED.geom
		RETURNING id, (xmax = 0) AS inserted`,
		p.ID, p.PlaceID, p.Name, p.Address, ptrF(p.Latitude), ptrF(p.Longitude),
		p.Phone, p.Website, jsonStr(p.Types), jsonStr(p.Categories),
		ptrF(p.Rating), p.RatingCount, jsonStr(p.PhotoRefs), jsonStr(p.PhotoURLs),
		p.BusinessStatus, ptrI(p.PriceLevel), string(p.Source), string(p.Status),
		p.ImportedAt, ptrT(p.LastCheckedAt), jsonMap(p.Metadata), point,
	).Scan(&id, &inserted)
	if err != nil {
		return false, eris.Wrap(err, "postgres: upsert place")
	}
	p.ID = id
	return inserted, nil
}

// GetByPlaceID returns the record for the external id, or nil when missing.
func (s *PostgresStore) GetByPlaceID(ctx context.Context, placeID string) (*model.ImportedPlace, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgPlaceColumns+` FROM places WHERE place_id = $1`, placeID)
	p, err := scanPGPlace(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get place")
	}
	return p, nil
}

// UpdateClaimState writes the claim lifecycle fields conditional on status.
func (s *PostgresStore) UpdateClaimState(ctx context.Context, p *model.ImportedPlace, expect model.PlaceStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE places SET
			status = $1, owner_ref = $2, claimed_at = $3, claim_email = $4,
			claim_phone = $5, claim_justification = $6, verified_at = $7,
			verifier_ref = $8, verification_notes = $9
		WHERE place_id = $10 AND status = $11`,
		string(p.Status), p.OwnerRef, ptrT(p.ClaimedAt), p.ClaimEmail,
		p.ClaimPhone, p.ClaimJustification, ptrT(p.VerifiedAt),
		p.VerifierRef, p.VerificationNotes, p.PlaceID, string(expect),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update claim state")
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// CountPlaces counts records matching the filter.
func (s *PostgresStore) CountPlaces(ctx context.Context, f PlaceFilter) (int, error) {
	query := `SELECT COUNT(*) FROM places WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	}
	if f.Source != "" {
		query += ` AND source = ` + arg(string(f.Source))
	}
	if f.ImportedAfter != nil {
		query += ` AND imported_at >= ` + arg(*f.ImportedAfter)
	}
	if f.ImportedBefore != nil {
		query += ` AND imported_at < ` + arg(*f.ImportedBefore)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count places")
	}
	return n, nil
}

// ListPlaces returns every record in the catalog.
func (s *PostgresStore) ListPlaces(ctx context.Context) ([]model.ImportedPlace, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgPlaceColumns+` FROM places ORDER BY imported_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places")
	}
	defer rows.Close()

	var out []model.ImportedPlace
	for rows.Next() {
		p, err := scanPGPlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate places")
}

// DeleteUnclaimedBefore removes unclaimed records older than the cutoff.
func (s *PostgresStore) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM places WHERE status = $1 AND imported_at < $2`,
		string(model.StatusImported), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete unclaimed")
	}
	return tag.RowsAffected(), nil
}

const pgPlaceColumns = `id, place_id, name, address, latitude, longitude, phone, website,
	types, categories, rating, rating_count, photo_refs, photo_urls,
	business_status, price_level, source, status, imported_at, last_checked_at,
	owner_ref, claimed_at, claim_email, claim_phone, claim_justification,
	verified_at, verifier_ref, verification_notes, metadata`

func scanPGPlace(sc scanner) (*model.ImportedPlace, error) {
	var (
		p                              model.ImportedPlace
		lat, lng, rating               *float64
		priceLevel                     *int
		lastChecked, claimed, verified *time.Time
		types, cats, refs, urls, meta  []byte
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
	p.Latitude = lat
	p.Longitude = lng
	p.Rating = rating
	p.PriceLevel = priceLevel
	p.LastCheckedAt = lastChecked
	p.ClaimedAt = claimed
	p.VerifiedAt = verified

	cols := []struct {
		raw []byte
		dst any
	}{
		{types, &p.Types},
		{cats, &p.Categories},
		{refs, &p.PhotoRefs},
		{urls, &p.PhotoURLs},
		{meta, &p.Metadata},
	}
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

