package payload

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotInfo is a history row without its payload.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	AsOf      string    `json:"asOf"`
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Checksum  string    `json:"checksum"`
	FetchedAt time.Time `json:"fetchedAt"`
	NAssets   int       `json:"nAssets"`
}

// Repository stores payload snapshots in the history database.
// Payloads are msgpack-encoded using their json field names.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "payload_snapshots").Logger(),
	}
}

// Save stores s. A payload whose checksum is already stored is ignored.
func (r *Repository) Save(s *Snapshot) error {
	blob, err := encodePayload(s.Payload)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
		INSERT INTO payload_snapshots (id, as_of, version, source, checksum, fetched_at, n_assets, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(checksum) DO NOTHING
	`, s.ID, s.Payload.AsOf, s.Payload.Version, s.Source, s.Checksum,
		s.FetchedAt.Unix(), len(s.Payload.Universe), blob)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		r.log.Debug().Str("checksum", s.Checksum).Msg("Snapshot already stored")
	}
	return nil
}

// Latest returns the most recently fetched snapshot, or ErrSnapshotNotFound.
func (r *Repository) Latest() (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, source, checksum, fetched_at, payload
		FROM payload_snapshots
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT 1
	`)
	return r.scanSnapshot(row)
}

// Get returns the snapshot with the given ID.
func (r *Repository) Get(id string) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT id, source, checksum, fetched_at, payload
		FROM payload_snapshots
		WHERE id = ?
	`, id)
	return r.scanSnapshot(row)
}

// List returns up to limit history rows, newest first.
func (r *Repository) List(limit int) ([]SnapshotInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, as_of, version, source, checksum, fetched_at, n_assets
		FROM payload_snapshots
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	infos := make([]SnapshotInfo, 0)
	for rows.Next() {
		var info SnapshotInfo
		var fetchedAt int64
		if err := rows.Scan(&info.ID, &info.AsOf, &info.Version, &info.Source,
			&info.Checksum, &fetchedAt, &info.NAssets); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return infos, nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (r *Repository) Prune(keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	res, err := r.db.Exec(`
		DELETE FROM payload_snapshots
		WHERE id NOT IN (
			SELECT id FROM payload_snapshots
			ORDER BY fetched_at DESC, rowid DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Int("kept", keep).Msg("Pruned snapshot history")
	}
	return n, nil
}

func (r *Repository) scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		id, source, checksum string
		fetchedAt            int64
		blob                 []byte
	)
	if err := row.Scan(&id, &source, &checksum, &fetchedAt, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	p, err := decodePayload(blob)
	if err != nil {
		return nil, err
	}

	snap, err := NewSnapshot(p, source, time.Unix(fetchedAt, 0).UTC())
	if err != nil {
		return nil, err
	}
	snap.ID = id
	snap.Checksum = checksum
	return snap, nil
}

func encodePayload(p *domain.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(b []byte) (*domain.Payload, error) {
	var p domain.Payload
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &p, nil
}
