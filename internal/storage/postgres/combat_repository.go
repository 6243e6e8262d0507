package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/snapshot"
)

const (
	loadCombatSQL = `SELECT snapshot FROM combats WHERE id = $1`

	saveCombatSQL = `INSERT INTO combats (id, campaign_id, name, status, current_round, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			current_round = EXCLUDED.current_round,
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at`

	listCombatsSQL = `SELECT id, campaign_id, name, status, current_round, updated_at
		FROM combats WHERE campaign_id = $1 ORDER BY updated_at DESC, id`

	deleteCombatSQL = `DELETE FROM combats WHERE id = $1`
)

// CombatRepository stores combat snapshots in the combats table. The whole
// snapshot lives in a JSONB column; the remaining columns mirror it for
// listing.
type CombatRepository struct {
	db    PgxPool
	clock clock.Clock
}

// NewCombatRepository creates a CombatRepository backed by db. A nil clock
// uses the system time.
//
// Precondition: db must be non-nil and the combats migration applied.
func NewCombatRepository(db PgxPool, clk clock.Clock) *CombatRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &CombatRepository{db: db, clock: clk}
}

var _ snapshot.Repository = (*CombatRepository)(nil)

// Load fetches the snapshot for id.
//
// Postcondition: Returns snapshot.ErrCombatNotFound if no row exists.
func (r *CombatRepository) Load(ctx context.Context, id string) (combat.Snapshot, error) {
	var blob []byte
	err := r.db.QueryRow(ctx, loadCombatSQL, id).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return combat.Snapshot{}, snapshot.ErrCombatNotFound
		}
		return combat.Snapshot{}, fmt.Errorf("querying combat: %w", err)
	}
	var snap combat.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return combat.Snapshot{}, fmt.Errorf("decoding combat %q: %w", id, err)
	}
	return snap, nil
}

// Save writes snap as a full overwrite of its row.
//
// Precondition: snap.ID must be non-empty.
// Postcondition: Rows rejected by a table constraint wrap
// combat.ErrMalformedSnapshot.
func (r *CombatRepository) Save(ctx context.Context, snap combat.Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("saving combat: empty id")
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding combat %q: %w", snap.ID, err)
	}
	_, err = r.db.Exec(ctx, saveCombatSQL,
		snap.ID, snap.CampaignID, snap.Name, string(snap.Status), snap.CurrentRound, blob, r.clock.Now(),
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", combat.ErrMalformedSnapshot, err)
		}
		return fmt.Errorf("upserting combat: %w", err)
	}
	return nil
}

// ListByCampaign returns summaries for campaignID, most recently updated
// first.
func (r *CombatRepository) ListByCampaign(ctx context.Context, campaignID string) ([]snapshot.Summary, error) {
	rows, err := r.db.Query(ctx, listCombatsSQL, campaignID)
	if err != nil {
		return nil, fmt.Errorf("listing combats: %w", err)
	}
	defer rows.Close()

	out := []snapshot.Summary{}
	for rows.Next() {
		var (
			s      snapshot.Summary
			status string
		)
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.Name, &status, &s.CurrentRound, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning combat summary: %w", err)
		}
		s.Status = combat.Status(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating combat summaries: %w", err)
	}
	return out, nil
}

// Delete removes the row for id.
//
// Postcondition: Returns snapshot.ErrCombatNotFound if no row was deleted.
func (r *CombatRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteCombatSQL, id)
	if err != nil {
		return fmt.Errorf("deleting combat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return snapshot.ErrCombatNotFound
	}
	return nil
}
