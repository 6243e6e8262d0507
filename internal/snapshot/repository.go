// Package snapshot persists combat snapshots and keeps an open combat's
// store in step with its repository.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/cory-johannsen/encounter/internal/game/combat"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=mocksnapshot github.com/cory-johannsen/encounter/internal/snapshot Repository

var (
	// ErrCombatNotFound is returned when no snapshot exists for a combat ID.
	ErrCombatNotFound = errors.New("combat not found")
	// ErrSaveInProgress is returned when a save is requested while another
	// save of the same store is still in flight.
	ErrSaveInProgress = errors.New("save already in progress")
)

// Summary is the listing view of a stored combat.
type Summary struct {
	ID           string        `json:"id"`
	CampaignID   string        `json:"campaign_id"`
	Name         string        `json:"name"`
	Status       combat.Status `json:"status"`
	CurrentRound int           `json:"current_round"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SummaryOf builds the listing view of snap.
func SummaryOf(snap combat.Snapshot, updatedAt time.Time) Summary {
	return Summary{
		ID:           snap.ID,
		CampaignID:   snap.CampaignID,
		Name:         snap.Name,
		Status:       snap.Status,
		CurrentRound: snap.CurrentRound,
		UpdatedAt:    updatedAt,
	}
}

// Repository stores whole combat snapshots keyed by combat ID.
//
// Save is a full overwrite. Load and Delete return ErrCombatNotFound for
// unknown IDs.
type Repository interface {
	Load(ctx context.Context, id string) (combat.Snapshot, error)
	Save(ctx context.Context, snap combat.Snapshot) error
	ListByCampaign(ctx context.Context, campaignID string) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}
