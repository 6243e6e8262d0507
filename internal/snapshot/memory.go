package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/encounter/internal/clock"
	"github.com/cory-johannsen/encounter/internal/game/combat"
)

type memoryRecord struct {
	blob       []byte
	campaignID string
	updatedAt  time.Time
}

// MemoryRepository keeps snapshots in process. Snapshots are stored as JSON
// so callers never share memory with the repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	clock   clock.Clock
	records map[string]memoryRecord
}

// NewMemoryRepository creates an empty MemoryRepository. A nil clock uses
// the system time.
func NewMemoryRepository(clk clock.Clock) *MemoryRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryRepository{clock: clk, records: make(map[string]memoryRecord)}
}

var _ Repository = (*MemoryRepository)(nil)

// Load returns the snapshot stored under id.
func (m *MemoryRepository) Load(ctx context.Context, id string) (combat.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return combat.Snapshot{}, err
	}
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return combat.Snapshot{}, ErrCombatNotFound
	}
	var snap combat.Snapshot
	if err := json.Unmarshal(rec.blob, &snap); err != nil {
		return combat.Snapshot{}, fmt.Errorf("decoding combat %q: %w", id, err)
	}
	return snap, nil
}

// Save overwrites the snapshot stored under snap.ID.
func (m *MemoryRepository) Save(ctx context.Context, snap combat.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.ID == "" {
		return fmt.Errorf("saving combat: empty id")
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding combat %q: %w", snap.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[snap.ID] = memoryRecord{blob: blob, campaignID: snap.CampaignID, updatedAt: m.clock.Now()}
	return nil
}

// ListByCampaign returns summaries of the campaign's combats, most recently
// updated first.
func (m *MemoryRepository) ListByCampaign(ctx context.Context, campaignID string) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Summary{}
	for id, rec := range m.records {
		if rec.campaignID != campaignID {
			continue
		}
		var snap combat.Snapshot
		if err := json.Unmarshal(rec.blob, &snap); err != nil {
			return nil, fmt.Errorf("decoding combat %q: %w", id, err)
		}
		out = append(out, SummaryOf(snap, rec.updatedAt))
	}
	SortSummaries(out)
	return out, nil
}

// Delete removes the snapshot stored under id.
func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrCombatNotFound
	}
	delete(m.records, id)
	return nil
}

// SortSummaries orders s most recently updated first, then by ID.
func SortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].UpdatedAt.Equal(s[j].UpdatedAt) {
			return s[i].UpdatedAt.After(s[j].UpdatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
